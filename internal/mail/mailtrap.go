// Package mail delivers transactional email through the Mailtrap sending API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/restockr/restockr-api/internal/config"
	"github.com/restockr/restockr-api/internal/queue"
)

// Mailer sends the activation email for a registered account.
type Mailer interface {
	SendActivation(ctx context.Context, ev queue.AccountRegisteredEvent) error
}

// MailtrapMailer posts messages to the Mailtrap HTTP API.  Without an API key
// it only logs what it would have sent.
type MailtrapMailer struct {
	cfg           config.MailConfig
	activationURL string
	httpClient    *http.Client
	logger        *slog.Logger
}

func NewMailtrapMailer(cfg config.MailConfig, activationURL string, logger *slog.Logger) *MailtrapMailer {
	return &MailtrapMailer{
		cfg:           cfg,
		activationURL: activationURL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	From     address   `json:"from"`
	To       []address `json:"to"`
	Subject  string    `json:"subject"`
	Text     string    `json:"text"`
	Category string    `json:"category"`
}

func (m *MailtrapMailer) SendActivation(ctx context.Context, ev queue.AccountRegisteredEvent) error {
	link := ActivationLink(m.activationURL, ev.Email, ev.ActivationToken)
	if m.cfg.APIKey == "" {
		m.logger.Info("mail disabled; activation link not sent", "to", ev.Email)
		m.logger.Debug("activation link", "to", ev.Email, "link", link)
		return nil
	}

	payload := sendRequest{
		From:     address{Email: m.cfg.FromEmail, Name: m.cfg.FromName},
		To:       []address{{Email: ev.Email, Name: ev.FullName}},
		Subject:  "Activate your ReStockr account",
		Text:     activationText(ev, link),
		Category: "activation",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling email request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailtrap returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	m.logger.Info("activation email sent", "to", ev.Email, "resent", ev.Resent)
	return nil
}

// ActivationLink builds the frontend activation URL carrying email and token.
func ActivationLink(base, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return base + "?" + q.Encode()
}

func activationText(ev queue.AccountRegisteredEvent, link string) string {
	name := ev.FullName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`Hi %s,

Thank you for joining ReStockr as a %s.

Set your password and activate your account here:
%s

The link expires at %s.

The ReStockr Team`, name, ev.Role, link, ev.ExpiresAt)
}
