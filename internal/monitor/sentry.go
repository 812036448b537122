// Package monitor reports unexpected errors and operational warnings to Sentry.
package monitor

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"

	"github.com/restockr/restockr-api/internal/config"
)

// Reporter is what the rest of the application depends on.
type Reporter interface {
	CaptureException(ctx context.Context, err error)
	CaptureMessage(ctx context.Context, message string)
	Flush(timeout time.Duration) bool
}

// SentryReporter sends events through a dedicated hub.  With an empty DSN
// the client is created but drops every event, which keeps call sites free
// of nil checks.
type SentryReporter struct {
	hub *sentry.Hub
}

func NewSentryReporter(cfg config.SentryConfig) (*SentryReporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// CaptureException sends err to Sentry.  A hub attached to ctx (for example
// by request middleware) takes precedence.
func (s *SentryReporter) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	s.hubFor(ctx).CaptureException(err)
}

func (s *SentryReporter) CaptureMessage(ctx context.Context, message string) {
	s.hubFor(ctx).CaptureMessage(message)
}

func (s *SentryReporter) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

// RequestScope gives every request its own clone of the hub carrying the
// request, so events captured while serving it are tagged with its URL and
// headers.
func (s *SentryReporter) RequestScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hub := s.hub.Clone()
			hub.Scope().SetRequest(c.Request())
			ctx := sentry.SetHubOnContext(c.Request().Context(), hub)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *SentryReporter) hubFor(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if h := sentry.GetHubFromContext(ctx); h != nil {
			return h
		}
	}
	return s.hub
}

// Nop discards everything.  Tests and tools use it.
type Nop struct{}

func (Nop) CaptureException(context.Context, error) {}
func (Nop) CaptureMessage(context.Context, string)  {}
func (Nop) Flush(time.Duration) bool                { return true }
