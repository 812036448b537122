package handler

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/restockr/restockr-api/internal/model"
	"github.com/restockr/restockr-api/internal/service"
	"github.com/restockr/restockr-api/internal/utils"
)

// ----- requests -----

type signupReq struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
	City        string `json:"city"`
}

func (r signupReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.PhoneNumber, validation.Required, validation.Length(7, 20)),
		validation.Field(&r.Role, validation.Required, validation.In(roleValues()...)),
		validation.Field(&r.City, validation.Length(0, 100)),
	)
}

type emailReq struct {
	Email string `json:"email"`
}

func (r emailReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type activateReq struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r activateReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.By(passwordStrength)),
	)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (r refreshReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type profileReq struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	City        *string `json:"city"`
}

func (r profileReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.PhoneNumber, validation.NilOrNotEmpty, validation.Length(7, 20)),
		validation.Field(&r.City, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

func roleValues() []interface{} {
	out := make([]interface{}, 0, len(model.Roles))
	for _, r := range model.Roles {
		out = append(out, string(r))
	}
	return out
}

// passwordStrength adapts utils.CheckPasswordStrength to a validation rule.
func passwordStrength(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if err := utils.CheckPasswordStrength(s); err != nil {
		return errors.New("must be at least 8 characters with an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ----- responses -----

type accountView struct {
	ID          uint64     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	PhoneNumber string     `json:"phone_number"`
	City        string     `json:"city"`
	Role        string     `json:"role"`
	State       string     `json:"state"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newAccountView(a model.Account) accountView {
	return accountView{
		ID:          a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		PhoneNumber: a.PhoneNumber,
		City:        a.City,
		Role:        string(a.Role),
		State:       string(a.State()),
		LastLogin:   a.LastLogin,
		CreatedAt:   a.CreatedAt,
	}
}

type tokenResp struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	TokenType        string      `json:"token_type"`
	ExpiresIn        int         `json:"expires_in"`
	AccessExpiresAt  time.Time   `json:"access_expires_at"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at"`
	Account          accountView `json:"account"`
}

func newTokenResp(p service.TokenPair) tokenResp {
	return tokenResp{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        p.ExpiresIn,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		Account:          newAccountView(p.Account),
	}
}

type pageResp struct {
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Accounts []accountView `json:"accounts"`
}
