package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/restockr/restockr-api/internal/model"
	"github.com/restockr/restockr-api/internal/monitor"
	"github.com/restockr/restockr-api/internal/queue"
	"github.com/restockr/restockr-api/internal/repository"
	"github.com/restockr/restockr-api/internal/utils"
)

// ErrInvalidPhone is returned when a phone number cannot be normalised.
var ErrInvalidPhone = errors.New("invalid phone number")

// AccountRepository is the persistence the account workflows rely on.
type AccountRepository interface {
	Create(ctx context.Context, a repository.NewAccount, now time.Time) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	SetActivationToken(ctx context.Context, id uint64, token string, expiry, now time.Time) error
	Deactivate(ctx context.Context, id uint64, now time.Time) error
	UpdateProfile(ctx context.Context, id uint64, p repository.ProfileUpdate, now time.Time) error
	List(ctx context.Context, limit, offset int) ([]model.Account, int, error)
}

type AccountConfig struct {
	ActivationTTL   time.Duration
	DefaultRegion   string
	DefaultCity     string
	DefaultPageSize int
	MaxPageSize     int
}

// SignupInput is the data collected by the signup form.
type SignupInput struct {
	FullName    string
	Email       string
	PhoneNumber string
	Role        model.Role
	City        string
}

// ProfileInput lists the editable profile fields; nil leaves a field as is.
type ProfileInput struct {
	FullName    *string
	PhoneNumber *string
	City        *string
}

// Page is one page of accounts for the admin listing.
type Page struct {
	Total    int
	Page     int
	PageSize int
	Accounts []model.Account
}

// AccountService handles signup, activation token delivery, profile upkeep
// and the admin listing.
type AccountService struct {
	cfg       AccountConfig
	repo      AccountRepository
	publisher EventPublisher
	logger    *slog.Logger
	reporter  monitor.Reporter
	now       func() time.Time
}

func NewAccountService(cfg AccountConfig, repo AccountRepository, publisher EventPublisher, logger *slog.Logger, reporter monitor.Reporter) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = monitor.Nop{}
	}
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "Abuja"
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &AccountService{cfg: cfg, repo: repo, publisher: publisher, logger: logger, reporter: reporter, now: time.Now}
}

// Signup creates an inactive account with a fresh activation token and
// announces it so that the activation email goes out.  A publish failure is
// reported but does not undo the signup; the user can ask for a resend.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (model.Account, error) {
	phone, err := utils.NormalizePhone(in.PhoneNumber, s.cfg.DefaultRegion)
	if err != nil {
		return model.Account{}, ErrInvalidPhone
	}
	city := strings.TrimSpace(in.City)
	if city == "" {
		city = s.cfg.DefaultCity
	}
	token, err := utils.NewActivationToken()
	if err != nil {
		return model.Account{}, s.infra(ctx, "signup: activation token", err)
	}
	now := s.now().UTC()
	expiry := now.Add(s.cfg.ActivationTTL)

	id, err := s.repo.Create(ctx, repository.NewAccount{
		Email:                 in.Email,
		FullName:              strings.TrimSpace(in.FullName),
		PhoneNumber:           phone,
		City:                  city,
		Role:                  in.Role,
		ActivationToken:       token,
		ActivationTokenExpiry: expiry,
	}, now)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return model.Account{}, ErrEmailTaken
	case errors.Is(err, repository.ErrPhoneExists):
		return model.Account{}, ErrPhoneTaken
	case err != nil:
		return model.Account{}, s.infra(ctx, "signup: create account", err)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, s.infra(ctx, "signup: reload account", err)
	}
	s.logger.Info("signup", "email", a.Email, "role", a.Role)
	s.announce(ctx, a, token, expiry, false)
	return a, nil
}

// ResendActivation issues a new activation token for an account that is
// still waiting for activation.  Unknown, active and deactivated accounts are
// ignored without error so the caller learns nothing about them.
func (s *AccountService) ResendActivation(ctx context.Context, email string) error {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("resend activation for unknown email", "email", email)
			return nil
		}
		return s.infra(ctx, "resend: load account", err)
	}
	if a.State() != model.StateInactive {
		s.logger.Info("resend activation ignored", "email", a.Email, "state", a.State())
		return nil
	}
	token, err := utils.NewActivationToken()
	if err != nil {
		return s.infra(ctx, "resend: activation token", err)
	}
	now := s.now().UTC()
	expiry := now.Add(s.cfg.ActivationTTL)
	if err := s.repo.SetActivationToken(ctx, a.ID, token, expiry, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return s.infra(ctx, "resend: store token", err)
	}
	s.announce(ctx, a, token, expiry, true)
	return nil
}

// Profile returns the account with the given id.
func (s *AccountService) Profile(ctx context.Context, id uint64) (model.Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrAccountNotFound
		}
		return model.Account{}, s.infra(ctx, "profile: load", err)
	}
	return a, nil
}

// UpdateProfile applies in and returns the updated account.
func (s *AccountService) UpdateProfile(ctx context.Context, id uint64, in ProfileInput) (model.Account, error) {
	upd := repository.ProfileUpdate{FullName: trimmed(in.FullName), City: trimmed(in.City)}
	if in.PhoneNumber != nil {
		phone, err := utils.NormalizePhone(*in.PhoneNumber, s.cfg.DefaultRegion)
		if err != nil {
			return model.Account{}, ErrInvalidPhone
		}
		upd.PhoneNumber = &phone
	}
	err := s.repo.UpdateProfile(ctx, id, upd, s.now())
	switch {
	case errors.Is(err, repository.ErrPhoneExists):
		return model.Account{}, ErrPhoneTaken
	case errors.Is(err, repository.ErrNotFound):
		return model.Account{}, ErrAccountNotFound
	case err != nil:
		return model.Account{}, s.infra(ctx, "profile: update", err)
	}
	return s.Profile(ctx, id)
}

// Deactivate soft-deletes the owner's account.  It is terminal for login.
func (s *AccountService) Deactivate(ctx context.Context, id uint64) error {
	if err := s.repo.Deactivate(ctx, id, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAccountNotActive
		}
		return s.infra(ctx, "deactivate", err)
	}
	s.logger.Info("account deactivated", "account_id", id)
	return nil
}

// Lookup finds an account by email for administrators.
func (s *AccountService) Lookup(ctx context.Context, email string) (model.Account, error) {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrAccountNotFound
		}
		return model.Account{}, s.infra(ctx, "lookup", err)
	}
	return a, nil
}

// List returns page (1-based) of accounts.  pageSize is clamped to the
// configured maximum; zero values fall back to defaults.
func (s *AccountService) List(ctx context.Context, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	accounts, total, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page{}, s.infra(ctx, "list accounts", err)
	}
	return Page{Total: total, Page: page, PageSize: pageSize, Accounts: accounts}, nil
}

func (s *AccountService) announce(ctx context.Context, a model.Account, token string, expiry time.Time, resent bool) {
	if s.publisher == nil {
		return
	}
	ev := queue.AccountRegisteredEvent{
		AccountID:       a.ID,
		Email:           a.Email,
		FullName:        a.FullName,
		Role:            string(a.Role),
		ActivationToken: token,
		ExpiresAt:       expiry.UTC().Format(time.RFC3339),
		Resent:          resent,
		OccurredAt:      s.now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishAccountRegistered(ctx, ev); err != nil {
		s.logger.Error("publish account.registered failed", "email", a.Email, "error", err)
		s.reporter.CaptureException(ctx, err)
	}
}

func (s *AccountService) infra(ctx context.Context, op string, err error) error {
	e := infra(op, err)
	s.logger.Error("store failure", "op", op, "error", err)
	s.reporter.CaptureException(ctx, e)
	return e
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
