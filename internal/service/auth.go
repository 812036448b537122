package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/restockr/restockr-api/internal/model"
	"github.com/restockr/restockr-api/internal/monitor"
	"github.com/restockr/restockr-api/internal/repository"
	"github.com/restockr/restockr-api/internal/utils"
)

// AccountStore is the slice of the credential store the token lifecycle
// needs.  *repository.AccountRepo implements it.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (model.Account, error)
	Activate(ctx context.Context, id uint64, token, passwordHash string, now time.Time) error
	RecordLogin(ctx context.Context, id uint64, refreshHash string, at time.Time) error
	SwapRefreshToken(ctx context.Context, id uint64, oldHash, newHash string, now time.Time) error
	ClearRefreshToken(ctx context.Context, id uint64, now time.Time) error
}

// AuthConfig carries token lifetimes and hashing cost.
type AuthConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ActivationTTL time.Duration
	BcryptCost    int
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int // access token lifetime in seconds
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Account          model.Account
}

// AuthService runs activation, login, refresh, logout and the Authenticate
// guard against the credential store, the token codec and the revocation
// registry.
type AuthService struct {
	cfg       AuthConfig
	store     AccountStore
	codec     *utils.TokenCodec
	registry  RevocationRegistry
	logger    *slog.Logger
	reporter  monitor.Reporter
	now       func() time.Time
	dummyHash string
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithClock injects the clock used for expiry checks and timestamps.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReporter sets where unexpected failures are reported.
func WithReporter(r monitor.Reporter) AuthOption {
	return func(s *AuthService) {
		if r != nil {
			s.reporter = r
		}
	}
}

func NewAuthService(cfg AuthConfig, store AccountStore, codec *utils.TokenCodec, registry RevocationRegistry, logger *slog.Logger, opts ...AuthOption) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NoopRegistry{}
	}
	s := &AuthService{
		cfg:      cfg,
		store:    store,
		codec:    codec,
		registry: registry,
		logger:   logger,
		reporter: monitor.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash = utils.DummyPasswordHash(cfg.BcryptCost)
	return s
}

// AccessTTL is the configured access token lifetime.
func (s *AuthService) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RevocationDegraded reports whether access tokens can currently be revoked.
func (s *AuthService) RevocationDegraded() bool { return s.registry.Degraded() }

// Activate exchanges a pending activation token for a password and makes the
// account active.  A second call after success fails with ErrAlreadyActive.
func (s *AuthService) Activate(ctx context.Context, email, token, newPassword string) error {
	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("activation for unknown email", "email", email)
			return ErrInvalidToken
		}
		return s.infra(ctx, "activate: load account", err)
	}
	if a.IsActive || a.ActivationToken == nil {
		return ErrAlreadyActive
	}
	if a.ActivationTokenExpiry != nil && !s.now().Before(*a.ActivationTokenExpiry) {
		return ErrTokenExpired
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(*a.ActivationToken)) != 1 {
		s.logger.Warn("invalid activation token", "email", a.Email)
		return ErrInvalidToken
	}
	if err := utils.CheckPasswordStrength(newPassword); err != nil {
		return ErrWeakPassword
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return s.infra(ctx, "activate: hash password", err)
	}
	if err := s.store.Activate(ctx, a.ID, token, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Someone activated (or resent the token) between our read and write.
			return ErrAlreadyActive
		}
		return s.infra(ctx, "activate: store", err)
	}
	s.logger.Info("account activated", "email", a.Email)
	return nil
}

// Login verifies credentials and issues a fresh token pair.  The new refresh
// token replaces whatever was stored before.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.VerifyPassword(s.dummyHash, password)
			s.logger.Warn("failed login", "email", email)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, s.infra(ctx, "login: load account", err)
	}
	hash := s.dummyHash
	if a.HasPassword() {
		hash = *a.PasswordHash
	}
	if !utils.VerifyPassword(hash, password) || !a.HasPassword() {
		s.logger.Warn("failed login", "email", email)
		return TokenPair{}, ErrInvalidCredentials
	}
	if !a.IsActive {
		s.logger.Warn("login to inactive account", "email", a.Email, "state", a.State())
		return TokenPair{}, ErrAccountNotActive
	}

	pair, err := s.issuePair(a)
	if err != nil {
		return TokenPair{}, s.infra(ctx, "login: issue tokens", err)
	}
	now := s.now()
	if err := s.store.RecordLogin(ctx, a.ID, utils.HashToken(pair.RefreshToken), now); err != nil {
		return TokenPair{}, s.infra(ctx, "login: store refresh token", err)
	}
	pair.Account.LastLogin = &now
	s.logger.Info("login", "email", a.Email)
	return pair, nil
}

// Refresh rotates a refresh token.  The presented token must verify, be of
// type refresh and still be the one stored on its account; the stored value
// is replaced with a compare-and-swap so a token can be used exactly once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return TokenPair{}, codecError(err)
	}
	if claims.Type != utils.TokenRefresh {
		return TokenPair{}, ErrInvalidTokenType
	}

	oldHash := utils.HashToken(refreshToken)
	a, err := s.store.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("refresh token is not current", "sub", claims.Subject)
			return TokenPair{}, ErrTokenMismatch
		}
		return TokenPair{}, s.infra(ctx, "refresh: load account", err)
	}
	if a.Email != claims.Subject {
		return TokenPair{}, ErrTokenMismatch
	}
	if !a.IsActive {
		return TokenPair{}, ErrAccountNotActive
	}

	pair, err := s.issuePair(a)
	if err != nil {
		return TokenPair{}, s.infra(ctx, "refresh: issue tokens", err)
	}
	if err := s.store.SwapRefreshToken(ctx, a.ID, oldHash, utils.HashToken(pair.RefreshToken), s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Warn("refresh token lost rotation race", "email", a.Email)
			return TokenPair{}, ErrTokenMismatch
		}
		return TokenPair{}, s.infra(ctx, "refresh: swap token", err)
	}
	return pair, nil
}

// Logout blacklists the access token for the rest of its lifetime and
// clears the account's refresh token.  A registry failure is logged and does
// not stop the refresh token from being cleared.  The returned flag tells
// whether the access token was actually blacklisted.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (bool, error) {
	claims, err := s.codec.Inspect(accessToken)
	if err != nil {
		return false, codecError(err)
	}
	if claims.Type != utils.TokenAccess {
		return false, ErrInvalidTokenType
	}

	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	revoked := false
	if s.registry.Degraded() {
		s.logger.Debug("logout without revocation: registry degraded", "sub", claims.Subject)
	} else if err := s.registry.Blacklist(ctx, accessToken, remaining); err != nil {
		s.logger.Warn("blacklist access token failed", "sub", claims.Subject, "error", err)
		s.reporter.CaptureException(ctx, err)
	} else {
		revoked = remaining > 0
	}

	a, err := s.store.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return revoked, nil
		}
		return revoked, s.infra(ctx, "logout: load account", err)
	}
	if err := s.store.ClearRefreshToken(ctx, a.ID, s.now()); err != nil {
		return revoked, s.infra(ctx, "logout: clear refresh token", err)
	}
	s.logger.Info("logout", "email", a.Email, "access_revoked", revoked)
	return revoked, nil
}

// Authenticate is the guard for every protected request.  Checks run from
// cheapest to most expensive: signature and expiry, type, blacklist, store.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (model.Account, error) {
	claims, err := s.codec.Verify(bearer)
	if err != nil {
		return model.Account{}, codecError(err)
	}
	if claims.Type != utils.TokenAccess {
		return model.Account{}, ErrInvalidTokenType
	}
	blacklisted, err := s.registry.IsBlacklisted(ctx, bearer)
	if err != nil {
		// Availability over instant revocation.
		s.logger.Warn("blacklist lookup failed; treating token as not revoked", "error", err)
		blacklisted = false
	}
	if blacklisted {
		return model.Account{}, ErrRevoked
	}
	a, err := s.store.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrAccountNotFound
		}
		return model.Account{}, s.infra(ctx, "authenticate: load account", err)
	}
	if !a.IsActive {
		return model.Account{}, ErrAccountNotActive
	}
	return a, nil
}

func (s *AuthService) issuePair(a model.Account) (TokenPair, error) {
	access, err := s.codec.Issue(a.Email, string(a.Role), utils.TokenAccess, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.Issue(a.Email, string(a.Role), utils.TokenRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		TokenType:        "bearer",
		ExpiresIn:        int(s.cfg.AccessTTL / time.Second),
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		Account:          a,
	}, nil
}

func (s *AuthService) infra(ctx context.Context, op string, err error) error {
	e := infra(op, err)
	s.logger.Error("store failure", "op", op, "error", err)
	s.reporter.CaptureException(ctx, e)
	return e
}

func codecError(err error) error {
	switch {
	case errors.Is(err, utils.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, utils.ErrInvalidSignature):
		return ErrInvalidToken
	default:
		return ErrMalformedToken
	}
}
