package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restockr/restockr-api/internal/model"
	"github.com/restockr/restockr-api/internal/utils"
)

func TestActivate(t *testing.T) {
	ctx := context.Background()

	t.Run("weak password then success then already active", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedInactive(t, "a@x.com", "+2348031234567", "T1")

		err := f.auth.Activate(ctx, "a@x.com", "T1", "Secretabc")
		require.ErrorIs(t, err, ErrWeakPassword)
		assert.False(t, f.account(t, "a@x.com").IsActive)

		require.NoError(t, f.auth.Activate(ctx, "a@x.com", "T1", "Secret123"))
		a := f.account(t, "a@x.com")
		assert.True(t, a.IsActive)
		assert.Nil(t, a.ActivationToken)
		require.NotNil(t, a.PasswordHash)
		assert.True(t, utils.VerifyPassword(*a.PasswordHash, "Secret123"))

		err = f.auth.Activate(ctx, "a@x.com", "T1", "Secret123")
		assert.ErrorIs(t, err, ErrAlreadyActive)
	})

	t.Run("wrong token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedInactive(t, "a@x.com", "+2348031234567", "T1")
		err := f.auth.Activate(ctx, "a@x.com", "T2", "Secret123")
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.False(t, f.account(t, "a@x.com").IsActive)
	})

	t.Run("expired regardless of token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedInactive(t, "a@x.com", "+2348031234567", "T1")
		f.clock.Advance(7 * 24 * time.Hour)

		assert.ErrorIs(t, f.auth.Activate(ctx, "a@x.com", "T1", "Secret123"), ErrTokenExpired)
		assert.ErrorIs(t, f.auth.Activate(ctx, "a@x.com", "nope", "Secret123"), ErrTokenExpired)
		assert.False(t, f.account(t, "a@x.com").IsActive)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.ErrorIs(t, f.auth.Activate(ctx, "ghost@x.com", "T1", "Secret123"), ErrInvalidToken)
	})

	t.Run("deactivated account", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		require.NoError(t, f.repo.Deactivate(ctx, id, f.clock.Now()))
		assert.ErrorIs(t, f.auth.Activate(ctx, "a@x.com", "activation-a@x.com", "Secret123"), ErrAlreadyActive)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("returns two distinct verifiable tokens", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")

		pair, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)
		assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
		assert.Equal(t, 1800, pair.ExpiresIn)
		assert.Equal(t, "bearer", pair.TokenType)

		access, err := f.codec.Verify(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, utils.TokenAccess, access.Type)
		assert.Equal(t, "a@x.com", access.Subject)
		assert.Equal(t, string(model.RoleCustomer), access.Role)

		refresh, err := f.codec.Verify(pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, utils.TokenRefresh, refresh.Type)

		a := f.account(t, "a@x.com")
		require.NotNil(t, a.RefreshTokenHash)
		assert.Equal(t, utils.HashToken(pair.RefreshToken), *a.RefreshTokenHash)
		require.NotNil(t, a.LastLogin)
		assert.WithinDuration(t, f.clock.Now(), *a.LastLogin, time.Second)
	})

	t.Run("login overwrites the previous refresh token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")

		first, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)
		_, err = f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		_, err = f.auth.Refresh(ctx, first.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")

		_, errUnknown := f.auth.Login(ctx, "ghost@x.com", "Secret123")
		_, errWrong := f.auth.Login(ctx, "a@x.com", "Wrong1234")
		require.Error(t, errUnknown)
		require.Error(t, errWrong)
		assert.Equal(t, errUnknown, errWrong)
		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	})

	t.Run("account without password", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedInactive(t, "a@x.com", "+2348031234567", "T1")
		_, err := f.auth.Login(ctx, "a@x.com", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("deactivated account", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		require.NoError(t, f.repo.Deactivate(ctx, id, f.clock.Now()))

		_, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		assert.ErrorIs(t, err, ErrAccountNotActive)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates exactly once", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		next, err := f.auth.Refresh(ctx, login.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.RefreshToken, next.RefreshToken)
		assert.NotEqual(t, login.AccessToken, next.AccessToken)

		_, err = f.auth.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenMismatch)

		// The token from the rotation is itself good for exactly one use.
		_, err = f.auth.Refresh(ctx, next.RefreshToken)
		require.NoError(t, err)
		_, err = f.auth.Refresh(ctx, next.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("access token is the wrong type", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		_, err = f.auth.Refresh(ctx, login.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		f.clock.Advance(8 * 24 * time.Hour)
		_, err = f.auth.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("garbage and foreign signatures", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.auth.Refresh(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrMalformedToken)

		other := utils.NewTokenCodec("another-secret", utils.WithCodecClock(f.clock.Now))
		forged, err := other.Issue("a@x.com", "customer", utils.TokenRefresh, time.Hour)
		require.NoError(t, err)
		_, err = f.auth.Refresh(ctx, forged.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("concurrent refresh with the same token has one winner", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = f.auth.Refresh(ctx, login.RefreshToken)
			}(i)
		}
		close(start)
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrTokenMismatch)
		}
		assert.Equal(t, 1, wins)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes access token and clears refresh token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		revoked, err := f.auth.Logout(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.True(t, revoked)

		// Signature and expiry are still fine; only the blacklist rejects it.
		_, err = f.codec.Verify(login.AccessToken)
		require.NoError(t, err)
		_, err = f.auth.Authenticate(ctx, login.AccessToken)
		assert.ErrorIs(t, err, ErrRevoked)

		assert.Nil(t, f.account(t, "a@x.com").RefreshTokenHash)
		_, err = f.auth.Refresh(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenMismatch)

		ttl := f.mr.TTL("blacklist:" + login.AccessToken)
		assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 1)
	})

	t.Run("blacklist entry lasts for the remaining lifetime", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		f.clock.Advance(20 * time.Minute)
		_, err = f.auth.Logout(ctx, login.AccessToken)
		require.NoError(t, err)
		ttl := f.mr.TTL("blacklist:" + login.AccessToken)
		assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 1)

		f.mr.FastForward(11 * time.Minute)
		assert.False(t, f.mr.Exists("blacklist:"+login.AccessToken))
	})

	t.Run("expired access token clamps ttl to zero", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		f.clock.Advance(31 * time.Minute)
		revoked, err := f.auth.Logout(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.False(t, f.mr.Exists("blacklist:"+login.AccessToken))
		assert.Nil(t, f.account(t, "a@x.com").RefreshTokenHash)
	})

	t.Run("registry failure still clears refresh token", func(t *testing.T) {
		spy := newSpyRegistry()
		spy.blacklistErr = errors.New("redis: connection refused")
		f := newFixture(t, spy)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		revoked, err := f.auth.Logout(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.Nil(t, f.account(t, "a@x.com").RefreshTokenHash)
	})

	t.Run("refresh token is rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		_, err = f.auth.Logout(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
		assert.NotNil(t, f.account(t, "a@x.com").RefreshTokenHash)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid access token", func(t *testing.T) {
		f := newFixture(t, nil)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		a, err := f.auth.Authenticate(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", a.Email)
	})

	t.Run("local checks run before the registry", func(t *testing.T) {
		spy := newSpyRegistry()
		f := newFixture(t, spy)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		_, err = f.auth.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrMalformedToken)
		_, err = f.auth.Authenticate(ctx, login.RefreshToken)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
		f.clock.Advance(31 * time.Minute)
		_, err = f.auth.Authenticate(ctx, login.AccessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)

		assert.Zero(t, spy.checkCount())
	})

	t.Run("registry runs before the store", func(t *testing.T) {
		spy := newSpyRegistry()
		f := newFixture(t, spy)
		ghost, err := f.codec.Issue("ghost@x.com", "customer", utils.TokenAccess, time.Hour)
		require.NoError(t, err)

		_, err = f.auth.Authenticate(ctx, ghost.Token)
		assert.ErrorIs(t, err, ErrAccountNotFound)

		require.NoError(t, spy.Blacklist(ctx, ghost.Token, time.Hour))
		_, err = f.auth.Authenticate(ctx, ghost.Token)
		assert.ErrorIs(t, err, ErrRevoked)
	})

	t.Run("deactivated account", func(t *testing.T) {
		f := newFixture(t, nil)
		id := f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)
		require.NoError(t, f.repo.Deactivate(ctx, id, f.clock.Now()))

		_, err = f.auth.Authenticate(ctx, login.AccessToken)
		assert.ErrorIs(t, err, ErrAccountNotActive)
	})

	t.Run("registry errors fail open", func(t *testing.T) {
		spy := newSpyRegistry()
		spy.checkErr = errors.New("redis: i/o timeout")
		f := newFixture(t, spy)
		f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
		login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)

		_, err = f.auth.Authenticate(ctx, login.AccessToken)
		assert.NoError(t, err)
	})
}

func TestDegradedRegistry(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	registry := NewDegradedRegistry(logger, errors.New("dial tcp: connection refused"))
	f := newFixture(t, registry)
	assert.True(t, f.auth.RevocationDegraded())

	f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
	login, err := f.auth.Login(ctx, "a@x.com", "Secret123")
	require.NoError(t, err)

	revoked, err := f.auth.Logout(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.False(t, revoked)

	// Without a registry only the refresh token is invalidated.
	_, err = f.auth.Authenticate(ctx, login.AccessToken)
	assert.NoError(t, err)
	_, err = f.auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	assert.Equal(t, 1, strings.Count(buf.String(), "level=WARN"))
}

func TestStoreFailureIsInfrastructure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seedActive(t, "a@x.com", "+2348031234567", "Secret123")
	require.NoError(t, f.repo.DB.Close())

	_, err := f.auth.Login(ctx, "a@x.com", "Secret123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupToLogoutScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	pub := &capturePublisher{}
	accounts := NewAccountService(AccountConfig{ActivationTTL: 7 * 24 * time.Hour, DefaultRegion: "NG"},
		f.repo, pub, discardLogger(), nil)
	accounts.now = f.clock.Now

	a, err := accounts.Signup(ctx, SignupInput{
		FullName:    "Ada Obi",
		Email:       "a@x.com",
		PhoneNumber: "08031234567",
		Role:        model.RoleVendor,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StateInactive, a.State())
	require.NotNil(t, a.ActivationTokenExpiry)
	assert.WithinDuration(t, f.clock.Now().Add(7*24*time.Hour), *a.ActivationTokenExpiry, time.Second)

	t1 := pub.last(t).ActivationToken
	require.NoError(t, f.auth.Activate(ctx, "a@x.com", t1, "Secret123"))
	assert.Equal(t, model.StateActive, f.account(t, "a@x.com").State())

	pair, err := f.auth.Login(ctx, "a@x.com", "Secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 1800, pair.ExpiresIn)

	got, err := f.auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, model.RoleVendor, got.Role)

	_, err = f.auth.Logout(ctx, pair.AccessToken)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrRevoked)
}
