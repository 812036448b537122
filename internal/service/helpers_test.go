package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/restockr/restockr-api/internal/database"
	"github.com/restockr/restockr-api/internal/model"
	"github.com/restockr/restockr-api/internal/queue"
	"github.com/restockr/restockr-api/internal/repository"
	"github.com/restockr/restockr-api/internal/utils"
)

const testSecret = "test-secret-key"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	repo     *repository.AccountRepo
	codec    *utils.TokenCodec
	mr       *miniredis.Miniredis
	registry RevocationRegistry
	clock    *testClock
	auth     *AuthService
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ActivationTTL: 7 * 24 * time.Hour,
		BcryptCost:    bcrypt.MinCost,
	}
}

func newRepo(t *testing.T) *repository.AccountRepo {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))
	return repository.NewAccountRepo(db)
}

// newFixture wires an AuthService over SQLite and miniredis.  A non-nil
// registry replaces the Redis backed one.
func newFixture(t *testing.T, registry RevocationRegistry) *fixture {
	t.Helper()
	f := &fixture{repo: newRepo(t), clock: newTestClock()}
	f.mr = miniredis.RunT(t)
	if registry == nil {
		rdb := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		registry = NewRedisRegistry(rdb)
	}
	f.registry = registry
	f.codec = utils.NewTokenCodec(testSecret, utils.WithCodecClock(f.clock.Now))
	f.auth = NewAuthService(testAuthConfig(), f.repo, f.codec, registry, discardLogger(), WithClock(f.clock.Now))
	return f
}

// seedInactive inserts an account awaiting activation with the given token.
func (f *fixture) seedInactive(t *testing.T, email, phone, token string) uint64 {
	t.Helper()
	now := f.clock.Now()
	id, err := f.repo.Create(context.Background(), repository.NewAccount{
		Email:                 email,
		FullName:              "Test User",
		PhoneNumber:           phone,
		City:                  "Abuja",
		Role:                  model.RoleCustomer,
		ActivationToken:       token,
		ActivationTokenExpiry: now.Add(7 * 24 * time.Hour),
	}, now)
	require.NoError(t, err)
	return id
}

// seedActive inserts and activates an account.
func (f *fixture) seedActive(t *testing.T, email, phone, password string) uint64 {
	t.Helper()
	id := f.seedInactive(t, email, phone, "activation-"+email)
	require.NoError(t, f.auth.Activate(context.Background(), email, "activation-"+email, password))
	return id
}

func (f *fixture) account(t *testing.T, email string) model.Account {
	t.Helper()
	a, err := f.repo.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

// spyRegistry records calls and returns canned errors.
type spyRegistry struct {
	mu           sync.Mutex
	blacklisted  map[string]bool
	checks       int
	blacklistErr error
	checkErr     error
}

func newSpyRegistry() *spyRegistry { return &spyRegistry{blacklisted: map[string]bool{}} }

func (s *spyRegistry) Blacklist(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blacklistErr != nil {
		return s.blacklistErr
	}
	if ttl > 0 {
		s.blacklisted[token] = true
	}
	return nil
}

func (s *spyRegistry) IsBlacklisted(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.blacklisted[token], nil
}

func (s *spyRegistry) Degraded() bool { return false }

func (s *spyRegistry) checkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

// capturePublisher keeps every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []queue.AccountRegisteredEvent
	err    error
}

func (p *capturePublisher) PublishAccountRegistered(_ context.Context, ev queue.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *capturePublisher) last(t *testing.T) queue.AccountRegisteredEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.events)
	return p.events[len(p.events)-1]
}
