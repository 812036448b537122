package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationRegistry records access tokens that must be rejected before
// they expire.  Entries disappear on their own once their ttl elapses.
type RevocationRegistry interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	// Degraded reports whether revocation is currently unavailable.
	Degraded() bool
}

const blacklistPrefix = "blacklist:"

// RedisRegistry stores one key per revoked token: blacklist:<token> with the
// token's remaining lifetime as TTL.
type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry { return &RedisRegistry{rdb: rdb} }

// Blacklist is a no-op for a non-positive ttl: such a token is already
// rejected by its expiry.
func (r *RedisRegistry) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

func (r *RedisRegistry) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := r.rdb.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRegistry) Degraded() bool { return false }

// NoopRegistry is used when Redis was unreachable at startup.  Nothing is
// ever blacklisted, so logout only invalidates the refresh token.
type NoopRegistry struct{}

// NewDegradedRegistry logs the degradation once and returns a NoopRegistry.
func NewDegradedRegistry(logger *slog.Logger, cause error) NoopRegistry {
	if logger != nil {
		logger.Warn("revocation registry unavailable; access tokens cannot be revoked before expiry",
			"error", cause)
	}
	return NoopRegistry{}
}

func (NoopRegistry) Blacklist(context.Context, string, time.Duration) error { return nil }
func (NoopRegistry) IsBlacklisted(context.Context, string) (bool, error)    { return false, nil }
func (NoopRegistry) Degraded() bool                                         { return true }
