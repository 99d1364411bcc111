package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/room4-2/callintake/callflow"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyExists    = errors.New("session already exists")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrTooManySessions  = errors.New("maximum sessions reached")
	ErrInvalidConfig    = errors.New("invalid store configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrClosed           = errors.New("session store is closed")
)

// Store persists call sessions for the lifetime of the process (or of the
// backing cache's TTL).
type Store interface {
	// Create stores a new session with Version set to 1.
	// Returns ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, s *callflow.CallSession) error

	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (callflow.CallSession, error)

	// Update replaces the stored session with optimistic locking: the
	// Version on s must match the stored one, and is incremented on success.
	Update(ctx context.Context, s *callflow.CallSession) error

	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Expire removes sessions not updated since cutoff and returns their ids.
	Expire(ctx context.Context, cutoff time.Time) ([]string, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)

	Close() error
}

// StoreType selects a Store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption configures a Store built by NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	keyPrefix   string
	now         func() time.Time
}

// WithRedisClient sets the client used by the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets how long an idle session key survives in Redis.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// WithKeyPrefix namespaces Redis keys.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.keyPrefix = prefix
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

const (
	defaultKeyPrefix = "callintake:"
	defaultRedisTTL  = 30 * time.Minute
)

// NewStore builds a Store of the given type.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{
		keyPrefix: defaultKeyPrefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return newMemoryStore(cfg.now), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis store requires a client", ErrInvalidConfig)
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = defaultRedisTTL
		}
		return newRedisStore(cfg.redisClient, ttl, cfg.keyPrefix, cfg.now), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}
