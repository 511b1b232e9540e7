// Package lock provides a Redis-backed run lock for growthledger.Engine.
//
// The lock only stops two syncs from doing redundant work at the same time.
// Duplicate-free writes come from the ledger's unique transaction_id
// constraint whether or not a lock is configured.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/growthledger"
)

// DefaultKey is the Redis key used when none is configured.
const DefaultKey = "growthledger:sync"

// DefaultTTL bounds how long a crashed holder can block other runs.
const DefaultTTL = 10 * time.Minute

var _ growthledger.RunLock = (*Redis)(nil)

// releaseScript deletes the key only if it still holds our token, so a run
// that outlived its TTL cannot release a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis is a single-key mutual exclusion lock acquired with SET NX PX.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Redis lock.
type Option func(*Redis)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(r *Redis) { r.key = key }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Redis) { r.logger = logger }
}

func NewRedis(client *redis.Client, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		key:    DefaultKey,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dial parses redisURL, pings the server and returns a lock on it.
func Dial(ctx context.Context, redisURL string, opts ...Option) (*Redis, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("growthledger/lock: parsing redis URL: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("growthledger/lock: pinging redis: %w", err)
	}
	return NewRedis(client, opts...), nil
}

// TryLock acquires the lock without waiting. It returns
// growthledger.ErrSyncInProgress when another run holds it.
func (r *Redis) TryLock(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("growthledger/lock: acquire %s: %w", r.key, err)
	}
	if !ok {
		r.logger.Debug("run lock held elsewhere", "key", r.key)
		return nil, growthledger.ErrSyncInProgress
	}
	r.logger.Debug("run lock acquired", "key", r.key, "ttl", r.ttl)

	unlock := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Int64()
		if err != nil {
			return fmt.Errorf("growthledger/lock: release %s: %w", r.key, err)
		}
		if n == 0 {
			return errLockLost
		}
		return nil
	}
	return unlock, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var errLockLost = errors.New("growthledger/lock: lock expired before release")
