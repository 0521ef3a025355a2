package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// incrementScript INCR + PEXPIRE in one atomic step, returns {count, pttl}
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shared counter store backed by Redis
//
// This is the backend to use for multi-instance deployments. Expiry is delegated to
// Redis key TTLs, so Cleanup is a no-op. Decrement is not supported: skip-counting
// options silently do nothing against this store.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	timeout   time.Duration
	clock     clockwork.Clock
}

// NewRedisStore creates Redis storage
func NewRedisStore(client redis.UniversalClient, keyPrefix string, timeout time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "quota:"
	}
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   timeout,
		clock:     clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used to turn TTLs into reset times
func (s *RedisStore) WithClock(clock clockwork.Clock) *RedisStore {
	s.clock = clock
	return s
}

// buildKey Construct the complete key
func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

// Increment atomic increment with expiry
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (WindowState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := incrementScript.Run(ctx, s.client, []string{s.buildKey(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return WindowState{}, fmt.Errorf("%w: increment: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return WindowState{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}

	return WindowState{
		Count:   res[0],
		ResetAt: s.clock.Now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Get live state of key
func (s *RedisStore) Get(ctx context.Context, key string) (WindowState, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fullKey := s.buildKey(key)
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, fullKey)
	ttlCmd := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return WindowState{}, false, fmt.Errorf("%w: get: %v", ErrStoreUnavailable, err)
	}

	count, err := getCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return WindowState{}, false, nil
	}
	if err != nil {
		return WindowState{}, false, fmt.Errorf("%w: parse count: %v", ErrStoreUnavailable, err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return WindowState{}, false, nil
	}

	return WindowState{Count: count, ResetAt: s.clock.Now().Add(ttl)}, true, nil
}

// Decrement not supported against a shared store
func (s *RedisStore) Decrement(ctx context.Context, key string) error {
	return ErrStoreNotSupported
}

// Reset delete key
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: reset: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Cleanup Redis expires keys on its own
func (s *RedisStore) Cleanup(ctx context.Context) (int, error) {
	return 0, nil
}

// Close the client is owned by the redis manager, nothing to release here
func (s *RedisStore) Close() error {
	return nil
}
