// Package idempotency records which job side effects have already happened,
// so a redelivered job can skip them.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger claims idempotency keys. Claim reports true exactly once per key
// within the ledger's TTL.
type Ledger interface {
	Claim(ctx context.Context, key string) (bool, error)
	// Forget releases a claim whose side effect did not happen.
	Forget(ctx context.Context, key string) error
}

const keyPrefix = "feedhub:idem:"

// RedisLedger is shared by every instance pointing at the same Redis.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &RedisLedger{client: client, ttl: ttl}
}

// Claim uses SET NX with a TTL, which is atomic in a single round trip.
func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("idempotency key cannot be empty")
	}
	_, err := l.client.SetArgs(ctx, keyPrefix+key, "1", redis.SetArgs{Mode: "NX", TTL: l.ttl}).Result()
	if errors.Is(err, redis.Nil) {
		// NX not met: someone already claimed the key.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return true, nil
}

func (l *RedisLedger) Forget(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("forget idempotency key: %w", err)
	}
	return nil
}

// MemoryLedger is the process-local ledger used when no Redis is configured
// and in tests.
type MemoryLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	expires map[string]time.Time
	// claims since the last sweep of expired keys
	claims int
}

// sweepEvery is the number of successful claims between sweeps.
const sweepEvery = 1024

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &MemoryLedger{ttl: ttl, now: time.Now, expires: make(map[string]time.Time)}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("idempotency key cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.expires[key] = now.Add(l.ttl)
	if l.claims++; l.claims >= sweepEvery {
		l.claims = 0
		l.sweepLocked(now)
	}
	return true, nil
}

func (l *MemoryLedger) Forget(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.expires, key)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLedger) sweepLocked(now time.Time) {
	for k, exp := range l.expires {
		if !now.Before(exp) {
			delete(l.expires, k)
		}
	}
}
