package ratelimiter

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// KeyedLimiters holds one token bucket per key (a user id for post creation).
// Each bucket allows limit events per window with burst == limit, so a user
// may spend the whole window's allowance at once but never more.
//
// Buckets idle for a full window are evicted: by then they would be full
// again, so a fresh bucket behaves identically.
type KeyedLimiters struct {
	mu       sync.Mutex
	limit    int
	every    rate.Limit
	limiters *expirable.LRU[string, *rate.Limiter]
}

// New creates limiters allowing limit events per window per key, tracking at
// most maxKeys keys at once.
func New(limit int, window time.Duration, maxKeys int) *KeyedLimiters {
	return &KeyedLimiters{
		limit:    limit,
		every:    rate.Every(window / time.Duration(limit)),
		limiters: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, window),
	}
}

// Allow reports whether key may perform one more event now.
// It never blocks.
func (kl *KeyedLimiters) Allow(key string) bool {
	return kl.limiter(key).Allow()
}

func (kl *KeyedLimiters) limiter(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	if l, ok := kl.limiters.Get(key); ok {
		// Refresh the entry's TTL while the key is active.
		kl.limiters.Add(key, l)
		return l
	}
	l := rate.NewLimiter(kl.every, kl.limit)
	kl.limiters.Add(key, l)
	return l
}
