package ratelimiter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ricirt/feedhub/internal/ratelimiter"
)

func TestKeyedLimiters_AllowsBurstThenBlocks(t *testing.T) {
	l := ratelimiter.New(3, time.Minute, 100)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("u1"), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow("u1"), "fourth request within the window must be limited")
}

func TestKeyedLimiters_KeysAreIndependent(t *testing.T) {
	l := ratelimiter.New(1, time.Minute, 100)

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"))
}

func TestKeyedLimiters_Refills(t *testing.T) {
	l := ratelimiter.New(2, 40*time.Millisecond, 100)

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))

	assert.Eventually(t, func() bool { return l.Allow("u1") }, time.Second, 5*time.Millisecond)
}
