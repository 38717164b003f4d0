package idempotency

import "time"

// SetClock replaces the ledger's time source.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

const SweepEvery = sweepEvery

// Len is the number of keys held, expired or not.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expires)
}
