// Package circuit provides a small consecutive-failure circuit breaker for
// optional outbound dependencies. When a dependency flaps, the breaker opens
// and callers fall back immediately instead of waiting out timeouts.
package circuit

import (
	"sync"
	"time"
)

type Breaker struct {
	mu sync.RWMutex

	threshold int
	cooldown  time.Duration

	failures  int
	openUntil time.Time
	open      bool
}

// New creates a breaker that opens after threshold consecutive failures and
// stays open for cooldown before letting a probe through.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a call should be attempted. After the cooldown the
// breaker half-opens and admits calls again; the next outcome decides.
func (b *Breaker) Allow() bool {
	b.mu.RLock()
	if !b.open {
		b.mu.RUnlock()
		return true
	}
	expired := time.Now().After(b.openUntil)
	b.mu.RUnlock()

	if !expired {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open && time.Now().After(b.openUntil) {
		b.open = false
		b.failures = 0
	}
	return !b.open
}

// RecordSuccess closes the circuit and clears the failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// RecordFailure counts one failure and opens the circuit at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
		b.openUntil = time.Now().Add(b.cooldown)
	}
}

// IsOpen reports the current state without side effects.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open
}
