// Package breaker implements the fail-fast circuit breaker gating calls
// to L2, per spec §4.2. There is no half-open probing: the first call
// after the cooldown expires simply tries again and drives recovery.
package breaker

import (
	"sync"
	"time"
)

// Breaker is the circuit breaker state: consecutiveFailures and an
// optional openUntil. The circuit is open iff openUntil is set and now
// is before it.
type Breaker struct {
	mu                 sync.Mutex
	failureThreshold   int
	breakDuration      time.Duration
	consecutiveFailure int
	openUntil          time.Time
	now                func() time.Time
}

// Option configures a Breaker at construction time.
type Option func(*Breaker)

// WithFailureThreshold overrides the default threshold of 1.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// New creates a Breaker that opens for breakDuration once
// failureThreshold consecutive failures are recorded.
func New(breakDuration time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		failureThreshold: 1,
		breakDuration:    breakDuration,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RecordFailure increments the consecutive-failure counter; once it
// reaches failureThreshold the circuit opens for breakDuration.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailure++
	if b.consecutiveFailure >= b.failureThreshold {
		b.openUntil = b.now().Add(b.breakDuration)
	}
}

// RecordSuccess resets the consecutive-failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailure = 0
}

// IsOpen reports whether the circuit is currently open. If openUntil has
// elapsed, it atomically clears the state (closing the circuit) before
// returning false, so the very next call is the one that drives recovery
// — there is no separate half-open probe state.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return false
	}
	if !b.now().Before(b.openUntil) {
		b.openUntil = time.Time{}
		b.consecutiveFailure = 0
		return false
	}
	return true
}
