package router

import (
	"sync/atomic"
	"time"
)

// BreakerState is one of the three circuit-breaker states (§4.3).
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes one provider's circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures in Closed
	// that trips the breaker to Open (default 3).
	FailureThreshold uint64
	// SuccessThreshold is the number of consecutive successes in
	// HalfOpen required to close the breaker (default 1).
	SuccessThreshold uint64
	// ResetTimeout is how long Open is held before probing in HalfOpen
	// (default 30s).
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the gateway's default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		ResetTimeout:     30 * time.Second,
	}
}

// Breaker is a per-provider circuit breaker. All state transitions go
// through atomic compare-and-swap so concurrent requests for the same
// provider never observe two simultaneous transitions (§8 invariant 4).
// Counters only ever increment or reset to zero — never decrement — so
// they saturate instead of wrapping (§8 invariant 5).
type Breaker struct {
	cfg BreakerConfig

	state           atomic.Int32
	consecutiveFail atomic.Uint64
	consecutiveOK   atomic.Uint64
	openedAt        atomic.Int64 // UnixNano; valid while state == StateOpen
}

// NewBreaker returns a breaker starting in Closed.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg}
}

// State returns the current state, promoting Open to HalfOpen as a side
// effect once the reset timeout has elapsed — callers should call
// Allow() rather than State() to decide whether to dispatch a request.
func (b *Breaker) State() BreakerState {
	b.maybePromoteToHalfOpen()
	return BreakerState(b.state.Load())
}

func (b *Breaker) maybePromoteToHalfOpen() {
	if BreakerState(b.state.Load()) != StateOpen {
		return
	}
	openedAt := b.openedAt.Load()
	if time.Since(time.Unix(0, openedAt)) < b.cfg.ResetTimeout {
		return
	}
	// CAS guards against two goroutines both promoting concurrently;
	// only one observes the Open->HalfOpen edge.
	b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen))
}

// Allow reports whether a request may be dispatched to this provider
// right now. Closed and HalfOpen both allow; Open does not (until the
// reset timeout promotes it, which Allow itself triggers).
func (b *Breaker) Allow() bool {
	return b.State() != StateOpen
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	switch BreakerState(b.state.Load()) {
	case StateHalfOpen:
		b.consecutiveFail.Store(0)
		successes := b.consecutiveOK.Add(1)
		if successes >= b.cfg.SuccessThreshold {
			if b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
				b.consecutiveOK.Store(0)
			}
		}
	case StateClosed:
		b.consecutiveFail.Store(0)
	}
}

// RecordFailure reports a failed call. A cancellation that occurred
// before any upstream byte must not be reported (§8 invariant 6) —
// callers are responsible for that filtering before calling this.
func (b *Breaker) RecordFailure() {
	switch BreakerState(b.state.Load()) {
	case StateHalfOpen:
		b.trip(StateHalfOpen)
	case StateClosed:
		failures := b.consecutiveFail.Add(1)
		if failures >= b.cfg.FailureThreshold {
			b.trip(StateClosed)
		}
	}
}

// trip transitions from the given state to Open and starts the reset
// timer; only the caller whose CAS succeeds performs the transition.
func (b *Breaker) trip(from BreakerState) {
	b.openedAt.Store(time.Now().UnixNano())
	if b.state.CompareAndSwap(int32(from), int32(StateOpen)) {
		b.consecutiveOK.Store(0)
	}
}
