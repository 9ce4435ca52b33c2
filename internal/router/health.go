package router

import (
	"sync"
	"time"
)

// HealthStatus summarizes a provider's recent observed reliability.
type HealthStatus int

const (
	Unknown HealthStatus = iota
	Healthy
	Degraded
	Unhealthy
)

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthConfig tunes the sliding window and status thresholds.
type HealthConfig struct {
	// WindowSize is the number of most recent outcomes retained
	// (default 100).
	WindowSize int
	// HealthyMinRate is the minimum success rate for Healthy (default 0.95).
	HealthyMinRate float64
	// DegradedMinRate is the minimum success rate for Degraded (default 0.50).
	DegradedMinRate float64
}

// DefaultHealthConfig returns the gateway's default health-monitor tuning.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		WindowSize:      100,
		HealthyMinRate:  0.95,
		DegradedMinRate: 0.50,
	}
}

// outcome is one recorded call result.
type outcome struct {
	ok bool
	at time.Time
}

// HealthMonitor tracks a sliding window of outcomes for one provider.
// The window is protected by a mutex rather than atomics: unlike the
// breaker's hot-path Allow() check, health is read far less often (by
// /readyz; the router does not consult it when choosing candidates).
// Recording an outcome holds the lock across a slice append/trim;
// Status holds it while scanning the whole window, so its cost grows
// with WindowSize.
type HealthMonitor struct {
	cfg HealthConfig

	mu      sync.Mutex
	history []outcome
}

// NewHealthMonitor returns a monitor using cfg.
func NewHealthMonitor(cfg HealthConfig) *HealthMonitor {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 100
	}
	if cfg.HealthyMinRate == 0 {
		cfg.HealthyMinRate = 0.95
	}
	if cfg.DegradedMinRate == 0 {
		cfg.DegradedMinRate = 0.50
	}
	return &HealthMonitor{cfg: cfg}
}

// RecordSuccess records a successful call.
func (h *HealthMonitor) RecordSuccess() { h.record(true) }

// RecordFailure records a failed call.
func (h *HealthMonitor) RecordFailure() { h.record(false) }

func (h *HealthMonitor) record(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, outcome{ok: ok, at: time.Now()})
	if len(h.history) > h.cfg.WindowSize {
		h.history = h.history[len(h.history)-h.cfg.WindowSize:]
	}
}

// Status derives the current health status from the window.
func (h *HealthMonitor) Status() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.history) < 10 {
		return Unknown
	}

	var successes int
	var lastFailure time.Time
	for _, o := range h.history {
		if o.ok {
			successes++
		} else if o.at.After(lastFailure) {
			lastFailure = o.at
		}
	}
	rate := float64(successes) / float64(len(h.history))

	switch {
	case rate >= h.cfg.HealthyMinRate && (lastFailure.IsZero() || time.Since(lastFailure) > 60*time.Second):
		return Healthy
	case rate >= h.cfg.DegradedMinRate:
		return Degraded
	default:
		return Unhealthy
	}
}
