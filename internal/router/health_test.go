package router

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_UnknownBelowMinObservations(t *testing.T) {
	h := NewHealthMonitor(DefaultHealthConfig())
	for i := 0; i < 5; i++ {
		h.RecordSuccess()
	}
	require.Equal(t, Unknown, h.Status())
}

func TestHealthMonitor_HealthyAtHighSuccessRate(t *testing.T) {
	h := NewHealthMonitor(DefaultHealthConfig())
	for i := 0; i < 20; i++ {
		h.RecordSuccess()
	}
	require.Equal(t, Healthy, h.Status())
}

func TestHealthMonitor_DegradedAtMidSuccessRate(t *testing.T) {
	h := NewHealthMonitor(DefaultHealthConfig())
	for i := 0; i < 10; i++ {
		h.RecordSuccess()
	}
	for i := 0; i < 7; i++ {
		h.RecordFailure()
	}
	require.Equal(t, Degraded, h.Status())
}

func TestHealthMonitor_UnhealthyAtLowSuccessRate(t *testing.T) {
	h := NewHealthMonitor(DefaultHealthConfig())
	for i := 0; i < 2; i++ {
		h.RecordSuccess()
	}
	for i := 0; i < 10; i++ {
		h.RecordFailure()
	}
	require.Equal(t, Unhealthy, h.Status())
}

func TestHealthMonitor_WindowSizeBoundsHistory(t *testing.T) {
	h := NewHealthMonitor(HealthConfig{WindowSize: 10, HealthyMinRate: 0.95, DegradedMinRate: 0.5})
	for i := 0; i < 8; i++ {
		h.RecordFailure()
	}
	for i := 0; i < 20; i++ {
		h.RecordSuccess()
	}
	// Only the most recent 10 outcomes (all successes) should remain.
	require.Equal(t, Healthy, h.Status())
}
