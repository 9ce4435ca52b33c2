package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/lunaroute/lunaroute/internal/router"
)

// handleHealthz implements GET /healthz (§6): liveness only, never
// consults provider state.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyProvider is one entry of the GET /readyz summary.
type readyProvider struct {
	Name    string `json:"name"`
	Breaker string `json:"circuit_breaker"`
	Health  string `json:"health"`
}

// handleReadyz implements GET /readyz (§6): a readiness summary of every
// configured provider's breaker state and health status.
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	providers := make([]readyProvider, 0, len(h.ProviderNames))
	overallReady := true

	reg := h.Router.Registry()
	for _, name := range h.ProviderNames {
		st := reg.Get(name)
		breakerState := st.Breaker.State()
		healthStatus := st.Health.Status()

		if h.Metrics != nil {
			h.Metrics.SetBreakerState(name, breakerGaugeValue(breakerState))
		}

		if breakerState == router.StateOpen || healthStatus == router.Unhealthy {
			overallReady = false
		}

		providers = append(providers, readyProvider{
			Name:    name,
			Breaker: breakerState.String(),
			Health:  healthStatus.String(),
		})
	}

	status := http.StatusOK
	if !overallReady {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"ready":     overallReady,
		"providers": providers,
	})
}

func breakerGaugeValue(s router.BreakerState) float64 {
	switch s {
	case router.StateOpen:
		return 2
	case router.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
