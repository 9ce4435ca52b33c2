// Package obsmetrics exposes the gateway's own runtime metrics for the
// GET /metrics route (§6: "Prometheus exposition — contract of the
// observability collaborator; core publishes the numbers"). The core
// gateway owns counting requests, tokens, and latency; dashboards,
// alerting rules, and scrape configuration belong to the operator.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects everything the gateway publishes about itself.
//
//	m := obsmetrics.New(prometheus.NewRegistry())
//	start := time.Now()
//	...
//	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
//	m.LLMRequestCounter.WithLabelValues(provider, model, "success").Inc()
type Metrics struct {
	// LLMRequestDuration measures upstream latency from dispatch to
	// final response (non-streaming) or to the end of the stream
	// (streaming).
	// Labels: provider (anthropic|openai), model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts dispatched requests.
	// Labels: provider, model, status (success|error).
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks reported token usage.
	// Labels: provider, model, type (input|output).
	LLMTokensUsed *prometheus.CounterVec

	// HTTPRequestDuration measures ingress handler latency.
	// Labels: method, path, status_code.
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts ingress requests.
	// Labels: method, path, status_code.
	HTTPRequestCounter *prometheus.CounterVec

	// CircuitBreakerState reports the current breaker state per provider,
	// 0=closed, 1=half-open, 2=open, so a single gauge panel can chart
	// every provider's breaker over time.
	// Labels: provider.
	CircuitBreakerState *prometheus.GaugeVec

	// FallbackCounter counts fallback-chain advances, i.e. how often a
	// request fell through to a non-primary target.
	// Labels: rule, from_provider, to_provider.
	FallbackCounter *prometheus.CounterVec

	// ObserverDropped counts events the observer sink dropped because its
	// channel was full (§ non-blocking sink, drop-newest-on-full).
	ObserverDropped prometheus.Counter
}

// New creates and registers every metric against reg. Passing a
// dedicated registry (rather than prometheus.DefaultRegisterer) keeps
// repeated construction in tests collision-free.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lunaroute_llm_request_duration_seconds",
				Help:    "Duration of upstream LLM requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lunaroute_llm_requests_total",
				Help: "Total upstream LLM requests by provider, model, and outcome",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lunaroute_llm_tokens_total",
				Help: "Total tokens reported by upstream, by provider, model, and direction",
			},
			[]string{"provider", "model", "type"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lunaroute_http_request_duration_seconds",
				Help:    "Duration of gateway HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lunaroute_http_requests_total",
				Help: "Total gateway HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status_code"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lunaroute_circuit_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		FallbackCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lunaroute_fallback_total",
				Help: "Total fallback-chain advances by rule and provider pair",
			},
			[]string{"rule", "from_provider", "to_provider"},
		),

		ObserverDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lunaroute_observer_dropped_total",
				Help: "Total observer events dropped because the sink was full",
			},
		),
	}
}
