package obsmetrics

// Breaker state gauge values (closed=0, half_open=1, open=2). These differ
// from router.BreakerState's numeric values (Closed=0, Open=1,
// HalfOpen=2), so callers map states explicitly; obsmetrics does not
// import router — metrics stays a leaf package everything else can
// depend on.
const (
	BreakerGaugeClosed   = 0
	BreakerGaugeHalfOpen = 1
	BreakerGaugeOpen     = 2
)

// SetBreakerState records provider's current breaker state on the gauge.
func (m *Metrics) SetBreakerState(provider string, value float64) {
	m.CircuitBreakerState.WithLabelValues(provider).Set(value)
}
