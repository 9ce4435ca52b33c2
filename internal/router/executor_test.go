package router

import (
	"context"
	"testing"
	"time"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher dispatches according to a per-provider script of
// responses/errors, consumed in order, so tests can drive seed scenario
// 4 (fallback on repeated 503s) and scenario 5 (breaker open/recover)
// deterministically.
type fakeDispatcher struct {
	script map[string][]error
	calls  map[string]int
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{script: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, provider string, req *normalized.Request) (*normalized.Response, error) {
	idx := f.calls[provider]
	f.calls[provider]++
	errs := f.script[provider]
	if idx < len(errs) && errs[idx] != nil {
		return nil, errs[idx]
	}
	return &normalized.Response{ID: "resp-" + provider}, nil
}

func TestRouter_FallsBackOnUpstreamUnavailable(t *testing.T) {
	rules, err := NewRuleTable([]*Rule{{Name: "r", Primaries: []string{"primary"}, Fallbacks: []string{"fallback"}}})
	require.NoError(t, err)
	registry := NewRegistry(DefaultBreakerConfig(), DefaultHealthConfig())
	rt := NewRouter(rules, registry)

	unavailable := normalized.NewError(normalized.KindUpstreamUnavailable, "503", nil)
	d := newFakeDispatcher()
	d.script["primary"] = []error{unavailable, unavailable, unavailable}

	_, resp, err := rt.Route(context.Background(), d, &normalized.Request{Model: "x"}, ListenerAny)
	require.NoError(t, err)
	require.Equal(t, "resp-fallback", resp.ID)
}

func TestRouter_PrimaryBreakerOpensAfterRepeatedFailures(t *testing.T) {
	rules, err := NewRuleTable([]*Rule{{Name: "r", Primaries: []string{"primary"}, Fallbacks: []string{"fallback"}}})
	require.NoError(t, err)
	registry := NewRegistry(DefaultBreakerConfig(), DefaultHealthConfig())
	rt := NewRouter(rules, registry)

	unavailable := normalized.NewError(normalized.KindUpstreamUnavailable, "503", nil)
	d := newFakeDispatcher()
	d.script["primary"] = []error{unavailable, unavailable, unavailable}

	_, _, err = rt.Route(context.Background(), d, &normalized.Request{Model: "x"}, ListenerAny)
	require.NoError(t, err)

	require.Equal(t, StateOpen, registry.Get("primary").Breaker.State())
	require.Equal(t, StateClosed, registry.Get("fallback").Breaker.State())
}

func TestRouter_SkipsOpenCircuitProvider(t *testing.T) {
	rules, err := NewRuleTable([]*Rule{{Name: "r", Primaries: []string{"primary"}, Fallbacks: []string{"fallback"}}})
	require.NoError(t, err)
	registry := NewRegistry(DefaultBreakerConfig(), DefaultHealthConfig())
	rt := NewRouter(rules, registry)

	primary := registry.Get("primary")
	primary.Breaker.RecordFailure()
	primary.Breaker.RecordFailure()
	primary.Breaker.RecordFailure()
	require.Equal(t, StateOpen, primary.Breaker.State())

	d := newFakeDispatcher()
	_, resp, err := rt.Route(context.Background(), d, &normalized.Request{Model: "x"}, ListenerAny)
	require.NoError(t, err)
	require.Equal(t, "resp-fallback", resp.ID)
	require.Equal(t, 0, d.calls["primary"])
}

func TestRouter_AllCircuitsOpenSurfacesCircuitOpenError(t *testing.T) {
	rules, err := NewRuleTable([]*Rule{{Name: "r", Primaries: []string{"primary"}}})
	require.NoError(t, err)
	registry := NewRegistry(DefaultBreakerConfig(), DefaultHealthConfig())
	rt := NewRouter(rules, registry)

	primary := registry.Get("primary")
	for i := 0; i < 3; i++ {
		primary.Breaker.RecordFailure()
	}

	d := newFakeDispatcher()
	_, _, err = rt.Route(context.Background(), d, &normalized.Request{Model: "x"}, ListenerAny)
	require.Error(t, err)

	var gwErr *normalized.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, normalized.KindCircuitOpen, gwErr.Kind)
}

func TestRouter_NonRetriableErrorStopsFallback(t *testing.T) {
	rules, err := NewRuleTable([]*Rule{{Name: "r", Primaries: []string{"primary"}, Fallbacks: []string{"fallback"}}})
	require.NoError(t, err)
	registry := NewRegistry(DefaultBreakerConfig(), DefaultHealthConfig())
	rt := NewRouter(rules, registry)

	d := newFakeDispatcher()
	d.script["primary"] = []error{normalized.NewError(normalized.KindValidation, "bad request", nil)}

	_, _, err = rt.Route(context.Background(), d, &normalized.Request{Model: "x"}, ListenerAny)
	require.Error(t, err)
	require.Equal(t, 0, d.calls["fallback"])
}

// fakeStreamDispatcher delivers zero or more events then an error,
// letting tests simulate seed scenario 6: failure after the first byte.
type fakeStreamDispatcher struct {
	events []normalized.StreamEvent
	failAt int // -1 means no failure
	err    error
}

func (f *fakeStreamDispatcher) DispatchStream(ctx context.Context, provider string, req *normalized.Request, onEvent func(normalized.StreamEvent)) error {
	for i, ev := range f.events {
		if i == f.failAt {
			return f.err
		}
		onEvent(ev)
	}
	if f.failAt >= len(f.events) {
		return f.err
	}
	return nil
}

func TestRouter_MidStreamFailureIsTerminalNoFallback(t *testing.T) {
	rules, err := NewRuleTable([]*Rule{{Name: "r", Primaries: []string{"primary"}, Fallbacks: []string{"fallback"}}})
	require.NoError(t, err)
	// A one-failure threshold makes the breaker trip observable straight
	// off this single mid-stream failure, so the test can assert the
	// bookkeeping actually ran instead of just inspecting the error.
	registry := NewRegistry(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: time.Minute}, DefaultHealthConfig())
	rt := NewRouter(rules, registry)

	d := &fakeStreamDispatcher{
		events: []normalized.StreamEvent{{Type: normalized.EventStart}, {Type: normalized.EventContentDelta, Text: "hi"}},
		failAt: 2, // fails after both events delivered
		err:     normalized.NewError(normalized.KindUpstreamUnavailable, "connection reset", nil),
	}

	var delivered []normalized.StreamEvent
	name, err := rt.RouteStream(context.Background(), d, &normalized.Request{Model: "x"}, ListenerAny, func(ev normalized.StreamEvent) {
		delivered = append(delivered, ev)
	})

	require.Error(t, err)
	require.Len(t, delivered, 2)
	require.Equal(t, "primary", name)

	// A genuine mid-stream upstream fault still counts against the
	// provider's own breaker/health bookkeeping (§5, §8 invariant 6),
	// even though it triggers no fallback to the next candidate: the
	// fallback provider's breaker must be untouched (still Closed).
	require.Equal(t, StateOpen, registry.Get("primary").Breaker.State())
	require.Equal(t, StateClosed, registry.Get("fallback").Breaker.State())
}
