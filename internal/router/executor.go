package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// Dispatcher sends one normalized request to the named provider and
// returns the normalized response, or an error classified per §7. The
// router has no knowledge of HTTP or dialect wire formats — that's the
// egress converter and transport layers' job; Dispatcher is the seam.
type Dispatcher interface {
	Dispatch(ctx context.Context, provider string, req *normalized.Request) (*normalized.Response, error)
}

// StreamDispatcher is the streaming analog of Dispatcher: it delivers
// normalized stream events to onEvent as they arrive. A non-nil error
// return after onEvent has already been called at least once means the
// failure happened mid-stream and must not trigger fallback (§4.3).
type StreamDispatcher interface {
	DispatchStream(ctx context.Context, provider string, req *normalized.Request, onEvent func(normalized.StreamEvent)) error
}

// Router selects and dispatches to providers per the rule table,
// circuit breakers, and fallback chain.
type Router struct {
	rules    *RuleTable
	registry *Registry
}

// NewRouter builds a Router over rules and the shared provider registry.
func NewRouter(rules *RuleTable, registry *Registry) *Router {
	return &Router{rules: rules, registry: registry}
}

// Rules exposes the compiled rule table, e.g. so ingress can determine a
// request's primary target ahead of a full Route/RouteStream call (the
// passthrough fast path needs the target's dialect before deciding
// whether to skip normalization).
func (rt *Router) Rules() *RuleTable { return rt.rules }

// Registry exposes the shared provider breaker/health state, e.g. so
// ingress can answer GET /readyz without duplicating it.
func (rt *Router) Registry() *Registry { return rt.registry }

// Route executes req against the primary and, on failure, its
// fallbacks in order, for the non-streaming path. Providers whose
// breaker is Open are skipped. The first success wins; if every
// candidate fails, the last error is returned, reclassified as
// CircuitOpen-exhausted when every candidate was skipped for that
// reason (§7).
// The returned provider name identifies which candidate actually served
// the request (or was last attempted, on total failure), so callers
// outside the router — ingress metrics and observer events — can
// attribute the outcome without duplicating the fallback walk.
func (rt *Router) Route(ctx context.Context, d Dispatcher, req *normalized.Request, listener Listener) (string, *normalized.Response, error) {
	rule := rt.rules.Match(req.Model, listener)
	if rule == nil {
		return "", nil, normalized.NewError(normalized.KindValidation, fmt.Sprintf("no routing rule matches model %q", req.Model), nil)
	}

	targets := rule.Targets()
	if len(targets) == 0 {
		return "", nil, normalized.NewError(normalized.KindValidation, fmt.Sprintf("rule %q has no targets", rule.Name), nil)
	}

	var lastErr error
	var lastProvider string
	allCircuitOpen := true

	for _, name := range targets {
		lastProvider = name
		state := rt.registry.Get(name)
		if !state.Breaker.Allow() {
			lastErr = normalized.NewError(normalized.KindCircuitOpen, fmt.Sprintf("provider %q circuit is open", name), nil)
			continue
		}
		allCircuitOpen = false

		resp, err := d.Dispatch(ctx, name, req)
		if err == nil {
			state.Breaker.RecordSuccess()
			state.Health.RecordSuccess()
			return name, resp, nil
		}

		if !isClientCancellation(ctx, err) {
			state.Breaker.RecordFailure()
			state.Health.RecordFailure()
		}
		lastErr = err

		var gwErr *normalized.GatewayError
		if errors.As(err, &gwErr) && !gwErr.Retriable() {
			return name, nil, err
		}
	}

	if allCircuitOpen {
		return lastProvider, nil, normalized.NewError(normalized.KindCircuitOpen, "all candidate providers have an open circuit", lastErr)
	}
	return lastProvider, nil, lastErr
}

// RouteStream is the streaming analog of Route. Fallback is only
// attempted while no event has yet been delivered to onEvent; once the
// first event reaches the caller, a subsequent failure is terminal
// (§4.3, §8 invariant: mid-stream failure is never retried).
func (rt *Router) RouteStream(ctx context.Context, d StreamDispatcher, req *normalized.Request, listener Listener, onEvent func(normalized.StreamEvent)) (string, error) {
	rule := rt.rules.Match(req.Model, listener)
	if rule == nil {
		return "", normalized.NewError(normalized.KindValidation, fmt.Sprintf("no routing rule matches model %q", req.Model), nil)
	}

	targets := rule.Targets()
	if len(targets) == 0 {
		return "", normalized.NewError(normalized.KindValidation, fmt.Sprintf("rule %q has no targets", rule.Name), nil)
	}

	var lastErr error
	var lastProvider string
	allCircuitOpen := true

	for _, name := range targets {
		lastProvider = name
		state := rt.registry.Get(name)
		if !state.Breaker.Allow() {
			lastErr = normalized.NewError(normalized.KindCircuitOpen, fmt.Sprintf("provider %q circuit is open", name), nil)
			continue
		}
		allCircuitOpen = false

		delivered := false
		wrapped := func(ev normalized.StreamEvent) {
			delivered = true
			onEvent(ev)
		}

		err := d.DispatchStream(ctx, name, req, wrapped)
		if err == nil {
			state.Breaker.RecordSuccess()
			state.Health.RecordSuccess()
			return name, nil
		}

		if delivered {
			// Mid-stream failure: terminal, no fallback — but a genuine
			// upstream fault still counts against this provider's breaker
			// and health; only a client-initiated cancellation is exempt
			// (§5, §8 invariant 6).
			if !isClientCancellation(ctx, err) {
				state.Breaker.RecordFailure()
				state.Health.RecordFailure()
			}
			return name, err
		}

		if !isClientCancellation(ctx, err) {
			state.Breaker.RecordFailure()
			state.Health.RecordFailure()
		}
		lastErr = err
	}

	if allCircuitOpen {
		return lastProvider, normalized.NewError(normalized.KindCircuitOpen, "all candidate providers have an open circuit", lastErr)
	}
	return lastProvider, lastErr
}

// isClientCancellation reports whether err represents a client-initiated
// cancellation rather than a genuine upstream fault — such cancellations
// must not be charged to the provider's circuit breaker, whether they
// happen before the first upstream byte or mid-stream (§8 invariant 6).
func isClientCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil
}
