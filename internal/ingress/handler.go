// Package ingress implements the HTTP surface of §4.4: the two dialect
// routes, liveness/readiness, and Prometheus exposition. It owns request
// validation, passthrough detection, and SSE framing; the router and
// upstream packages never see an *http.Request.
package ingress

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/obsmetrics"
	"github.com/lunaroute/lunaroute/internal/observer"
	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/upstream"
)

// maxRequestBodyBytes caps every request body at 10 MiB (§4.4).
const maxRequestBodyBytes = 10 << 20

// Handler wires the router, upstream dispatcher, observer sink, and
// metrics into the HTTP routes of §6.
type Handler struct {
	Router   *router.Router
	Upstream *upstream.Client
	Metrics  *obsmetrics.Metrics
	Observer observer.Sink
	Limits   normalized.SamplingLimits

	// Gatherer backs GET /metrics. When nil, the process-wide default
	// registerer is used, matching Metrics constructed without an
	// explicit registry; production wiring passes the same registry
	// obsmetrics.New registered against, so the two stay in sync.
	Gatherer prometheus.Gatherer

	// ProviderNames is the configured provider set, consulted by
	// /readyz so a provider with no recorded traffic yet still appears
	// (Registry.Get lazily creates Unknown/Closed state for it).
	ProviderNames []string

	// RequestTimeout bounds one request end-to-end (§5).
	RequestTimeout time.Duration
}

// Routes builds the chi mux exposing every route of §6, with the
// teacher's middleware stack (Logger, Recoverer, Timeout, CORS).
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(sessionIDMiddleware)
	if h.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "x-api-key", "anthropic-version"},
	}))

	r.Post("/v1/chat/completions", h.handleChatCompletions)
	r.Post("/v1/messages", h.handleMessages)
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Get("/metrics", h.metricsHandler().ServeHTTP)

	return r
}

// metricsHandler builds the /metrics exposition handler against
// h.Gatherer, or the process default if unset.
func (h *Handler) metricsHandler() http.Handler {
	if h.Gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})
}

type requestIDCtxKey struct{}

// requestIDMiddleware stamps every request with a generated id, used for
// observer correlation and echoed back for client-side log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID returns the id stamped by requestIDMiddleware, or "" if the
// request somehow reached a handler without it (tests calling a handler
// directly, bypassing Routes()).
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

type sessionIDCtxKey struct{}

// sessionIDHeader lets a client group several requests under one session
// for observer correlation (§4.5); callers with no concept of a session
// get one minted for them, same as an untagged request still gets a
// request id.
const sessionIDHeader = "X-Session-Id"

// sessionIDMiddleware stamps every request with a session id: the
// caller-supplied X-Session-Id if present, otherwise a freshly minted
// one, always echoed back so a client can reuse it on the next call.
func sessionIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(sessionIDHeader, id)
		ctx := context.WithValue(r.Context(), sessionIDCtxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the id stamped by sessionIDMiddleware, or "" if the
// request somehow reached a handler without it.
func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDCtxKey{}).(string)
	return id
}
