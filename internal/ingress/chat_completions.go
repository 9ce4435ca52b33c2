package ingress

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/upstream"
)

// handleChatCompletions implements POST /v1/chat/completions (dialect A,
// §6). It tries the passthrough fast path first; on a miss it falls back
// to the full normalizing path through the router.
func (h *Handler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	defer func() { h.recordHTTP(r, "/v1/chat/completions", ww.Status(), start) }()
	w = ww

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeOpenAIError(w, normalized.NewError(normalized.KindValidation, "request body exceeds 10 MiB or could not be read", err))
		return
	}

	var shallow shallowRequest
	if err := json.Unmarshal(body, &shallow); err != nil {
		writeOpenAIError(w, normalized.NewError(normalized.KindValidation, "request body is not valid JSON", err))
		return
	}

	target := h.resolvePassthrough(shallow.Model, router.ListenerOpenAI, upstream.DialectOpenAI)
	if target.eligible {
		h.forwardPassthrough(w, r, target.provider, body, shallow.Stream, writeOpenAIError)
		return
	}

	var wireReq openai.ChatRequest
	if err := json.Unmarshal(body, &wireReq); err != nil {
		writeOpenAIError(w, normalized.NewError(normalized.KindValidation, "request body is not valid chat-completions JSON", err))
		return
	}

	req, err := openai.ToNormalized(&wireReq)
	if err != nil {
		writeOpenAIError(w, err)
		return
	}
	if err := req.Validate(normalized.SamplingLimits{MaxTemperature: 2.0}); err != nil {
		writeOpenAIError(w, err)
		return
	}

	h.publishStarted(r, "", req)

	if req.Stream {
		h.streamOpenAI(w, r, req)
	} else {
		h.respondOpenAI(w, r, req)
	}
}

func (h *Handler) respondOpenAI(w http.ResponseWriter, r *http.Request, req *normalized.Request) {
	start := time.Now()
	h.publishRequestRecorded(r, req)
	provider, resp, err := h.Router.Route(r.Context(), h.Upstream, req, router.ListenerOpenAI)
	if err != nil {
		h.recordLLM(provider, req.Model, "error", start, nil)
		h.publishCompleted(r, provider, nil, err)
		writeOpenAIError(w, err)
		return
	}
	h.publishResponseRecorded(r, provider, resp)

	wireResp, err := openai.ResponseFromNormalized(resp)
	if err != nil {
		h.publishCompleted(r, provider, &resp.Usage, err)
		writeOpenAIError(w, err)
		return
	}

	h.recordLLM(provider, req.Model, "success", start, &resp.Usage)
	h.publishCompleted(r, provider, &resp.Usage, nil)
	writeJSON(w, http.StatusOK, wireResp)
}

func (h *Handler) streamOpenAI(w http.ResponseWriter, r *http.Request, req *normalized.Request) {
	start := time.Now()
	h.publishRequestRecorded(r, req)
	sseWriter := prepareSSE(w)
	emitter := newOpenAIStreamEmitter(sseWriter)

	var finalUsage *normalized.Usage
	toolCalls := newStreamToolCallAccumulator()
	provider, streamErr := h.Router.RouteStream(r.Context(), h.Upstream, req, router.ListenerOpenAI, func(ev normalized.StreamEvent) {
		if ev.Usage != nil {
			finalUsage = ev.Usage
		}
		h.observeStreamEvent(r, toolCalls, ev)
		_ = emitter.Emit(ev)
	})

	if streamErr != nil {
		h.recordLLM(provider, req.Model, "error", start, finalUsage)
		gwErr := asGatewayError(streamErr)
		_ = emitter.EmitError(gwErr)
		h.publishCompleted(r, provider, finalUsage, streamErr)
		return
	}

	h.recordLLM(provider, req.Model, "success", start, finalUsage)
	_ = emitter.Done()
	h.publishCompleted(r, provider, finalUsage, nil)
}

func (h *Handler) recordHTTP(r *http.Request, path string, status int, start time.Time) {
	if h.Metrics == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	h.Metrics.HTTPRequestCounter.WithLabelValues(r.Method, path, statusStr).Inc()
	h.Metrics.HTTPRequestDuration.WithLabelValues(r.Method, path, statusStr).Observe(time.Since(start).Seconds())
}

// recordLLM records the upstream-facing metrics of §6's observability
// collaborator contract: request latency, outcome, and token usage.
func (h *Handler) recordLLM(provider, model, status string, start time.Time, usage *normalized.Usage) {
	if h.Metrics == nil || provider == "" {
		return
	}
	h.Metrics.LLMRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
	h.Metrics.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	if usage != nil {
		h.Metrics.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(usage.InputTokens))
		h.Metrics.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(usage.OutputTokens))
	}
}
