package ingress

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/upstream"
)

// handleMessages implements POST /v1/messages (dialect B, §6). Mirrors
// handleChatCompletions with the dialect B wire types and error envelope.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	defer func() { h.recordHTTP(r, "/v1/messages", ww.Status(), start) }()
	w = ww

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeAnthropicError(w, normalized.NewError(normalized.KindValidation, "request body exceeds 10 MiB or could not be read", err))
		return
	}

	var shallow shallowRequest
	if err := json.Unmarshal(body, &shallow); err != nil {
		writeAnthropicError(w, normalized.NewError(normalized.KindValidation, "request body is not valid JSON", err))
		return
	}

	target := h.resolvePassthrough(shallow.Model, router.ListenerAnthropic, upstream.DialectAnthropic)
	if target.eligible {
		h.forwardPassthrough(w, r, target.provider, body, shallow.Stream, writeAnthropicError)
		return
	}

	var wireReq anthropic.MessagesRequest
	if err := json.Unmarshal(body, &wireReq); err != nil {
		writeAnthropicError(w, normalized.NewError(normalized.KindValidation, "request body is not valid messages JSON", err))
		return
	}

	req, err := anthropic.ToNormalized(&wireReq)
	if err != nil {
		writeAnthropicError(w, err)
		return
	}
	if err := req.Validate(normalized.SamplingLimits{MaxTemperature: 1.0}); err != nil {
		writeAnthropicError(w, err)
		return
	}

	h.publishStarted(r, "", req)

	if req.Stream {
		h.streamAnthropic(w, r, req)
	} else {
		h.respondAnthropic(w, r, req)
	}
}

func (h *Handler) respondAnthropic(w http.ResponseWriter, r *http.Request, req *normalized.Request) {
	start := time.Now()
	h.publishRequestRecorded(r, req)
	provider, resp, err := h.Router.Route(r.Context(), h.Upstream, req, router.ListenerAnthropic)
	if err != nil {
		h.recordLLM(provider, req.Model, "error", start, nil)
		h.publishCompleted(r, provider, nil, err)
		writeAnthropicError(w, err)
		return
	}
	h.publishResponseRecorded(r, provider, resp)

	wireResp, err := anthropic.ResponseFromNormalized(resp)
	if err != nil {
		h.publishCompleted(r, provider, &resp.Usage, err)
		writeAnthropicError(w, err)
		return
	}

	h.recordLLM(provider, req.Model, "success", start, &resp.Usage)
	h.publishCompleted(r, provider, &resp.Usage, nil)
	writeJSON(w, http.StatusOK, wireResp)
}

func (h *Handler) streamAnthropic(w http.ResponseWriter, r *http.Request, req *normalized.Request) {
	start := time.Now()
	h.publishRequestRecorded(r, req)
	sseWriter := prepareSSE(w)
	emitter := newAnthropicStreamEmitter(sseWriter)

	var finalUsage *normalized.Usage
	toolCalls := newStreamToolCallAccumulator()
	provider, streamErr := h.Router.RouteStream(r.Context(), h.Upstream, req, router.ListenerAnthropic, func(ev normalized.StreamEvent) {
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
	h.publishCompleted(r, provider, finalUsage, nil)
}
