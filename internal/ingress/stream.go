package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/transport"
)

// prepareSSE sets the headers a streaming response needs and returns a
// writer flushing one event at a time (§4.4 "writes are flushed per
// event"), grounded on the teacher's http-server streaming example.
func prepareSSE(w http.ResponseWriter) *transport.SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return transport.NewSSEWriter(w)
}

// openAIStreamEmitter re-emits normalized stream events as dialect-A SSE
// frames, ending with the literal "[DONE]" sentinel (§4.4).
type openAIStreamEmitter struct {
	conv *openai.NormalizedToStream
	w    *transport.SSEWriter
}

func newOpenAIStreamEmitter(w *transport.SSEWriter) *openAIStreamEmitter {
	return &openAIStreamEmitter{conv: openai.NewNormalizedToStream(), w: w}
}

func (e *openAIStreamEmitter) Emit(ev normalized.StreamEvent) error {
	chunk, err := e.conv.Convert(ev)
	if err != nil {
		return err
	}
	if chunk == nil {
		return nil
	}
	data, err := openai.EncodeSSEData(chunk)
	if err != nil {
		return err
	}
	return e.w.WriteEvent(transport.SSEEvent{Data: string(data)})
}

func (e *openAIStreamEmitter) Done() error {
	return e.w.WriteDone()
}

// EmitError writes dialect A's error envelope as a plain "data:" frame —
// the real API has no typed SSE "event:" line, so the envelope itself
// carries the error kind for the client to branch on.
func (e *openAIStreamEmitter) EmitError(gwErr *normalized.GatewayError) error {
	env := openai.ErrorEnvelopeForGatewayError(gwErr)
	return e.w.WriteEvent(transport.SSEEvent{Data: mustJSON(env)})
}

// anthropicStreamEmitter re-emits normalized stream events as dialect-B
// SSE frames, each carrying an explicit "event:" line (§4.4).
type anthropicStreamEmitter struct {
	conv *anthropic.NormalizedToStream
	w    *transport.SSEWriter
}

func newAnthropicStreamEmitter(w *transport.SSEWriter) *anthropicStreamEmitter {
	return &anthropicStreamEmitter{conv: anthropic.NewNormalizedToStream(), w: w}
}

func (e *anthropicStreamEmitter) Emit(ev normalized.StreamEvent) error {
	wireEvents, err := e.conv.Convert(ev)
	if err != nil {
		return err
	}
	for _, we := range wireEvents {
		data, err := anthropic.EncodeSSEData(&we)
		if err != nil {
			return err
		}
		if err := e.w.WriteEvent(transport.SSEEvent{Event: we.Type, Data: string(data)}); err != nil {
			return err
		}
	}
	return nil
}

func (e *anthropicStreamEmitter) EmitError(gwErr *normalized.GatewayError) error {
	env := anthropic.ErrorEnvelopeForGatewayError(gwErr)
	return e.w.WriteEvent(transport.SSEEvent{Event: "error", Data: mustJSON(env)})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
