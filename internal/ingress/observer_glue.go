package ingress

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/observer"
)

// sink returns h.Observer, or observer.NopSink{} if unconfigured, so
// callers never need a nil check before publishing.
func (h *Handler) sink() observer.Sink {
	if h.Observer == nil {
		return observer.NopSink{}
	}
	return h.Observer
}

// publishStarted emits the Started lifecycle event (§4.5).
func (h *Handler) publishStarted(r *http.Request, provider string, req *normalized.Request) {
	h.sink().Publish(observer.Event{
		Kind:      observer.EventStarted,
		RequestID: requestID(r.Context()),
		SessionID: sessionID(r.Context()),
		Provider:  provider,
		At:        now(),
		Request:   req,
	})
}

// publishRequestRecorded emits RequestRecorded once the request has been
// validated and is about to be dispatched — the normalized payload an
// observer needs to reconstruct what was actually sent upstream.
func (h *Handler) publishRequestRecorded(r *http.Request, req *normalized.Request) {
	h.sink().Publish(observer.Event{
		Kind:      observer.EventRequestRecorded,
		RequestID: requestID(r.Context()),
		SessionID: sessionID(r.Context()),
		At:        now(),
		Request:   req,
	})
}

// publishResponseRecorded emits ResponseRecorded for a non-streaming
// response, once dispatch has succeeded and before egress conversion.
func (h *Handler) publishResponseRecorded(r *http.Request, provider string, resp *normalized.Response) {
	h.sink().Publish(observer.Event{
		Kind:      observer.EventResponseRecorded,
		RequestID: requestID(r.Context()),
		SessionID: sessionID(r.Context()),
		Provider:  provider,
		At:        now(),
		Response:  resp,
		Usage:     &resp.Usage,
	})
}

// publishChunkRecorded emits ChunkRecorded for one stream event as it
// arrives, before egress framing.
func (h *Handler) publishChunkRecorded(r *http.Request, ev normalized.StreamEvent) {
	h.sink().Publish(observer.Event{
		Kind:      observer.EventChunkRecorded,
		RequestID: requestID(r.Context()),
		SessionID: sessionID(r.Context()),
		At:        now(),
		Chunk:     &ev,
	})
}

// publishToolCallRecorded emits ToolCallRecorded once a streamed tool
// call's id, name, and arguments have all been assembled.
func (h *Handler) publishToolCallRecorded(r *http.Request, tc normalized.ToolUseContent) {
	h.sink().Publish(observer.Event{
		Kind:      observer.EventToolCallRecorded,
		RequestID: requestID(r.Context()),
		SessionID: sessionID(r.Context()),
		At:        now(),
		ToolCall:  &tc,
	})
}

// publishCompleted emits the Completed lifecycle event, with usage when
// known and err when the request failed.
func (h *Handler) publishCompleted(r *http.Request, provider string, usage *normalized.Usage, err error) {
	h.sink().Publish(observer.Event{
		Kind:      observer.EventCompleted,
		RequestID: requestID(r.Context()),
		SessionID: sessionID(r.Context()),
		Provider:  provider,
		At:        now(),
		Usage:     usage,
		Err:       err,
	})
}

// streamToolCallAccumulator assembles one streamed tool call's
// arguments across EventToolCallArgumentsDelta fragments, keyed by
// content-block index, so ToolCallRecorded can publish a complete
// normalized.ToolUseContent instead of a partial fragment.
type streamToolCallAccumulator struct {
	pending map[int]*pendingToolCall
}

type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

func newStreamToolCallAccumulator() *streamToolCallAccumulator {
	return &streamToolCallAccumulator{pending: map[int]*pendingToolCall{}}
}

// observeStreamEvent publishes ChunkRecorded for ev and, once a tool
// call's EventToolCallEnd arrives, the assembled ToolCallRecorded.
func (h *Handler) observeStreamEvent(r *http.Request, acc *streamToolCallAccumulator, ev normalized.StreamEvent) {
	h.publishChunkRecorded(r, ev)

	switch ev.Type {
	case normalized.EventToolCallStart:
		acc.pending[ev.Index] = &pendingToolCall{id: ev.ToolCallID, name: ev.ToolCallName}
	case normalized.EventToolCallArgumentsDelta:
		if p := acc.pending[ev.Index]; p != nil {
			p.args.WriteString(ev.ArgumentsFragment)
		}
	case normalized.EventToolCallEnd:
		p := acc.pending[ev.Index]
		if p == nil {
			return
		}
		delete(acc.pending, ev.Index)
		args := json.RawMessage(p.args.String())
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		h.publishToolCallRecorded(r, normalized.ToolUseContent{ID: p.id, Name: p.name, Arguments: args})
	}
}

// publishPassthroughCompleted emits Completed for the fast path, where
// usage is only known via the shallow parse of the final chunk/body.
func (h *Handler) publishPassthroughCompleted(r *http.Request, provider string, su *shallowUsage) {
	h.publishCompleted(r, provider, su.toNormalizedUsage(), nil)
}

func (su *shallowUsage) toNormalizedUsage() *normalized.Usage {
	if su == nil {
		return nil
	}
	if su.Usage != nil {
		return &normalized.Usage{InputTokens: su.Usage.PromptTokens, OutputTokens: su.Usage.CompletionTokens}
	}
	if su.AnthropicUsage != nil {
		return &normalized.Usage{InputTokens: su.AnthropicUsage.InputTokens, OutputTokens: su.AnthropicUsage.OutputTokens}
	}
	return nil
}

// now is a thin indirection over time.Now so observer timestamps stay in
// one place; there's no clock injection need yet, but lifecycle events
// are the one place a future fake-clock test would hook in.
func now() time.Time { return time.Now() }
