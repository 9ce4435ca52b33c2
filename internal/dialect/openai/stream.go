package openai

import (
	"encoding/json"
	"fmt"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// StreamToNormalized is the A->Normalized streaming state machine (§4.1,
// §9): a per-index accumulator for tool-argument fragments, fed one
// ChatChunk at a time in upstream order.
type StreamToNormalized struct {
	id            string
	model         string
	started       bool
	toolCallIndex map[int]string // index -> tool call ID, for chunks that omit id after the first fragment
}

// NewStreamToNormalized returns a fresh converter for one response stream.
func NewStreamToNormalized() *StreamToNormalized {
	return &StreamToNormalized{toolCallIndex: make(map[int]string)}
}

// Convert consumes one upstream chunk and returns the normalized events it
// produces, in order. A chunk may produce zero, one, or several events
// (e.g. a Start plus a ContentDelta on the first chunk).
func (s *StreamToNormalized) Convert(chunk *ChatChunk) []normalized.StreamEvent {
	var events []normalized.StreamEvent

	if !s.started {
		s.started = true
		s.id = chunk.ID
		s.model = chunk.Model
		events = append(events, normalized.StreamEvent{Type: normalized.EventStart, ID: s.id, Model: s.model})
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			events = append(events, normalized.StreamEvent{
				Type: normalized.EventContentDelta, Index: 0, Text: choice.Delta.Content,
			})
		}

		for _, tc := range choice.Delta.ToolCalls {
			if tc.ID != "" {
				if _, seen := s.toolCallIndex[tc.Index]; !seen {
					s.toolCallIndex[tc.Index] = tc.ID
					name := ""
					if tc.Function != nil {
						name = tc.Function.Name
					}
					events = append(events, normalized.StreamEvent{
						Type: normalized.EventToolCallStart, Index: tc.Index, ToolCallID: tc.ID, ToolCallName: name,
					})
				}
			}
			if tc.Function != nil && tc.Function.Arguments != "" {
				events = append(events, normalized.StreamEvent{
					Type: normalized.EventToolCallArgumentsDelta, Index: tc.Index, ArgumentsFragment: tc.Function.Arguments,
				})
			}
		}

		if choice.FinishReason != "" {
			for idx := range s.toolCallIndex {
				events = append(events, normalized.StreamEvent{Type: normalized.EventToolCallEnd, Index: idx})
			}
			events = append(events, normalized.StreamEvent{
				Type: normalized.EventEnd, FinishReason: ToNormalizedFinishReason(choice.FinishReason),
			})
		}
	}

	if chunk.Usage != nil {
		events = append(events, normalized.StreamEvent{
			Type: normalized.EventUsageUpdate,
			Usage: &normalized.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			},
		})
	}

	return events
}

// NormalizedToStream is the Normalized->A streaming state machine: it
// re-emits normalized events as dialect-A ChatChunks, used when the client
// speaks dialect A against an upstream speaking dialect B.
type NormalizedToStream struct {
	id            string
	model         string
	roleSent      bool
	toolCallMeta  map[int]ToolCall // index -> partial tool call (id/name) awaiting first argument fragment
}

// NewNormalizedToStream returns a fresh re-emitter for one response stream.
func NewNormalizedToStream() *NormalizedToStream {
	return &NormalizedToStream{toolCallMeta: make(map[int]ToolCall)}
}

// Convert consumes one normalized event and returns the dialect-A chunks it
// produces (zero or one, except ToolCallEnd which never produces a chunk:
// dialect A has no equivalent of "content_block_stop").
func (s *NormalizedToStream) Convert(ev normalized.StreamEvent) (*ChatChunk, error) {
	switch ev.Type {
	case normalized.EventStart:
		s.id = ev.ID
		s.model = ev.Model
		return nil, nil

	case normalized.EventContentDelta:
		role := ""
		if !s.roleSent {
			role = "assistant"
			s.roleSent = true
		}
		return s.chunk(&ChunkChoice{Index: 0, Delta: Delta{Role: role, Content: ev.Text}}), nil

	case normalized.EventToolCallStart:
		s.toolCallMeta[ev.Index] = ToolCall{ID: ev.ToolCallID, Type: "function", Function: ToolCallFunc{Name: ev.ToolCallName}}
		return s.chunk(&ChunkChoice{Index: 0, Delta: Delta{ToolCalls: []ToolCallDelta{{
			Index: ev.Index, ID: ev.ToolCallID, Type: "function",
			Function: &ToolCallFunc{Name: ev.ToolCallName, Arguments: ""},
		}}}}), nil

	case normalized.EventToolCallArgumentsDelta:
		return s.chunk(&ChunkChoice{Index: 0, Delta: Delta{ToolCalls: []ToolCallDelta{{
			Index:    ev.Index,
			Function: &ToolCallFunc{Arguments: ev.ArgumentsFragment},
		}}}}), nil

	case normalized.EventToolCallEnd:
		return nil, nil

	case normalized.EventUsageUpdate:
		c := s.chunk(nil)
		c.Usage = &Usage{PromptTokens: ev.Usage.InputTokens, CompletionTokens: ev.Usage.OutputTokens, TotalTokens: ev.Usage.InputTokens + ev.Usage.OutputTokens}
		return c, nil

	case normalized.EventEnd:
		return s.chunk(&ChunkChoice{Index: 0, Delta: Delta{}, FinishReason: FromNormalizedFinishReason(ev.FinishReason)}), nil

	case normalized.EventError:
		return nil, &normalized.GatewayError{Kind: normalized.KindStreamAborted, Message: ev.ErrorMessage}

	default:
		return nil, fmt.Errorf("unhandled stream event type %q", ev.Type)
	}
}

func (s *NormalizedToStream) chunk(choice *ChunkChoice) *ChatChunk {
	c := &ChatChunk{ID: s.id, Object: "chat.completion.chunk", Model: s.model}
	if choice != nil {
		c.Choices = []ChunkChoice{*choice}
	}
	return c
}

// EncodeSSEData marshals a ChatChunk to the bytes that follow "data: " in
// an SSE frame.
func EncodeSSEData(c *ChatChunk) ([]byte, error) {
	return json.Marshal(c)
}

// DoneSentinel is dialect A's terminal SSE frame payload (§4.4).
const DoneSentinel = "[DONE]"
