package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// StreamToNormalized accumulates dialect-B SSE events into normalized
// StreamEvents. Content blocks are keyed by index: message_start opens
// the stream, content_block_start opens a block at an index (text,
// thinking, or tool_use), content_block_delta/stop accumulate and close
// it, message_delta/message_stop close the stream.
type StreamToNormalized struct {
	id          string
	model       string
	blockKind   map[int]string // index -> "text" | "thinking" | "tool_use"
	toolCallIDs map[int]string
}

// NewStreamToNormalized returns a converter for one SSE stream.
func NewStreamToNormalized() *StreamToNormalized {
	return &StreamToNormalized{
		blockKind:   make(map[int]string),
		toolCallIDs: make(map[int]string),
	}
}

// Convert consumes one dialect-B StreamEvent and returns zero or more
// normalized StreamEvents.
func (s *StreamToNormalized) Convert(ev *StreamEvent) ([]normalized.StreamEvent, error) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			s.id = ev.Message.ID
			s.model = ev.Message.Model
		}
		return []normalized.StreamEvent{{Type: normalized.EventStart, ID: s.id, Model: s.model}}, nil

	case "content_block_start":
		if ev.ContentBlock == nil {
			return nil, fmt.Errorf("content_block_start missing content_block")
		}
		s.blockKind[ev.Index] = ev.ContentBlock.Type
		if ev.ContentBlock.Type == "tool_use" {
			s.toolCallIDs[ev.Index] = ev.ContentBlock.ID
			return []normalized.StreamEvent{{
				Type:         normalized.EventToolCallStart,
				Index:        ev.Index,
				ToolCallID:   ev.ContentBlock.ID,
				ToolCallName: ev.ContentBlock.Name,
			}}, nil
		}
		if ev.ContentBlock.Text != "" {
			return []normalized.StreamEvent{{Type: normalized.EventContentDelta, Index: ev.Index, Text: ev.ContentBlock.Text}}, nil
		}
		return nil, nil

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, fmt.Errorf("content_block_delta missing delta")
		}
		switch ev.Delta.Type {
		case "text_delta":
			return []normalized.StreamEvent{{Type: normalized.EventContentDelta, Index: ev.Index, Text: ev.Delta.Text}}, nil
		case "input_json_delta":
			return []normalized.StreamEvent{{Type: normalized.EventToolCallArgumentsDelta, Index: ev.Index, ArgumentsFragment: ev.Delta.PartialJSON}}, nil
		default:
			return nil, nil
		}

	case "content_block_stop":
		if s.blockKind[ev.Index] == "tool_use" {
			return []normalized.StreamEvent{{Type: normalized.EventToolCallEnd, Index: ev.Index}}, nil
		}
		return nil, nil

	case "message_delta":
		var out []normalized.StreamEvent
		if ev.Usage != nil {
			out = append(out, normalized.StreamEvent{Type: normalized.EventUsageUpdate, Usage: &normalized.Usage{
				InputTokens:      ev.Usage.InputTokens,
				OutputTokens:     ev.Usage.OutputTokens,
				CacheReadTokens:  ev.Usage.CacheReadInputTokens,
				CacheWriteTokens: ev.Usage.CacheCreationInputTokens,
			}})
		}
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			out = append(out, normalized.StreamEvent{Type: normalized.EventEnd, FinishReason: ToNormalizedFinishReason(ev.Delta.StopReason)})
		}
		return out, nil

	case "message_stop":
		return nil, nil

	default:
		return nil, nil
	}
}

// NormalizedToStream converts normalized StreamEvents into dialect-B SSE
// events, reopening the per-index block bookkeeping the real API expects
// (content_block_start before any delta, content_block_stop before the
// next block at that index).
type NormalizedToStream struct {
	id              string
	model           string
	messageStartSet bool
	openBlocks      map[int]string
}

// NewNormalizedToStream returns a converter for one outbound SSE stream.
func NewNormalizedToStream() *NormalizedToStream {
	return &NormalizedToStream{openBlocks: make(map[int]string)}
}

// Convert returns zero or more dialect-B events for one normalized event.
func (s *NormalizedToStream) Convert(ev normalized.StreamEvent) ([]StreamEvent, error) {
	switch ev.Type {
	case normalized.EventStart:
		s.id, s.model = ev.ID, ev.Model
		s.messageStartSet = true
		return []StreamEvent{{
			Type: "message_start",
			Message: &MessagesResponse{
				ID:    s.id,
				Model: s.model,
				Role:  "assistant",
			},
		}}, nil

	case normalized.EventContentDelta:
		var out []StreamEvent
		if s.openBlocks[ev.Index] == "" {
			s.openBlocks[ev.Index] = "text"
			out = append(out, StreamEvent{Type: "content_block_start", Index: ev.Index, ContentBlock: &Block{Type: "text"}})
		}
		out = append(out, StreamEvent{Type: "content_block_delta", Index: ev.Index, Delta: &Delta{Type: "text_delta", Text: ev.Text}})
		return out, nil

	case normalized.EventToolCallStart:
		s.openBlocks[ev.Index] = "tool_use"
		return []StreamEvent{{
			Type:         "content_block_start",
			Index:        ev.Index,
			ContentBlock: &Block{Type: "tool_use", ID: ev.ToolCallID, Name: ev.ToolCallName, Input: json.RawMessage("{}")},
		}}, nil

	case normalized.EventToolCallArgumentsDelta:
		return []StreamEvent{{Type: "content_block_delta", Index: ev.Index, Delta: &Delta{Type: "input_json_delta", PartialJSON: ev.ArgumentsFragment}}}, nil

	case normalized.EventToolCallEnd:
		delete(s.openBlocks, ev.Index)
		return []StreamEvent{{Type: "content_block_stop", Index: ev.Index}}, nil

	case normalized.EventUsageUpdate:
		if ev.Usage == nil {
			return nil, nil
		}
		return []StreamEvent{{Type: "message_delta", Usage: &Usage{
			InputTokens:              ev.Usage.InputTokens,
			OutputTokens:             ev.Usage.OutputTokens,
			CacheReadInputTokens:     ev.Usage.CacheReadTokens,
			CacheCreationInputTokens: ev.Usage.CacheWriteTokens,
		}}}, nil

	case normalized.EventEnd:
		var out []StreamEvent
		for idx := range s.openBlocks {
			out = append(out, StreamEvent{Type: "content_block_stop", Index: idx})
			delete(s.openBlocks, idx)
		}
		out = append(out, StreamEvent{Type: "message_delta", Delta: &Delta{StopReason: FromNormalizedFinishReason(ev.FinishReason)}})
		out = append(out, StreamEvent{Type: "message_stop"})
		return out, nil

	case normalized.EventError:
		return nil, &normalized.GatewayError{Kind: normalized.KindStreamAborted, Message: ev.ErrorMessage}

	default:
		return nil, nil
	}
}

// EncodeSSEData marshals a dialect-B StreamEvent as the "data:" payload
// for an SSE frame. The event name itself goes in the preceding "event:"
// line, which callers build from ev.Type.
func EncodeSSEData(ev *StreamEvent) ([]byte, error) {
	return json.Marshal(ev)
}
