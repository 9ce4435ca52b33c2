package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/stretchr/testify/require"
)

func TestStreamToNormalized_TextAccumulation(t *testing.T) {
	conv := NewStreamToNormalized()
	seq := normalized.NewStreamSequencer()

	step := func(ev *StreamEvent) []normalized.StreamEvent {
		out, err := conv.Convert(ev)
		require.NoError(t, err)
		for _, e := range out {
			require.NoError(t, seq.Check(e))
		}
		return out
	}

	step(&StreamEvent{Type: "message_start", Message: &MessagesResponse{ID: "msg_1", Model: "claude-x"}})
	step(&StreamEvent{Type: "content_block_start", Index: 0, ContentBlock: &Block{Type: "text"}})

	var text string
	for _, frag := range []string{"hel", "lo"} {
		for _, e := range step(&StreamEvent{Type: "content_block_delta", Index: 0, Delta: &Delta{Type: "text_delta", Text: frag}}) {
			text += e.Text
		}
	}
	step(&StreamEvent{Type: "content_block_stop", Index: 0})
	step(&StreamEvent{Type: "message_delta", Delta: &Delta{StopReason: "end_turn"}})

	require.Equal(t, "hello", text)
	require.True(t, seq.Done())
}

func TestStreamToNormalized_ToolCallAccumulation(t *testing.T) {
	conv := NewStreamToNormalized()

	events, err := conv.Convert(&StreamEvent{Type: "message_start", Message: &MessagesResponse{ID: "msg_1"}})
	require.NoError(t, err)
	require.Equal(t, normalized.EventStart, events[0].Type)

	events, err = conv.Convert(&StreamEvent{Type: "content_block_start", Index: 0, ContentBlock: &Block{Type: "tool_use", ID: "toolu_1", Name: "get_weather"}})
	require.NoError(t, err)
	require.Equal(t, normalized.EventToolCallStart, events[0].Type)
	require.Equal(t, "toolu_1", events[0].ToolCallID)

	var args string
	for _, frag := range []string{`{"location":`, `"NYC"}`} {
		events, err = conv.Convert(&StreamEvent{Type: "content_block_delta", Index: 0, Delta: &Delta{Type: "input_json_delta", PartialJSON: frag}})
		require.NoError(t, err)
		args += events[0].ArgumentsFragment
	}

	events, err = conv.Convert(&StreamEvent{Type: "content_block_stop", Index: 0})
	require.NoError(t, err)
	require.Equal(t, normalized.EventToolCallEnd, events[0].Type)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(args), &parsed))
	require.Equal(t, "NYC", parsed["location"])
}

func TestNormalizedToStream_ContentAndFinish(t *testing.T) {
	conv := NewNormalizedToStream()

	events := []normalized.StreamEvent{
		{Type: normalized.EventStart, ID: "resp_1", Model: "gpt-5"},
		{Type: normalized.EventContentDelta, Index: 0, Text: "hi"},
		{Type: normalized.EventEnd, FinishReason: normalized.FinishEndTurn},
	}

	var types []string
	for _, ev := range events {
		out, err := conv.Convert(ev)
		require.NoError(t, err)
		for _, e := range out {
			types = append(types, e.Type)
		}
	}

	require.Contains(t, types, "message_start")
	require.Contains(t, types, "content_block_start")
	require.Contains(t, types, "content_block_delta")
	require.Contains(t, types, "content_block_stop")
	require.Contains(t, types, "message_delta")
	require.Contains(t, types, "message_stop")
}

func TestNormalizedToStream_StreamAbortedOnError(t *testing.T) {
	conv := NewNormalizedToStream()
	_, err := conv.Convert(normalized.StreamEvent{Type: normalized.EventError, ErrorMessage: "upstream closed"})
	require.Error(t, err)

	var gwErr *normalized.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, normalized.KindStreamAborted, gwErr.Kind)
}
