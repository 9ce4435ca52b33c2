package openai

import (
	"encoding/json"
	"testing"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/stretchr/testify/require"
)

func TestToNormalized_SimpleUserMessage(t *testing.T) {
	req := &ChatRequest{
		Model:    "gpt-5",
		Messages: []Message{{Role: "user", Content: ContentUnion{Text: "Hello"}}},
	}

	n, err := ToNormalized(req)
	require.NoError(t, err)
	require.Equal(t, "gpt-5", n.Model)
	require.Len(t, n.Messages, 1)
	require.Equal(t, normalized.RoleUser, n.Messages[0].Role)
	require.Equal(t, "Hello", n.Messages[0].Text())
}

func TestToNormalized_ToolCallRoundTrip(t *testing.T) {
	req := &ChatRequest{
		Model: "gpt-5",
		Messages: []Message{
			{Role: "user", Content: ContentUnion{Text: "what's the weather in NYC?"}},
			{
				Role: "assistant",
				ToolCalls: []ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: ToolCallFunc{
						Name:      "get_weather",
						Arguments: `{"location":"NYC"}`,
					},
				}},
			},
			{Role: "tool", ToolCallID: "call_1", Content: ContentUnion{Text: "72F and sunny"}},
		},
	}

	n, err := ToNormalized(req)
	require.NoError(t, err)
	require.Len(t, n.Messages, 3)

	toolUses := n.Messages[1].ToolUses()
	require.Len(t, toolUses, 1)
	require.Equal(t, "get_weather", toolUses[0].Name)
	require.JSONEq(t, `{"location":"NYC"}`, string(toolUses[0].Arguments))

	toolResults := n.Messages[2].ToolResults()
	require.Len(t, toolResults, 1)
	require.Equal(t, "call_1", toolResults[0].ToolUseID)

	back, err := FromNormalized(n)
	require.NoError(t, err)
	require.Len(t, back.Messages, 3)
	require.Equal(t, "call_1", back.Messages[1].ToolCalls[0].ID)
	require.JSONEq(t, `{"location":"NYC"}`, back.Messages[1].ToolCalls[0].Function.Arguments)
	require.Equal(t, "call_1", back.Messages[2].ToolCallID)
}

func TestFinishReasonRoundTrip(t *testing.T) {
	for _, reason := range []string{"stop", "length", "tool_calls", "content_filter"} {
		n := ToNormalizedFinishReason(reason)
		require.Equal(t, reason, FromNormalizedFinishReason(n), "round trip for %q", reason)
	}
}

func TestToNormalized_RejectsUnrepresentableContentPart(t *testing.T) {
	req := &ChatRequest{
		Model: "gpt-5",
		Messages: []Message{{
			Role: "user",
			Content: ContentUnion{Parts: []ContentPart{{Type: "audio_url"}}},
		}},
	}
	_, err := ToNormalized(req)
	require.Error(t, err)

	var gwErr *normalized.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, normalized.KindCapabilityMismatch, gwErr.Kind)
}

func TestResponseRoundTrip_ToolUse(t *testing.T) {
	resp := &ChatResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-5",
		Choices: []Choice{{
			Message: Message{
				Role: "assistant",
				ToolCalls: []ToolCall{{
					ID:       "call_1",
					Type:     "function",
					Function: ToolCallFunc{Name: "get_weather", Arguments: `{"location":"NYC"}`},
				}},
			},
			FinishReason: "tool_calls",
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	n, err := ResponseToNormalized(resp)
	require.NoError(t, err)
	require.Equal(t, normalized.FinishToolUse, n.FinishReason)
	require.Len(t, n.Content, 1)
	tu, ok := n.Content[0].(normalized.ToolUseContent)
	require.True(t, ok)
	require.Equal(t, "get_weather", tu.Name)

	back, err := ResponseFromNormalized(n)
	require.NoError(t, err)
	require.Equal(t, "tool_calls", back.Choices[0].FinishReason)
	require.Equal(t, "get_weather", back.Choices[0].Message.ToolCalls[0].Function.Name)
}

func TestToolChoiceRoundTrip(t *testing.T) {
	for _, tc := range []normalized.ToolChoice{
		{Type: normalized.ToolChoiceAuto},
		{Type: normalized.ToolChoiceRequired},
		{Type: normalized.ToolChoiceNone},
		{Type: normalized.ToolChoiceNamed, Name: "get_weather"},
	} {
		raw, err := toolChoiceFromNormalized(tc)
		require.NoError(t, err)
		back, err := toolChoiceToNormalized(raw)
		require.NoError(t, err)
		require.Equal(t, tc, back)
	}
}

func TestStreamToNormalized_TextAccumulation(t *testing.T) {
	conv := NewStreamToNormalized()

	var all []normalized.StreamEvent
	all = append(all, conv.Convert(&ChatChunk{ID: "chatcmpl-1", Model: "gpt-5", Choices: []ChunkChoice{{Delta: Delta{Role: "assistant"}}}})...)
	all = append(all, conv.Convert(&ChatChunk{ID: "chatcmpl-1", Choices: []ChunkChoice{{Delta: Delta{Content: "hel"}}}})...)
	all = append(all, conv.Convert(&ChatChunk{ID: "chatcmpl-1", Choices: []ChunkChoice{{Delta: Delta{Content: "lo"}, FinishReason: "stop"}}})...)

	seq := normalized.NewStreamSequencer()
	var text string
	for _, ev := range all {
		require.NoError(t, seq.Check(ev))
		if ev.Type == normalized.EventContentDelta {
			text += ev.Text
		}
	}
	require.Equal(t, "hello", text)
	require.True(t, seq.Done())
}

func TestNormalizedToStream_ToolCallProducesChunks(t *testing.T) {
	conv := NewNormalizedToStream()

	events := []normalized.StreamEvent{
		{Type: normalized.EventStart, ID: "resp_1", Model: "claude-x"},
		{Type: normalized.EventToolCallStart, Index: 0, ToolCallID: "call_1", ToolCallName: "get_weather"},
		{Type: normalized.EventToolCallArgumentsDelta, Index: 0, ArgumentsFragment: `{"location":`},
		{Type: normalized.EventToolCallArgumentsDelta, Index: 0, ArgumentsFragment: `"NYC"}`},
		{Type: normalized.EventToolCallEnd, Index: 0},
		{Type: normalized.EventEnd, FinishReason: normalized.FinishToolUse},
	}

	var argsFragments string
	var sawFinish bool
	for _, ev := range events {
		chunk, err := conv.Convert(ev)
		require.NoError(t, err)
		if chunk == nil {
			continue
		}
		for _, c := range chunk.Choices {
			if len(c.Delta.ToolCalls) > 0 && c.Delta.ToolCalls[0].Function != nil {
				argsFragments += c.Delta.ToolCalls[0].Function.Arguments
			}
			if c.FinishReason != "" {
				sawFinish = true
				require.Equal(t, "tool_calls", c.FinishReason)
			}
		}
	}

	require.True(t, sawFinish)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(argsFragments), &parsed))
	require.Equal(t, "NYC", parsed["location"])
}
