package anthropic

import (
	"testing"

	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/stretchr/testify/require"
)

func TestResponseRoundTrip_ToolUse(t *testing.T) {
	resp := &MessagesResponse{
		ID:         "msg_1",
		Model:      "claude-x",
		Role:       "assistant",
		Content:    []Block{{Type: "tool_use", ID: "toolu_1", Name: "get_weather", Input: []byte(`{"location":"NYC"}`)}},
		StopReason: "tool_use",
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
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
	require.Equal(t, "tool_use", back.StopReason)
	require.Equal(t, "get_weather", back.Content[0].Name)
}

func TestResponseRoundTrip_ReasoningContent(t *testing.T) {
	n := &normalized.Response{
		ID:    "msg_1",
		Model: "claude-x",
		Content: []normalized.ContentPart{
			normalized.ReasoningContent{Text: "thinking it through"},
			normalized.TextContent{Text: "the answer is 4"},
		},
		FinishReason: normalized.FinishEndTurn,
	}
	back, err := ResponseFromNormalized(n)
	require.NoError(t, err)
	require.Len(t, back.Content, 2)
	require.Equal(t, "thinking", back.Content[0].Type)
	require.Equal(t, "text", back.Content[1].Type)
}
