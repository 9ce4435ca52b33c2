package openai

import (
	"fmt"
	"time"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// ResponseToNormalized converts a dialect-A ChatResponse into the
// normalized model. Only the first choice is considered; the gateway does
// not fan out n>1 choices through the normalized pipeline (see
// Non-goals/Open Questions — n is forwarded to the upstream but the
// normalized response always reports choice 0).
func ResponseToNormalized(resp *ChatResponse) (*normalized.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}
	choice := resp.Choices[0]

	var content []normalized.ContentPart
	if choice.Message.Content.Text != "" {
		content = append(content, normalized.TextContent{Text: choice.Message.Content.Text})
	}
	for _, tc := range choice.Message.ToolCalls {
		args, err := parseArguments(tc.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %s: %w", tc.ID, err)
		}
		content = append(content, normalized.ToolUseContent{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return &normalized.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		CreatedAt:    time.Unix(resp.Created, 0).UTC(),
		Content:      content,
		FinishReason: ToNormalizedFinishReason(choice.FinishReason),
		Usage: normalized.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// ResponseFromNormalized converts the normalized model into a dialect-A
// ChatResponse.
func ResponseFromNormalized(resp *normalized.Response) (*ChatResponse, error) {
	msg := Message{Role: string(normalized.RoleAssistant)}
	var textParts []ContentPart
	var toolCalls []ToolCall

	for _, part := range resp.Content {
		switch p := part.(type) {
		case normalized.TextContent:
			textParts = append(textParts, ContentPart{Type: "text", Text: p.Text})
		case normalized.ReasoningContent:
			continue // no dialect-A slot, dropped per §9
		case normalized.ToolUseContent:
			toolCalls = append(toolCalls, ToolCall{
				ID:   p.ID,
				Type: "function",
				Function: ToolCallFunc{
					Name:      p.Name,
					Arguments: string(p.Arguments),
				},
			})
		case normalized.ImageContent:
			return nil, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: "dialect A cannot carry image content in an assistant response"}
		default:
			return nil, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: fmt.Sprintf("content part %q has no dialect-A response representation", part.Kind())}
		}
	}

	if len(textParts) == 1 {
		msg.Content = ContentUnion{Text: textParts[0].Text}
	} else if len(textParts) > 1 {
		msg.Content = ContentUnion{Parts: textParts}
	}
	msg.ToolCalls = toolCalls

	return &ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.CreatedAt.Unix(),
		Model:   resp.Model,
		Choices: []Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: FromNormalizedFinishReason(resp.FinishReason),
		}},
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
