package anthropic

import (
	"fmt"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// ResponseToNormalized converts a dialect-B MessagesResponse into the
// normalized model.
func ResponseToNormalized(resp *MessagesResponse) (*normalized.Response, error) {
	var content []normalized.ContentPart
	for i, b := range resp.Content {
		p, err := blockToNormalized(b)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}
		content = append(content, p)
	}

	return &normalized.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      content,
		FinishReason: ToNormalizedFinishReason(resp.StopReason),
		Usage: normalized.Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		},
	}, nil
}

// ResponseFromNormalized converts the normalized model into a dialect-B
// MessagesResponse. ReasoningContent is carried through as a thinking
// block since dialect B supports it natively.
func ResponseFromNormalized(resp *normalized.Response) (*MessagesResponse, error) {
	blocks, err := blocksFromNormalized(resp.Content)
	if err != nil {
		return nil, err
	}

	out := &MessagesResponse{
		ID:         resp.ID,
		Model:      resp.Model,
		Role:       "assistant",
		Content:    blocks,
		StopReason: FromNormalizedFinishReason(resp.FinishReason),
		Usage: Usage{
			InputTokens:              resp.Usage.InputTokens,
			OutputTokens:             resp.Usage.OutputTokens,
			CacheReadInputTokens:     resp.Usage.CacheReadTokens,
			CacheCreationInputTokens: resp.Usage.CacheWriteTokens,
		},
	}
	return out, nil
}
