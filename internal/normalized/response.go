package normalized

import "time"

// FinishReason is the dialect-agnostic reason generation stopped.
type FinishReason string

const (
	FinishEndTurn       FinishReason = "end_turn"
	FinishMaxTokens      FinishReason = "max_tokens"
	FinishToolUse        FinishReason = "tool_use"
	FinishStopSequence   FinishReason = "stop_sequence"
	FinishContentFilter  FinishReason = "content_filter"
	FinishError          FinishReason = "error"
)

// Usage reports token accounting for one response.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`

	ThinkingTokens   *int64 `json:"thinking_tokens,omitempty"`
	CacheReadTokens  *int64 `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens *int64 `json:"cache_write_tokens,omitempty"`
}

// Response is the dialect-agnostic form of a completed (non-streaming)
// generation.
type Response struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`

	Content []ContentPart `json:"content"`

	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}
