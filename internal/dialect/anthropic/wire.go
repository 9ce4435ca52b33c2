// Package anthropic implements dialect B: the Anthropic Messages wire
// format, and its conversion to and from the normalized model.
package anthropic

import "encoding/json"

// MessagesRequest is the /v1/messages request body.
type MessagesRequest struct {
	Model         string          `json:"model"`
	System        string          `json:"system,omitempty"`
	Messages      []Message       `json:"messages"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// Message is a Messages-API message: content is always a block list.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// Block is one content block. Only the fields relevant to Type are set.
type Block struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"` // string or []Block
	IsError   bool            `json:"is_error,omitempty"`

	// CacheControl marks this block as an Anthropic prompt-cache breakpoint
	// (e.g. {"type":"ephemeral"}). Present on any block type.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

// ImageSource describes an inline base64 or URL image source.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Tool is a Messages-API tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`

	// CacheControl marks this tool definition as a prompt-cache breakpoint.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

// MessagesResponse is the /v1/messages response body (non-streaming).
type MessagesResponse struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Role       string  `json:"role"`
	Content    []Block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      Usage   `json:"usage"`
}

// Usage is the Messages-API usage block.
type Usage struct {
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens,omitempty"`
}

// StreamEvent is one Messages-API SSE event (§4.1): message_start,
// content_block_start, content_block_delta, content_block_stop,
// message_delta, message_stop.
type StreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`

	// message_start
	Message *MessagesResponse `json:"message,omitempty"`

	// content_block_start
	ContentBlock *Block `json:"content_block,omitempty"`

	// content_block_delta
	Delta *Delta `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`
}

// Delta is the payload of a content_block_delta or message_delta event.
type Delta struct {
	Type string `json:"type,omitempty"`

	// text_delta
	Text string `json:"text,omitempty"`

	// input_json_delta
	PartialJSON string `json:"partial_json,omitempty"`

	// message_delta
	StopReason string `json:"stop_reason,omitempty"`
}

// ErrorEnvelope is dialect B's error response body (§7).
type ErrorEnvelope struct {
	Type  string    `json:"type"`
	Error ErrorBody `json:"error"`
}

// ErrorBody is the body of ErrorEnvelope.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
