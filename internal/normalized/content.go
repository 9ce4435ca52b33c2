// Package normalized holds the dialect-agnostic request, response, and
// streaming-event types shared by the OpenAI and Anthropic converters.
package normalized

import "encoding/json"

// Role identifies the sender of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one block of a Message's content. Concrete variants are
// TextContent, ImageContent, ReasoningContent, ToolUseContent and
// ToolResultContent.
type ContentPart interface {
	Kind() string
}

// TextContent is plain text content.
type TextContent struct {
	Text string `json:"text"`
	// ProviderOptions carries dialect-specific per-block fields with no
	// normalized slot (e.g. Anthropic cache_control). Preserved on
	// same-dialect round trips, dropped on cross-dialect conversion.
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (TextContent) Kind() string { return "text" }

// ReasoningContent carries a model's extended-thinking output. Neither
// dialect in the wire-level spec has a slot for it on the client side; it
// is preserved across same-dialect round trips and surfaced to observers,
// and dropped on cross-dialect conversion.
type ReasoningContent struct {
	Text            string         `json:"text"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (ReasoningContent) Kind() string { return "reasoning" }

// ImageSource describes where image bytes come from.
type ImageSource struct {
	// URL, when set, is a remote or data: URL.
	URL string `json:"url,omitempty"`
	// Data is raw image bytes, used when URL is empty.
	Data []byte `json:"data,omitempty"`
	// MimeType is required when Data is set.
	MimeType string `json:"mime_type,omitempty"`
}

// ImageContent is an inline or referenced image.
type ImageContent struct {
	Source          ImageSource    `json:"source"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (ImageContent) Kind() string { return "image" }

// ToolUseContent is a model-issued call to invoke a tool.
type ToolUseContent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Arguments is the tool call's JSON argument value. Dialect A carries
	// this as a JSON-encoded string and dialect B as a JSON object; the
	// normalized form always stores the parsed JSON value so a round trip
	// through either dialect is lossless.
	Arguments       json.RawMessage `json:"arguments"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (ToolUseContent) Kind() string { return "tool_use" }

// ToolResultContent is the result of executing a tool, referencing the
// ToolUseContent.ID it answers.
type ToolResultContent struct {
	ToolUseID string `json:"tool_use_id"`
	// Content is the tool's output, itself a content-part sequence so a
	// tool can return text, images, or a mix.
	Content         []ContentPart  `json:"content"`
	IsError         bool           `json:"is_error,omitempty"`
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

func (ToolResultContent) Kind() string { return "tool_result" }
