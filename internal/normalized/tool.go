package normalized

import "encoding/json"

// Tool describes a function the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	// ProviderOptions carries dialect-specific fields with no normalized
	// slot (e.g. Anthropic cache_control). Preserved on same-dialect round
	// trips, dropped on cross-dialect conversion.
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}

// ToolChoiceType selects how the model is allowed to use tools.
type ToolChoiceType string

const (
	ToolChoiceAuto     ToolChoiceType = "auto"
	ToolChoiceRequired ToolChoiceType = "required"
	ToolChoiceNone     ToolChoiceType = "none"
	ToolChoiceNamed    ToolChoiceType = "named"
)

// ToolChoice is Auto | Required | None | Named(name).
type ToolChoice struct {
	Type ToolChoiceType `json:"type"`
	Name string         `json:"name,omitempty"`
}
