package normalized

// Request is the dialect-agnostic form of an inbound completion request.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	Tools      []Tool     `json:"tools,omitempty"`
	ToolChoice ToolChoice `json:"tool_choice,omitempty"`

	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	N                *int     `json:"n,omitempty"`

	Stream bool `json:"stream"`

	// Metadata is forwarded verbatim to the upstream when the dialect has a
	// slot for it, and always forwarded to observers.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ProviderOptions carries request-level dialect-specific fields with no
	// normalized slot. Neither dialect converter sets or reads it; Anthropic
	// cache_control travels on ContentPart and Tool ProviderOptions instead.
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}
