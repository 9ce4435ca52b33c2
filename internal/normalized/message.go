package normalized

// Message is one turn of a conversation. Content always holds the
// normalized part sequence; a dialect whose wire format allows a bare
// string collapses to a single TextContent part on ingestion.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// Text returns the concatenation of all TextContent parts, ignoring any
// non-text parts. Convenience for dialects/tests that only care about text.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if t, ok := p.(TextContent); ok {
			out += t.Text
		}
	}
	return out
}

// ToolUses returns every ToolUseContent part in the message, in order.
func (m Message) ToolUses() []ToolUseContent {
	var out []ToolUseContent
	for _, p := range m.Content {
		if tu, ok := p.(ToolUseContent); ok {
			out = append(out, tu)
		}
	}
	return out
}

// ToolResults returns every ToolResultContent part in the message, in order.
func (m Message) ToolResults() []ToolResultContent {
	var out []ToolResultContent
	for _, p := range m.Content {
		if tr, ok := p.(ToolResultContent); ok {
			out = append(out, tr)
		}
	}
	return out
}
