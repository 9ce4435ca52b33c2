package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// ToNormalized converts a dialect-A ChatRequest into the normalized model.
// Leading/interspersed "system" messages are folded onto no special field
// here (dialect A keeps system as a message); the anthropic converter is
// the one that collapses them into its top-level system field.
func ToNormalized(req *ChatRequest) (*normalized.Request, error) {
	out := &normalized.Request{
		Model:            req.Model,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		MaxTokens:        req.MaxTokens,
		StopSequences:    req.Stop,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		N:                req.N,
		Stream:           req.Stream,
		Metadata:         req.Metadata,
	}

	for i, m := range req.Messages {
		nm, err := messageToNormalized(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out.Messages = append(out.Messages, nm)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, normalized.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}

	if len(req.ToolChoice) > 0 {
		tc, err := toolChoiceToNormalized(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = tc
	}

	return out, nil
}

func messageToNormalized(m Message) (normalized.Message, error) {
	role := normalized.Role(m.Role)

	// A tool-result message in dialect A is a standalone role:"tool"
	// message carrying tool_call_id; normalize it to a ToolResultContent.
	if role == normalized.RoleTool {
		return normalized.Message{
			Role: normalized.RoleTool,
			Content: []normalized.ContentPart{normalized.ToolResultContent{
				ToolUseID: m.ToolCallID,
				Content:   []normalized.ContentPart{normalized.TextContent{Text: m.Content.Text}},
			}},
		}, nil
	}

	var parts []normalized.ContentPart
	if len(m.Content.Parts) > 0 {
		for _, p := range m.Content.Parts {
			np, err := contentPartToNormalized(p)
			if err != nil {
				return normalized.Message{}, err
			}
			parts = append(parts, np)
		}
	} else if m.Content.Text != "" {
		parts = append(parts, normalized.TextContent{Text: m.Content.Text})
	}

	// Assistant tool_calls become ToolUseContent parts appended to content.
	for _, tc := range m.ToolCalls {
		args, err := parseArguments(tc.Function.Arguments)
		if err != nil {
			return normalized.Message{}, fmt.Errorf("tool call %s: %w", tc.ID, err)
		}
		parts = append(parts, normalized.ToolUseContent{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return normalized.Message{Role: role, Content: parts}, nil
}

// parseArguments parses dialect A's JSON-encoded argument string into the
// normalized raw-JSON-value form, enforcing the 1 MiB cap (§4.1).
func parseArguments(raw string) (json.RawMessage, error) {
	if len(raw) > 1<<20 {
		return nil, fmt.Errorf("tool arguments exceed 1 MiB")
	}
	if raw == "" {
		return json.RawMessage("{}"), nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("tool arguments are not valid JSON: %w", err)
	}
	return json.RawMessage(raw), nil
}

func contentPartToNormalized(p ContentPart) (normalized.ContentPart, error) {
	switch p.Type {
	case "text":
		return normalized.TextContent{Text: p.Text}, nil
	case "image_url":
		if p.ImageURL == nil {
			return nil, fmt.Errorf("image_url part missing image_url")
		}
		return normalized.ImageContent{Source: normalized.ImageSource{URL: p.ImageURL.URL}}, nil
	default:
		return nil, &normalized.GatewayError{
			Kind:    normalized.KindCapabilityMismatch,
			Message: fmt.Sprintf("content part type %q cannot be normalized", p.Type),
		}
	}
}

func toolChoiceToNormalized(raw json.RawMessage) (normalized.ToolChoice, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "auto":
			return normalized.ToolChoice{Type: normalized.ToolChoiceAuto}, nil
		case "required":
			return normalized.ToolChoice{Type: normalized.ToolChoiceRequired}, nil
		case "none":
			return normalized.ToolChoice{Type: normalized.ToolChoiceNone}, nil
		}
	}

	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &named); err != nil {
		return normalized.ToolChoice{}, fmt.Errorf("invalid tool_choice: %w", err)
	}
	return normalized.ToolChoice{Type: normalized.ToolChoiceNamed, Name: named.Function.Name}, nil
}

// FromNormalized converts the normalized model into a dialect-A
// ChatRequest, for use by the fallback executor when the client speaks
// dialect B but is routed to an OpenAI-compatible upstream.
func FromNormalized(req *normalized.Request) (*ChatRequest, error) {
	out := &ChatRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		MaxTokens:        req.MaxTokens,
		Stop:             req.StopSequences,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		N:                req.N,
		Stream:           req.Stream,
		Metadata:         req.Metadata,
	}

	for _, m := range req.Messages {
		msgs, err := messageFromNormalized(m)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, msgs...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Type: "function",
			Function: ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	if req.ToolChoice.Type != "" {
		tc, err := toolChoiceFromNormalized(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = tc
	}

	return out, nil
}

// messageFromNormalized may expand one normalized Message into several
// dialect-A messages: a ToolResultContent part becomes its own role:"tool"
// message, since dialect A cannot nest tool results inside another role.
func messageFromNormalized(m normalized.Message) ([]Message, error) {
	var out []Message
	base := Message{Role: string(m.Role)}

	var contentParts []ContentPart
	var toolCalls []ToolCall

	for _, part := range m.Content {
		switch p := part.(type) {
		case normalized.TextContent:
			contentParts = append(contentParts, ContentPart{Type: "text", Text: p.Text})
		case normalized.ReasoningContent:
			// Dialect A has no reasoning slot on outbound messages; dropped
			// here (it is preserved only across same-dialect round trips).
			continue
		case normalized.ImageContent:
			url := p.Source.URL
			if url == "" && len(p.Source.Data) > 0 {
				return nil, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: "inline image bytes require data-URL encoding before reaching this converter"}
			}
			contentParts = append(contentParts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}})
		case normalized.ToolUseContent:
			toolCalls = append(toolCalls, ToolCall{
				ID:   p.ID,
				Type: "function",
				Function: ToolCallFunc{
					Name:      p.Name,
					Arguments: string(p.Arguments),
				},
			})
		case normalized.ToolResultContent:
			text, err := toolResultText(p)
			if err != nil {
				return nil, err
			}
			out = append(out, Message{
				Role:       "tool",
				ToolCallID: p.ToolUseID,
				Content:    ContentUnion{Text: text},
			})
		default:
			return nil, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: fmt.Sprintf("content part %q has no dialect-A representation", part.Kind())}
		}
	}

	if len(contentParts) == 1 && contentParts[0].Type == "text" {
		base.Content = ContentUnion{Text: contentParts[0].Text}
	} else if len(contentParts) > 0 {
		base.Content = ContentUnion{Parts: contentParts}
	}
	base.ToolCalls = toolCalls

	if !base.Content.IsEmpty() || len(base.ToolCalls) > 0 {
		// Keep message ordering stable: the base (text/tool_calls) message
		// first, any expanded tool-result messages after.
		out = append([]Message{base}, out...)
	}

	return out, nil
}

func toolResultText(p normalized.ToolResultContent) (string, error) {
	var sb strings.Builder
	for _, part := range p.Content {
		if t, ok := part.(normalized.TextContent); ok {
			sb.WriteString(t.Text)
			continue
		}
		return "", &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: "tool result content part has no dialect-A representation"}
	}
	return sb.String(), nil
}

func toolChoiceFromNormalized(tc normalized.ToolChoice) (json.RawMessage, error) {
	switch tc.Type {
	case normalized.ToolChoiceAuto:
		return json.Marshal("auto")
	case normalized.ToolChoiceRequired:
		return json.Marshal("required")
	case normalized.ToolChoiceNone:
		return json.Marshal("none")
	case normalized.ToolChoiceNamed:
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.Name},
		})
	default:
		return nil, fmt.Errorf("unknown tool choice type %q", tc.Type)
	}
}
