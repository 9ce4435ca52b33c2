package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// ToNormalized converts a dialect-B MessagesRequest into the normalized
// model. The top-level system field becomes a leading RoleSystem message.
func ToNormalized(req *MessagesRequest) (*normalized.Request, error) {
	out := &normalized.Request{
		Model:         req.Model,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		MaxTokens:     &req.MaxTokens,
		StopSequences: req.StopSequences,
		Stream:        req.Stream,
		Metadata:      req.Metadata,
	}

	if req.System != "" {
		out.Messages = append(out.Messages, normalized.Message{
			Role:    normalized.RoleSystem,
			Content: []normalized.ContentPart{normalized.TextContent{Text: req.System}},
		})
	}

	for i, m := range req.Messages {
		nms, err := messageToNormalized(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out.Messages = append(out.Messages, nms...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, normalized.Tool{
			Name:            t.Name,
			Description:     t.Description,
			InputSchema:     t.InputSchema,
			ProviderOptions: cacheControlToProviderOptions(t.CacheControl),
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

// messageToNormalized may expand one dialect-B message into several
// normalized messages: a user message carrying a tool_result block becomes
// a separate RoleTool message, since the normalized model keeps tool
// results on their own role rather than nested inside "user".
func messageToNormalized(m Message) ([]normalized.Message, error) {
	role := normalized.Role(m.Role)

	var regularParts []normalized.ContentPart
	var toolResultParts []normalized.ContentPart

	for _, b := range m.Content {
		switch b.Type {
		case "tool_result":
			content, err := toolResultContentToNormalized(b.Content)
			if err != nil {
				return nil, err
			}
			toolResultParts = append(toolResultParts, normalized.ToolResultContent{
				ToolUseID: b.ToolUseID,
				Content:   content,
				IsError:   b.IsError,
			})
		default:
			p, err := blockToNormalized(b)
			if err != nil {
				return nil, err
			}
			regularParts = append(regularParts, p)
		}
	}

	var out []normalized.Message
	if len(regularParts) > 0 {
		out = append(out, normalized.Message{Role: role, Content: regularParts})
	}
	if len(toolResultParts) > 0 {
		out = append(out, normalized.Message{Role: normalized.RoleTool, Content: toolResultParts})
	}
	return out, nil
}

func blockToNormalized(b Block) (normalized.ContentPart, error) {
	part, err := blockToNormalizedPart(b)
	if err != nil {
		return nil, err
	}
	return withProviderOptions(part, cacheControlToProviderOptions(b.CacheControl)), nil
}

func blockToNormalizedPart(b Block) (normalized.ContentPart, error) {
	switch b.Type {
	case "text":
		return normalized.TextContent{Text: b.Text}, nil
	case "thinking":
		return normalized.ReasoningContent{Text: b.Text}, nil
	case "image":
		if b.Source == nil {
			return nil, fmt.Errorf("image block missing source")
		}
		src := normalized.ImageSource{MimeType: b.Source.MediaType}
		if b.Source.Type == "url" {
			src.URL = b.Source.URL
		} else {
			data, err := base64.StdEncoding.DecodeString(b.Source.Data)
			if err != nil {
				return nil, fmt.Errorf("image block: invalid base64 data: %w", err)
			}
			src.Data = data
		}
		return normalized.ImageContent{Source: src}, nil
	case "tool_use":
		if len(b.Input) > 1<<20 {
			return nil, fmt.Errorf("tool arguments exceed 1 MiB")
		}
		args := b.Input
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		return normalized.ToolUseContent{ID: b.ID, Name: b.Name, Arguments: args}, nil
	default:
		return nil, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: fmt.Sprintf("content block type %q cannot be normalized", b.Type)}
	}
}

// cacheControlToProviderOptions wraps a wire-level cache_control value into
// the normalized model's provider-namespaced ProviderOptions, modeled on
// the teacher's Tool.ProviderOptions["anthropic"] convention. Returns nil
// if raw is empty or malformed, so a block with no cache marker keeps a
// nil ProviderOptions rather than an empty map.
func cacheControlToProviderOptions(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var cc any
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil
	}
	return map[string]any{"anthropic": map[string]any{"cache_control": cc}}
}

// cacheControlFromProviderOptions is the inverse of
// cacheControlToProviderOptions: it extracts the cache_control value back
// out, for re-serialization on a same-dialect round trip.
func cacheControlFromProviderOptions(opts map[string]any) json.RawMessage {
	ns, ok := opts["anthropic"].(map[string]any)
	if !ok {
		return nil
	}
	cc, ok := ns["cache_control"]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(cc)
	if err != nil {
		return nil
	}
	return raw
}

// withProviderOptions attaches opts to the content part's ProviderOptions
// field, if the concrete variant has one and opts is non-nil.
func withProviderOptions(part normalized.ContentPart, opts map[string]any) normalized.ContentPart {
	if opts == nil {
		return part
	}
	switch p := part.(type) {
	case normalized.TextContent:
		p.ProviderOptions = opts
		return p
	case normalized.ReasoningContent:
		p.ProviderOptions = opts
		return p
	case normalized.ImageContent:
		p.ProviderOptions = opts
		return p
	case normalized.ToolUseContent:
		p.ProviderOptions = opts
		return p
	case normalized.ToolResultContent:
		p.ProviderOptions = opts
		return p
	default:
		return part
	}
}

// providerOptionsOf is the read side of withProviderOptions.
func providerOptionsOf(part normalized.ContentPart) map[string]any {
	switch p := part.(type) {
	case normalized.TextContent:
		return p.ProviderOptions
	case normalized.ReasoningContent:
		return p.ProviderOptions
	case normalized.ImageContent:
		return p.ProviderOptions
	case normalized.ToolUseContent:
		return p.ProviderOptions
	case normalized.ToolResultContent:
		return p.ProviderOptions
	default:
		return nil
	}
}

// toolResultContentToNormalized parses a tool_result block's content,
// which is either a bare JSON string or an array of Block.
func toolResultContentToNormalized(raw json.RawMessage) ([]normalized.ContentPart, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []normalized.ContentPart{normalized.TextContent{Text: s}}, nil
	}
	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("tool_result content is neither a string nor a block list: %w", err)
	}
	var out []normalized.ContentPart
	for _, b := range blocks {
		p, err := blockToNormalized(b)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toolChoiceToNormalized(raw json.RawMessage) (normalized.ToolChoice, error) {
	var tc struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &tc); err != nil {
		return normalized.ToolChoice{}, fmt.Errorf("invalid tool_choice: %w", err)
	}
	switch tc.Type {
	case "auto":
		return normalized.ToolChoice{Type: normalized.ToolChoiceAuto}, nil
	case "any":
		return normalized.ToolChoice{Type: normalized.ToolChoiceRequired}, nil
	case "none":
		return normalized.ToolChoice{Type: normalized.ToolChoiceNone}, nil
	case "tool":
		return normalized.ToolChoice{Type: normalized.ToolChoiceNamed, Name: tc.Name}, nil
	default:
		return normalized.ToolChoice{}, fmt.Errorf("unknown tool_choice type %q", tc.Type)
	}
}

// FromNormalized converts the normalized model into a dialect-B
// MessagesRequest. All RoleSystem messages, wherever they appear, are
// concatenated in order
// with a newline separator into the top-level system field (§4.1); they
// are not emitted as messages.
func FromNormalized(req *normalized.Request) (*MessagesRequest, error) {
	out := &MessagesRequest{
		Model:         req.Model,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Stream:        req.Stream,
		Metadata:      req.Metadata,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	var systemParts []string
	var pendingToolResults []Block

	for _, m := range req.Messages {
		if m.Role == normalized.RoleSystem {
			systemParts = append(systemParts, m.Text())
			continue
		}

		if m.Role == normalized.RoleTool {
			blocks, err := toolResultBlocksFromNormalized(m)
			if err != nil {
				return nil, err
			}
			pendingToolResults = append(pendingToolResults, blocks...)
			continue
		}

		blocks, err := blocksFromNormalized(m.Content)
		if err != nil {
			return nil, err
		}

		// A tool-result message is folded into the next user message as
		// leading blocks, matching dialect B's nesting (§4.1). If none
		// follows before the stream ends, it is emitted as its own user
		// message so no content is silently dropped.
		if len(pendingToolResults) > 0 && m.Role == normalized.RoleUser {
			blocks = append(pendingToolResults, blocks...)
			pendingToolResults = nil
		}

		out.Messages = append(out.Messages, Message{Role: string(m.Role), Content: blocks})
	}

	if len(pendingToolResults) > 0 {
		out.Messages = append(out.Messages, Message{Role: "user", Content: pendingToolResults})
	}

	if len(systemParts) > 0 {
		out.System = strings.Join(systemParts, "\n")
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, Tool{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			CacheControl: cacheControlFromProviderOptions(t.ProviderOptions),
		})
	}

	if req.ToolChoice.Type != "" {
		raw, err := toolChoiceFromNormalized(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = raw
	}

	return out, nil
}

func blocksFromNormalized(parts []normalized.ContentPart) ([]Block, error) {
	var out []Block
	for _, part := range parts {
		b, err := blockFromNormalized(part)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func blockFromNormalized(part normalized.ContentPart) (Block, error) {
	b, err := blockFromNormalizedPart(part)
	if err != nil {
		return Block{}, err
	}
	b.CacheControl = cacheControlFromProviderOptions(providerOptionsOf(part))
	return b, nil
}

func blockFromNormalizedPart(part normalized.ContentPart) (Block, error) {
	switch p := part.(type) {
	case normalized.TextContent:
		return Block{Type: "text", Text: p.Text}, nil
	case normalized.ReasoningContent:
		return Block{Type: "thinking", Text: p.Text}, nil
	case normalized.ImageContent:
		src := &ImageSource{MediaType: p.Source.MimeType}
		if p.Source.URL != "" {
			src.Type = "url"
			src.URL = p.Source.URL
		} else {
			src.Type = "base64"
			src.Data = base64.StdEncoding.EncodeToString(p.Source.Data)
		}
		return Block{Type: "image", Source: src}, nil
	case normalized.ToolUseContent:
		return Block{Type: "tool_use", ID: p.ID, Name: p.Name, Input: p.Arguments}, nil
	default:
		return Block{}, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: fmt.Sprintf("content part %q has no dialect-B representation", part.Kind())}
	}
}

func toolResultBlocksFromNormalized(m normalized.Message) ([]Block, error) {
	var out []Block
	for _, part := range m.Content {
		tr, ok := part.(normalized.ToolResultContent)
		if !ok {
			return nil, &normalized.GatewayError{Kind: normalized.KindCapabilityMismatch, Message: "tool role message contains a non-tool_result content part"}
		}
		inner, err := blocksFromNormalized(tr.Content)
		if err != nil {
			return nil, err
		}
		contentJSON, err := json.Marshal(inner)
		if err != nil {
			return nil, err
		}
		out = append(out, Block{Type: "tool_result", ToolUseID: tr.ToolUseID, Content: contentJSON, IsError: tr.IsError})
	}
	return out, nil
}

func toolChoiceFromNormalized(tc normalized.ToolChoice) (json.RawMessage, error) {
	switch tc.Type {
	case normalized.ToolChoiceAuto:
		return json.Marshal(map[string]string{"type": "auto"})
	case normalized.ToolChoiceRequired:
		return json.Marshal(map[string]string{"type": "any"})
	case normalized.ToolChoiceNone:
		return json.Marshal(map[string]string{"type": "none"})
	case normalized.ToolChoiceNamed:
		return json.Marshal(map[string]string{"type": "tool", "name": tc.Name})
	default:
		return nil, fmt.Errorf("unknown tool choice type %q", tc.Type)
	}
}
