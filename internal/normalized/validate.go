package normalized

import (
	"encoding/json"
	"fmt"
)

const (
	maxMessageBytes = 1 << 20 // 1 MiB
	maxToolsBytes   = 1 << 20 // 1 MiB
	minMaxTokens    = 1
	maxMaxTokens    = 100000
)

// SamplingLimits bounds the dialect-aware sampling-parameter ranges (§3).
type SamplingLimits struct {
	// MaxTemperature is 2.0 for dialect A, 1.0 for dialect B.
	MaxTemperature float64
}

// Validate checks a Request against the invariants of §3: max_tokens
// range, per-message and tools-JSON size caps, tool schema shape,
// dialect-aware sampling ranges, and the tool_use/tool_result pairing
// invariant. It returns a *GatewayError with Kind KindValidation on
// failure.
func (r *Request) Validate(limits SamplingLimits) error {
	if r.MaxTokens != nil {
		if *r.MaxTokens < minMaxTokens || *r.MaxTokens > maxMaxTokens {
			return NewError(KindValidation, fmt.Sprintf("max_tokens must be in [%d, %d], got %d", minMaxTokens, maxMaxTokens, *r.MaxTokens), nil)
		}
	}

	if err := validateSampling(r, limits); err != nil {
		return err
	}

	for i, msg := range r.Messages {
		size, err := contentSize(msg.Content)
		if err != nil {
			return NewError(KindValidation, fmt.Sprintf("message %d: %v", i, err), err)
		}
		if size > maxMessageBytes {
			return NewError(KindValidation, fmt.Sprintf("message %d exceeds %d bytes after normalization", i, maxMessageBytes), nil)
		}
	}

	if len(r.Tools) > 0 {
		toolsBytes, err := json.Marshal(r.Tools)
		if err != nil {
			return NewError(KindValidation, "tools not serializable", err)
		}
		if len(toolsBytes) > maxToolsBytes {
			return NewError(KindValidation, fmt.Sprintf("tools JSON exceeds %d bytes", maxToolsBytes), nil)
		}
		for _, t := range r.Tools {
			if err := validateToolSchema(t); err != nil {
				return err
			}
		}
	}

	return validateToolPairing(r.Messages)
}

func validateSampling(r *Request, limits SamplingLimits) error {
	if r.Temperature != nil {
		max := limits.MaxTemperature
		if max <= 0 {
			max = 2.0
		}
		if *r.Temperature < 0 || *r.Temperature > max {
			return NewError(KindValidation, fmt.Sprintf("temperature must be in [0, %v]", max), nil)
		}
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return NewError(KindValidation, "top_p must be in [0, 1]", nil)
	}
	if r.TopK != nil && *r.TopK <= 0 {
		return NewError(KindValidation, "top_k must be > 0", nil)
	}
	if r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2 || *r.FrequencyPenalty > 2) {
		return NewError(KindValidation, "frequency_penalty must be in [-2, 2]", nil)
	}
	if r.PresencePenalty != nil && (*r.PresencePenalty < -2 || *r.PresencePenalty > 2) {
		return NewError(KindValidation, "presence_penalty must be in [-2, 2]", nil)
	}
	return nil
}

func contentSize(parts []ContentPart) (int, error) {
	total := 0
	for _, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			return 0, err
		}
		total += len(b)
	}
	return total, nil
}

func validateToolSchema(t Tool) error {
	if len(t.InputSchema) == 0 {
		return NewError(KindValidation, fmt.Sprintf("tool %q: input_schema is required", t.Name), nil)
	}
	var schema map[string]any
	if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
		return NewError(KindValidation, fmt.Sprintf("tool %q: input_schema is not valid JSON", t.Name), err)
	}
	if _, ok := schema["type"]; !ok {
		return NewError(KindValidation, fmt.Sprintf("tool %q: input_schema must have a top-level \"type\" property", t.Name), nil)
	}
	return nil
}

// validateToolPairing enforces: a tool-role message (or an embedded
// ToolResultContent) must reference a ToolUseContent.ID already emitted by
// an earlier assistant message.
func validateToolPairing(messages []Message) error {
	seen := make(map[string]bool)
	for i, msg := range messages {
		if msg.Role == RoleAssistant {
			for _, tu := range msg.ToolUses() {
				seen[tu.ID] = true
			}
			continue
		}

		results := msg.ToolResults()
		if msg.Role == RoleTool && len(results) == 0 {
			return NewError(KindValidation, fmt.Sprintf("message %d: role tool has no tool_result content", i), nil)
		}
		for _, tr := range results {
			if !seen[tr.ToolUseID] {
				return NewError(KindValidation, fmt.Sprintf("message %d: tool_result references unknown tool_use_id %q", i, tr.ToolUseID), nil)
			}
		}
	}
	return nil
}
