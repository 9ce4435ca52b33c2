package openai

import "github.com/lunaroute/lunaroute/internal/normalized"

// ToNormalizedFinishReason maps dialect A's finish_reason strings onto the
// normalized taxonomy (§4.1).
func ToNormalizedFinishReason(reason string) normalized.FinishReason {
	switch reason {
	case "stop":
		return normalized.FinishEndTurn
	case "length":
		return normalized.FinishMaxTokens
	case "tool_calls", "function_call":
		return normalized.FinishToolUse
	case "content_filter":
		return normalized.FinishContentFilter
	default:
		return normalized.FinishError
	}
}

// FromNormalizedFinishReason maps the normalized taxonomy back onto
// dialect A's finish_reason strings. Round-trips with
// ToNormalizedFinishReason for every value dialect A can express.
func FromNormalizedFinishReason(reason normalized.FinishReason) string {
	switch reason {
	case normalized.FinishEndTurn:
		return "stop"
	case normalized.FinishMaxTokens:
		return "length"
	case normalized.FinishToolUse:
		return "tool_calls"
	case normalized.FinishContentFilter:
		return "content_filter"
	case normalized.FinishStopSequence:
		// Dialect A has no dedicated stop_sequence reason; "stop" is the
		// closest expressible value.
		return "stop"
	default:
		return "stop"
	}
}
