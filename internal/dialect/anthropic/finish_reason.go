package anthropic

import "github.com/lunaroute/lunaroute/internal/normalized"

// ToNormalizedFinishReason maps dialect B's stop_reason strings onto the
// normalized taxonomy (§4.1).
func ToNormalizedFinishReason(reason string) normalized.FinishReason {
	switch reason {
	case "end_turn":
		return normalized.FinishEndTurn
	case "max_tokens":
		return normalized.FinishMaxTokens
	case "tool_use":
		return normalized.FinishToolUse
	case "stop_sequence":
		return normalized.FinishStopSequence
	default:
		return normalized.FinishError
	}
}

// FromNormalizedFinishReason maps the normalized taxonomy back onto
// dialect B's stop_reason strings. Round-trips with
// ToNormalizedFinishReason for every value dialect B can express.
func FromNormalizedFinishReason(reason normalized.FinishReason) string {
	switch reason {
	case normalized.FinishEndTurn:
		return "end_turn"
	case normalized.FinishMaxTokens:
		return "max_tokens"
	case normalized.FinishToolUse:
		return "tool_use"
	case normalized.FinishStopSequence:
		return "stop_sequence"
	case normalized.FinishContentFilter:
		// Dialect B has no dedicated content-filter stop reason.
		return "end_turn"
	default:
		return "end_turn"
	}
}
