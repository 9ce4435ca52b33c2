package anthropic

import "github.com/lunaroute/lunaroute/internal/normalized"

// ErrorEnvelopeForGatewayError builds dialect B's error body from a
// GatewayError (§7), mapping the taxonomy onto the type strings real
// Anthropic clients already branch on.
func ErrorEnvelopeForGatewayError(err *normalized.GatewayError) ErrorEnvelope {
	typ := "api_error"
	switch err.Kind {
	case normalized.KindValidation, normalized.KindCapabilityMismatch:
		typ = "invalid_request_error"
	case normalized.KindAuth:
		typ = "authentication_error"
	case normalized.KindRateLimit:
		typ = "rate_limit_error"
	case normalized.KindTimeout, normalized.KindUpstreamUnavailable:
		typ = "overloaded_error"
	}
	return ErrorEnvelope{Type: "error", Error: ErrorBody{Type: typ, Message: err.Message}}
}
