package openai

import "github.com/lunaroute/lunaroute/internal/normalized"

// ErrorEnvelopeForGatewayError builds dialect A's error body from a
// GatewayError (§7), mapping the taxonomy onto HTTP-adjacent type strings
// clients already expect from the real OpenAI API.
func ErrorEnvelopeForGatewayError(err *normalized.GatewayError) ErrorEnvelope {
	typ := "api_error"
	switch err.Kind {
	case normalized.KindValidation, normalized.KindCapabilityMismatch:
		typ = "invalid_request_error"
	case normalized.KindAuth:
		typ = "authentication_error"
	case normalized.KindRateLimit:
		typ = "rate_limit_error"
	}
	return ErrorEnvelope{Error: ErrorBody{Message: err.Message, Type: typ}}
}
