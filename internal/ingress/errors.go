package ingress

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

// httpStatusFor maps a GatewayError's taxonomy onto the HTTP status
// clients of either dialect already expect (§7).
func httpStatusFor(kind normalized.ErrorKind) int {
	switch kind {
	case normalized.KindValidation, normalized.KindCapabilityMismatch:
		return http.StatusBadRequest
	case normalized.KindAuth:
		return http.StatusUnauthorized
	case normalized.KindRateLimit:
		return http.StatusTooManyRequests
	case normalized.KindTimeout:
		return http.StatusGatewayTimeout
	case normalized.KindUpstreamUnavailable, normalized.KindCircuitOpen:
		return http.StatusBadGateway
	case normalized.KindStreamAborted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// asGatewayError recovers a *normalized.GatewayError from err, wrapped or
// not, falling back to a generic upstream_unavailable classification for
// errors the core didn't itself construct (e.g. a handler-level I/O
// failure writing the response).
func asGatewayError(err error) *normalized.GatewayError {
	var gwErr *normalized.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &normalized.GatewayError{Kind: normalized.KindUpstreamUnavailable, Message: err.Error(), Cause: err}
}

// writeOpenAIError writes dialect A's error envelope for err.
func writeOpenAIError(w http.ResponseWriter, err error) {
	gwErr := asGatewayError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(gwErr.Kind))
	_ = json.NewEncoder(w).Encode(openai.ErrorEnvelopeForGatewayError(gwErr))
}

// writeAnthropicError writes dialect B's error envelope for err.
func writeAnthropicError(w http.ResponseWriter, err error) {
	gwErr := asGatewayError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusFor(gwErr.Kind))
	_ = json.NewEncoder(w).Encode(anthropic.ErrorEnvelopeForGatewayError(gwErr))
}
