package ingress

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/upstream"
)

// shallowRequest extracts just enough of the body to route and validate
// size, without the full dialect conversion (§4.4 "performs no schema
// validation").
type shallowRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// passthroughTarget is the provider a raw-bytes forward would reach, and
// whether it's actually eligible for the fast path right now.
type passthroughTarget struct {
	provider string
	rule     *router.Rule
	eligible bool
}

// resolvePassthrough decides whether the request, whose body already
// matches clientDialect's wire format, can skip normalization entirely:
// the routed primary target must speak the same dialect and must not
// currently have its circuit open (§4.4).
func (h *Handler) resolvePassthrough(model string, listener router.Listener, clientDialect upstream.Dialect) passthroughTarget {
	rule := h.Router.Rules().Match(model, listener)
	if rule == nil {
		return passthroughTarget{}
	}
	targets := rule.Targets()
	if len(targets) == 0 {
		return passthroughTarget{rule: rule}
	}
	primary := targets[0]

	dialect, ok := h.Upstream.DialectOf(primary)
	if !ok || dialect != clientDialect {
		return passthroughTarget{provider: primary, rule: rule}
	}

	state := h.Router.Registry().Get(primary)
	if !state.Breaker.Allow() {
		return passthroughTarget{provider: primary, rule: rule}
	}

	return passthroughTarget{provider: primary, rule: rule, eligible: true}
}

// forwardedKeyFromRequest extracts whichever credential the client sent,
// matching both dialects' native auth header (§6).
func forwardedKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// forwardPassthrough posts body straight to target and streams (or
// copies) the upstream's raw response back to w, recording breaker and
// health outcomes directly since the fast path bypasses Router.Route.
// writeErr writes the dialect-appropriate error envelope on failure.
func (h *Handler) forwardPassthrough(w http.ResponseWriter, r *http.Request, target string, body []byte, streaming bool, writeErr func(http.ResponseWriter, error)) {
	state := h.Router.Registry().Get(target)
	forwardedKey := forwardedKeyFromRequest(r)

	resp, err := h.Upstream.Forward(r.Context(), target, body, forwardedKey)
	if err != nil {
		if r.Context().Err() == nil {
			state.Breaker.RecordFailure()
			state.Health.RecordFailure()
		}
		h.publishCompleted(r, target, nil, err)
		writeErr(w, err)
		return
	}
	defer resp.Body.Close()

	state.Breaker.RecordSuccess()
	state.Health.RecordSuccess()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	usage := copyPassthroughBody(w, resp.Body, streaming)
	h.publishPassthroughCompleted(r, target, usage)
}

// copyPassthroughBody relays resp.Body to w. For streaming it copies the
// body line by line (bufio.Scanner), flushing after every line, and
// shallow-parses the last "data: " payload other than [DONE] for the
// observer event's usage; for non-streaming it copies the full body and
// shallow-parses it directly.
func copyPassthroughBody(w http.ResponseWriter, body io.Reader, streaming bool) *shallowUsage {
	flusher, _ := w.(interface{ Flush() })

	if !streaming {
		data, _ := io.ReadAll(body)
		_, _ = w.Write(data)
		return parseShallowUsage(data)
	}

	var lastData []byte
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			break
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok && data != "[DONE]" {
			lastData = []byte(data)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return parseShallowUsage(lastData)
}

// shallowUsage captures both dialects' usage field names without a full
// response decode, per §4.4 "usage extracted by shallow parsing".
type shallowUsage struct {
	// dialect A
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	// dialect B
	AnthropicUsage *struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"-"`
}

func parseShallowUsage(data []byte) *shallowUsage {
	if len(data) == 0 {
		return nil
	}
	var raw struct {
		Usage *struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
			InputTokens      int64 `json:"input_tokens"`
			OutputTokens     int64 `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.Usage == nil {
		return nil
	}
	su := &shallowUsage{}
	if raw.Usage.PromptTokens != 0 || raw.Usage.CompletionTokens != 0 {
		su.Usage = &struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		}{raw.Usage.PromptTokens, raw.Usage.CompletionTokens}
	}
	if raw.Usage.InputTokens != 0 || raw.Usage.OutputTokens != 0 {
		su.AnthropicUsage = &struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
		}{raw.Usage.InputTokens, raw.Usage.OutputTokens}
	}
	return su
}
