package ingress

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/upstream"
)

// newTestHandler wires a real Router and upstream.Client (pointed at a
// fake provider server) the way cmd/lunaroute-gateway/main.go does. The
// fake provider speaks dialect A, the same as the chat-completions
// listener, so requests take the passthrough path (rule table and breaker
// lookup, then upstream.Client.Forward).
func newTestHandler(t *testing.T, openaiURL string) *Handler {
	t.Helper()

	client := upstream.NewClient()
	client.Register(upstream.NewProvider("openai", upstream.DialectOpenAI, openaiURL, "test-key"))

	rules, err := router.NewRuleTable([]*router.Rule{
		{Name: "openai-default", Listener: router.ListenerOpenAI, Primaries: []string{"openai"}},
	})
	require.NoError(t, err)

	reg := router.NewRegistry(router.DefaultBreakerConfig(), router.DefaultHealthConfig())
	rt := router.NewRouter(rules, reg)

	return &Handler{
		Router:        rt,
		Upstream:      client,
		ProviderNames: []string{"openai"},
	}
}

func TestHandleChatCompletions_SameDialectPassthrough(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatResponse{
			ID:      "chatcmpl-1",
			Object:  "chat.completion",
			Model:   "gpt-4o",
			Choices: []openai.Choice{{Index: 0, Message: openai.Message{Role: "assistant"}, FinishReason: "stop"}},
			Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer upstreamSrv.Close()

	h := newTestHandler(t, upstreamSrv.URL)

	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp openai.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "gpt-4o", resp.Model)
	require.Equal(t, int64(15), resp.Usage.TotalTokens)
}

func TestHandleChatCompletions_RejectsOversizedBody(t *testing.T) {
	h := newTestHandler(t, "http://unused.invalid")

	oversized := bytes.Repeat([]byte("a"), maxRequestBodyBytes+1)
	body, _ := json.Marshal(map[string]string{"model": "gpt-4o", "padding": string(oversized)})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChatCompletions_RejectsInvalidJSON(t *testing.T) {
	h := newTestHandler(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	h.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthz(t *testing.T) {
	h := newTestHandler(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyz_ReportsConfiguredProviders(t *testing.T) {
	h := newTestHandler(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["ready"])
}
