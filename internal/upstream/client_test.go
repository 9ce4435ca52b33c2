package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/normalized"
)

func textRequest(model string) *normalized.Request {
	return &normalized.Request{
		Model:    model,
		Messages: []normalized.Message{{Role: normalized.RoleUser, Content: []normalized.ContentPart{normalized.TextContent{Text: "hi"}}}},
	}
}

func TestClient_Dispatch_OpenAIDialect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatResponse{
			Model:   "gpt-4o",
			Choices: []openai.Choice{{Message: openai.Message{Role: "assistant"}, FinishReason: "stop"}},
			Usage:   openai.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		})
	}))
	defer srv.Close()

	c := NewClient()
	c.Register(NewProvider("openai", DialectOpenAI, srv.URL, "test-key"))

	resp, err := c.Dispatch(context.Background(), "openai", textRequest("gpt-4o"))
	require.NoError(t, err)
	require.Equal(t, int64(3), resp.Usage.InputTokens)
	require.Equal(t, int64(4), resp.Usage.OutputTokens)
}

func TestClient_Dispatch_AnthropicDialect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropic.MessagesResponse{
			Model:      "claude-3-opus",
			Role:       "assistant",
			Content:    []anthropic.Block{{Type: "text", Text: "hello"}},
			StopReason: "end_turn",
			Usage:      anthropic.Usage{InputTokens: 5, OutputTokens: 6},
		})
	}))
	defer srv.Close()

	c := NewClient()
	c.Register(NewProvider("anthropic", DialectAnthropic, srv.URL, "test-key"))

	resp, err := c.Dispatch(context.Background(), "anthropic", textRequest("claude-3-opus"))
	require.NoError(t, err)
	require.Equal(t, int64(5), resp.Usage.InputTokens)
	require.Equal(t, int64(6), resp.Usage.OutputTokens)
}

func TestClient_Dispatch_UnknownProvider(t *testing.T) {
	c := NewClient()
	_, err := c.Dispatch(context.Background(), "nope", textRequest("x"))
	require.Error(t, err)
}

func TestClient_Forward_RelaysRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient()
	c.Register(NewProvider("openai", DialectOpenAI, srv.URL, "test-key"))

	resp, err := c.Forward(context.Background(), "openai", []byte(`{"model":"gpt-4o"}`), "")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_DispatchStream_DeliversEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient()
	c.Register(NewProvider("openai", DialectOpenAI, srv.URL, "test-key"))

	var events []normalized.StreamEvent
	err := c.DispatchStream(context.Background(), "openai", textRequest("gpt-4o"), func(ev normalized.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.NotEmpty(t, events)
}

func TestProvider_SetRateLimit_WaitHonorsContextCancellation(t *testing.T) {
	p := NewProvider("openai", DialectOpenAI, "http://unused.invalid", "test-key")
	p.SetRateLimit(1, 1)

	// Burst of 1 lets the first reservation through immediately.
	require.NoError(t, p.limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The second call needs to wait for the next token; with an
	// already-canceled context, Wait must return immediately with an
	// error instead of blocking for the refill.
	err := p.limiter.Wait(ctx)
	require.Error(t, err)
}

func TestProvider_SetRateLimit_ZeroDisablesLimiting(t *testing.T) {
	p := NewProvider("openai", DialectOpenAI, "http://unused.invalid", "test-key")
	p.SetRateLimit(5, 5)
	require.NotNil(t, p.limiter)

	p.SetRateLimit(0, 0)
	require.Nil(t, p.limiter)
}
