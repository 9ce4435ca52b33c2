package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/lunaroute/lunaroute/internal/dialect/anthropic"
	"github.com/lunaroute/lunaroute/internal/dialect/openai"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/transport"
)

// forwardedKeyCtxKey, if present in a request's context, overrides the
// provider's configured API key with the client's own forwarded
// credential (§6 "either the configured server key or the client's
// forwarded key").
type forwardedKeyCtxKey struct{}

// WithForwardedKey attaches a client-supplied credential to ctx so
// Client.Dispatch/DispatchStream forward it instead of the provider's
// configured key.
func WithForwardedKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, forwardedKeyCtxKey{}, key)
}

func forwardedKeyFrom(ctx context.Context) string {
	v, _ := ctx.Value(forwardedKeyCtxKey{}).(string)
	return v
}

// Client dispatches normalized requests to configured providers. It
// implements both router.Dispatcher and router.StreamDispatcher.
type Client struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewClient returns a Client with no providers registered.
func NewClient() *Client {
	return &Client{providers: make(map[string]*Provider)}
}

// Register adds or replaces a provider by name.
func (c *Client) Register(p *Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[p.Name] = p
}

func (c *Client) get(name string) (*Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	if !ok {
		return nil, normalized.NewError(normalized.KindValidation, fmt.Sprintf("unknown provider %q", name), nil)
	}
	return p, nil
}

// DialectOf returns the configured dialect for providerName, used by the
// ingress passthrough fast path to decide whether raw bytes can be
// forwarded without normalization (§4.4).
func (c *Client) DialectOf(providerName string) (Dialect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[providerName]
	if !ok {
		return "", false
	}
	return p.Dialect, true
}

// Forward posts a raw, already-encoded body straight to providerName and
// returns the upstream's raw *http.Response, unread and undecoded. It is
// a single attempt with no retry or fallback: the passthrough fast path
// trades the router's resilience machinery for zero JSON overhead on the
// hot path (§4.4). Forward does not record outcomes in breaker or health
// state; its caller does.
func (c *Client) Forward(ctx context.Context, providerName string, body []byte, forwardedKey string) (*http.Response, error) {
	p, err := c.get(providerName)
	if err != nil {
		return nil, err
	}
	resp, err := p.post(ctx, body, forwardedKey)
	if err != nil {
		return nil, classifyIOError(p.Name, err)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, classifyStatusError(p.Name, resp.StatusCode, data)
	}
	return resp, nil
}

// Dispatch implements router.Dispatcher for the non-streaming path.
func (c *Client) Dispatch(ctx context.Context, providerName string, req *normalized.Request) (*normalized.Response, error) {
	p, err := c.get(providerName)
	if err != nil {
		return nil, err
	}

	body, err := encodeRequest(p.Dialect, req)
	if err != nil {
		return nil, err
	}

	var respBody []byte
	attemptErr := transport.Do(ctx, p.retry, func(ctx context.Context) error {
		httpResp, err := p.post(ctx, body, forwardedKeyFrom(ctx))
		if err != nil {
			return classifyIOError(p.Name, err)
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return classifyIOError(p.Name, err)
		}

		if httpResp.StatusCode >= 400 {
			return classifyStatusError(p.Name, httpResp.StatusCode, data)
		}
		respBody = data
		return nil
	})
	if attemptErr != nil {
		return nil, attemptErr
	}

	return decodeResponse(p.Dialect, respBody)
}

// DispatchStream implements router.StreamDispatcher. No retry is applied
// once the HTTP response headers are received and the body begins
// streaming — the first byte commits the call (§4.2).
func (c *Client) DispatchStream(ctx context.Context, providerName string, req *normalized.Request, onEvent func(normalized.StreamEvent)) error {
	p, err := c.get(providerName)
	if err != nil {
		return err
	}

	streamReq := *req
	streamReq.Stream = true
	body, err := encodeRequest(p.Dialect, &streamReq)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var httpResp *http.Response
	attemptErr := transport.Do(streamCtx, p.retry, func(ctx context.Context) error {
		resp, err := p.post(ctx, body, forwardedKeyFrom(ctx))
		if err != nil {
			return classifyIOError(p.Name, err)
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return classifyStatusError(p.Name, resp.StatusCode, data)
		}
		httpResp = resp
		return nil
	})
	if attemptErr != nil {
		return attemptErr
	}
	defer httpResp.Body.Close()

	reader := newIdleTimeoutReader(streamCtx, cancel, httpResp.Body, idleReadTimeout)
	return streamEvents(p.Dialect, reader, onEvent)
}

func (p *Provider) post(ctx context.Context, body []byte, forwardedKey string) (*http.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header = p.authHeaders(forwardedKey)
	return p.httpClient.Do(httpReq)
}

// encodeRequest converts a normalized request to the target dialect's
// wire JSON.
func encodeRequest(d Dialect, req *normalized.Request) ([]byte, error) {
	switch d {
	case DialectAnthropic:
		wire, err := anthropic.FromNormalized(req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wire)
	default:
		wire, err := openai.FromNormalized(req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wire)
	}
}

func decodeResponse(d Dialect, data []byte) (*normalized.Response, error) {
	switch d {
	case DialectAnthropic:
		var wire anthropic.MessagesResponse
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decoding anthropic response: %w", err)
		}
		return anthropic.ResponseToNormalized(&wire)
	default:
		var wire openai.ChatResponse
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("decoding openai response: %w", err)
		}
		return openai.ResponseToNormalized(&wire)
	}
}

// streamEvents reads SSE frames off body, decodes them per dialect, and
// delivers every resulting normalized.StreamEvent to onEvent in order.
func streamEvents(d Dialect, body io.Reader, onEvent func(normalized.StreamEvent)) error {
	parser := transport.NewSSEParser(body)

	switch d {
	case DialectAnthropic:
		conv := anthropic.NewStreamToNormalized()
		for {
			frame, err := parser.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return normalized.NewError(normalized.KindStreamAborted, err.Error(), err)
			}
			var wireEv anthropic.StreamEvent
			if err := json.Unmarshal([]byte(frame.Data), &wireEv); err != nil {
				return normalized.NewError(normalized.KindStreamAborted, "malformed upstream event", err)
			}
			if wireEv.Type == "" {
				wireEv.Type = frame.Event
			}
			events, err := conv.Convert(&wireEv)
			if err != nil {
				return normalized.NewError(normalized.KindStreamAborted, err.Error(), err)
			}
			for _, ev := range events {
				onEvent(ev)
			}
		}
	default:
		conv := openai.NewStreamToNormalized()
		for {
			frame, err := parser.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return normalized.NewError(normalized.KindStreamAborted, err.Error(), err)
			}
			if transport.IsDone(frame) {
				return nil
			}
			var chunk openai.ChatChunk
			if err := json.Unmarshal([]byte(frame.Data), &chunk); err != nil {
				return normalized.NewError(normalized.KindStreamAborted, "malformed upstream chunk", err)
			}
			for _, ev := range conv.Convert(&chunk) {
				onEvent(ev)
			}
		}
	}
}

// classifyIOError wraps a connection-level failure as UpstreamUnavailable
// (§7) so the retry policy and circuit breaker treat it consistently.
func classifyIOError(provider string, err error) *normalized.GatewayError {
	return &normalized.GatewayError{Kind: normalized.KindUpstreamUnavailable, Upstream: provider, Message: err.Error(), Cause: err}
}

// classifyStatusError maps an upstream HTTP status to the error taxonomy.
func classifyStatusError(provider string, status int, body []byte) error {
	statusErr := &transport.StatusError{StatusCode: status, Body: body}
	kind := normalized.KindUpstreamUnavailable
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = normalized.KindAuth
	case http.StatusTooManyRequests:
		kind = normalized.KindRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = normalized.KindValidation
	}
	return &normalized.GatewayError{Kind: kind, Upstream: provider, Message: fmt.Sprintf("upstream HTTP %d: %s", status, truncate(body, 500)), Cause: statusErr}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
