// Package upstream implements router.Dispatcher and router.StreamDispatcher
// against the real Anthropic and OpenAI HTTP APIs, gluing the dialect
// converters (internal/dialect/...) to the pooled transport (internal/transport).
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lunaroute/lunaroute/internal/transport"
)

// Dialect identifies which wire format a provider speaks.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic"
	DialectOpenAI    Dialect = "openai"
)

// Provider is one configured upstream.
type Provider struct {
	Name    string
	Dialect Dialect
	BaseURL string
	APIKey  string

	httpClient *http.Client
	retry      transport.RetryConfig
	limiter    *rate.Limiter
}

// SetRateLimit caps outbound calls to this provider at rps requests per
// second with the given burst, grounded on the teacher's token-bucket
// example (examples/middleware/rate-limiting). A nil limiter (the
// default) applies no limiting.
func (p *Provider) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		p.limiter = nil
		return
	}
	p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// NewProvider builds a Provider with the gateway's default transport and
// retry tuning (§4.2).
func NewProvider(name string, dialect Dialect, baseURL, apiKey string) *Provider {
	return NewProviderWithTimeouts(name, dialect, baseURL, apiKey, 0, 0)
}

// NewProviderWithTimeouts builds a Provider whose pooled client honors
// per-provider connect/total timeouts from config (§6 provider.connect_timeout,
// provider.total_timeout); zero values fall back to transport's defaults.
func NewProviderWithTimeouts(name string, dialect Dialect, baseURL, apiKey string, connectTimeout, totalTimeout time.Duration) *Provider {
	clientCfg := transport.DefaultClientConfig()
	if connectTimeout > 0 {
		clientCfg.ConnectTimeout = connectTimeout
	}
	if totalTimeout > 0 {
		clientCfg.TotalTimeout = totalTimeout
	}
	return &Provider{
		Name:       name,
		Dialect:    dialect,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		httpClient: transport.NewClient(clientCfg),
		retry:      transport.DefaultRetryConfig(),
	}
}

// anthropicMessagesPath and openAIChatCompletionsPath are the upstream routes each
// dialect's real API exposes (§6).
const (
	anthropicMessagesPath      = "/v1/messages"
	openAIChatCompletionsPath  = "/v1/chat/completions"
	anthropicVersionHeader     = "2023-06-01"
)

func (p *Provider) endpoint() string {
	switch p.Dialect {
	case DialectAnthropic:
		return p.BaseURL + anthropicMessagesPath
	default:
		return p.BaseURL + openAIChatCompletionsPath
	}
}

func (p *Provider) authHeaders(clientForwardedKey string) http.Header {
	key := p.APIKey
	if clientForwardedKey != "" {
		key = clientForwardedKey
	}
	h := make(http.Header)
	switch p.Dialect {
	case DialectAnthropic:
		h.Set("x-api-key", key)
		h.Set("anthropic-version", anthropicVersionHeader)
	default:
		h.Set("Authorization", "Bearer "+key)
	}
	h.Set("Content-Type", "application/json")
	return h
}

// idleReadTimeout bounds how long a streaming read may wait for the next
// byte before the gateway treats the upstream as stalled (§5).
const idleReadTimeout = 30 * time.Second

// idleTimeoutReader fails a Read that sits idle longer than timeout. The
// underlying Read always runs to completion in its own goroutine; on
// timeout we call cancel, which aborts the HTTP request's connection
// (net/http closes the body read when its context is canceled) so the
// abandoned goroutine unblocks instead of leaking forever.
type idleTimeoutReader struct {
	ctx     context.Context
	cancel  context.CancelFunc
	r       io.Reader
	timeout time.Duration
}

func newIdleTimeoutReader(ctx context.Context, cancel context.CancelFunc, r io.Reader, timeout time.Duration) *idleTimeoutReader {
	return &idleTimeoutReader{ctx: ctx, cancel: cancel, r: r, timeout: timeout}
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := r.r.Read(p)
		ch <- result{n, err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.n, res.err
	case <-timer.C:
		r.cancel()
		return 0, fmt.Errorf("stream idle for %s, aborting", r.timeout)
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	}
}
