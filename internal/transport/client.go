// Package transport implements the pooled upstream HTTP client, retry
// policy, and SSE framing used to talk to provider APIs (§4.3).
package transport

import (
	"net"
	"net/http"
	"time"
)

// ClientConfig configures a pooled per-provider HTTP client.
type ClientConfig struct {
	// ConnectTimeout bounds TCP+TLS handshake time (default 10s).
	ConnectTimeout time.Duration
	// TotalTimeout bounds the entire request including streaming body
	// reads (default 60s). Zero disables it — callers that need an
	// unbounded stream should pass 0 and rely on context cancellation.
	TotalTimeout time.Duration
	// MaxIdleConnsPerHost caps pooled idle connections per upstream host
	// (default 32).
	MaxIdleConnsPerHost int
}

// DefaultClientConfig returns the gateway's default transport tuning.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:      10 * time.Second,
		TotalTimeout:        60 * time.Second,
		MaxIdleConnsPerHost: 32,
	}
}

// NewClient builds an *http.Client tuned per cfg: HTTP/1.1 and HTTP/2 are
// both enabled via the standard transport's protocol negotiation, TCP
// keepalive is on, and idle connections are pooled per host so repeated
// calls to the same provider reuse a warm connection.
func NewClient(cfg ClientConfig) *http.Client {
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 32
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.TotalTimeout,
	}
}
