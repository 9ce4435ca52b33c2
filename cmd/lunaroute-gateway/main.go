// Command lunaroute-gateway is the process entrypoint: it loads
// configuration, wires the router/upstream/ingress collaborators, and
// serves the HTTP routes of spec.md §6 until signaled to stop.
// Grounded on the teacher's examples/chi-server, extended with the
// signal-driven graceful shutdown of haasonsaas-nexus's cmd/nexus-edge
// (§6 "exit codes: 0 normal shutdown; 2 configuration error; 1
// unhandled runtime error").
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/lunaroute/lunaroute/internal/config"
	"github.com/lunaroute/lunaroute/internal/ingress"
	"github.com/lunaroute/lunaroute/internal/normalized"
	"github.com/lunaroute/lunaroute/internal/obsmetrics"
	"github.com/lunaroute/lunaroute/internal/observer"
	"github.com/lunaroute/lunaroute/internal/obsotel"
	"github.com/lunaroute/lunaroute/internal/router"
	"github.com/lunaroute/lunaroute/internal/upstream"
)

const (
	exitOK         = 0
	exitRuntimeErr = 1
	exitConfigErr  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err)
		return exitConfigErr
	}

	registry := prometheus.NewRegistry()
	metrics := obsmetrics.New(registry)

	tracer, shutdownTracer, err := obsotel.NewTracerProvider(context.Background(), obsotel.TraceConfig{
		ServiceName: "lunaroute-gateway",
		Endpoint:    os.Getenv("LUNAROUTE_OTEL_ENDPOINT"),
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		return exitConfigErr
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	sink, stopSink := buildObserverSink(cfg, tracer, logger, metrics)
	defer stopSink()

	upstreamClient, err := buildUpstreamClient(cfg)
	if err != nil {
		logger.Error("failed to configure providers", "error", err)
		return exitConfigErr
	}

	ruleTable, err := buildRuleTable(cfg.Rules)
	if err != nil {
		logger.Error("failed to compile routing rules", "error", err)
		return exitConfigErr
	}

	breakerCfg := router.BreakerConfig{
		FailureThreshold: uint64(cfg.Breaker.FailureThreshold),
		SuccessThreshold: uint64(cfg.Breaker.SuccessThreshold),
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSecs) * time.Second,
	}
	healthCfg := router.HealthConfig{
		WindowSize:      cfg.Health.WindowSize,
		HealthyMinRate:  cfg.Health.HealthyMinRate,
		DegradedMinRate: cfg.Health.DegradedMinRate,
	}
	reg := router.NewRegistry(breakerCfg, healthCfg)
	rt := router.NewRouter(ruleTable, reg)

	providerNames := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		providerNames = append(providerNames, name)
	}

	handler := &ingress.Handler{
		Router:         rt,
		Upstream:       upstreamClient,
		Metrics:        metrics,
		Observer:       sink,
		Limits:         normalized.SamplingLimits{MaxTemperature: 2.0},
		ProviderNames:  providerNames,
		Gatherer:       registry,
		RequestTimeout: 60 * time.Second,
	}

	srv := &http.Server{
		Addr:              cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			return exitRuntimeErr
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return exitRuntimeErr
	}

	return exitOK
}

// buildUpstreamClient registers every enabled provider, grounded on
// upstream.Provider's dialect/name/base-URL model (§6 "providers.<name>").
func buildUpstreamClient(cfg *config.Config) (*upstream.Client, error) {
	client := upstream.NewClient()

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		dialect := upstream.DialectOpenAI
		if name == "anthropic" {
			dialect = upstream.DialectAnthropic
		}
		p := upstream.NewProviderWithTimeouts(name, dialect, pc.BaseURL, pc.APIKey, pc.ConnectTimeout, pc.TotalTimeout)
		if pc.RateLimitRPS > 0 {
			p.SetRateLimit(pc.RateLimitRPS, pc.RateLimitBurst)
		}
		client.Register(p)
	}

	return client, nil
}

// buildRuleTable converts config.RuleConfig into router.Rule. A
// strategy-bearing rule's Primary is a comma-separated candidate pool
// (§9 open question: spec.md's "primary" key is singular in the base
// case but routing.rules[] also carries strategy/weights, which only
// make sense over more than one candidate).
func buildRuleTable(rules []config.RuleConfig) (*router.RuleTable, error) {
	out := make([]*router.Rule, 0, len(rules))
	for _, rc := range rules {
		out = append(out, &router.Rule{
			Name:         rc.Name,
			ModelPattern: rc.ModelPattern,
			Listener:     router.Listener(rc.Listener),
			Primaries:    splitPrimaries(rc.Primary),
			Fallbacks:    rc.Fallbacks,
			Strategy:     router.StrategyKind(rc.Strategy),
			Weights:      rc.Weights,
		})
	}
	return router.NewRuleTable(out)
}

func splitPrimaries(primary string) []string {
	parts := strings.Split(primary, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buildObserverSink wires the configured observer fan-out: a bounded
// channel sink draining to structured logs, plus an OTel span sink when
// tracing is enabled. Returns a stop func that drains the consumer
// goroutine (§4.5 "observer sink is never blocking the request path").
func buildObserverSink(cfg *config.Config, tracer trace.Tracer, logger *slog.Logger, metrics *obsmetrics.Metrics) (observer.Sink, func()) {
	if !cfg.ObserverEnabled {
		return observer.NopSink{}, func() {}
	}

	channelSink := observer.NewChannelSink(256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range channelSink.Events() {
			logObserverEvent(logger, ev)
		}
	}()

	stop := func() {
		channelSink.Close()
		<-done
		if metrics != nil {
			metrics.ObserverDropped.Add(float64(channelSink.Dropped()))
		}
	}

	return obsotel.NewSpanSink(tracer, channelSink), stop
}

func logObserverEvent(logger *slog.Logger, ev observer.Event) {
	attrs := []any{"kind", string(ev.Kind), "request_id", ev.RequestID, "provider", ev.Provider}
	if ev.Usage != nil {
		attrs = append(attrs, "input_tokens", ev.Usage.InputTokens, "output_tokens", ev.Usage.OutputTokens)
	}
	if ev.Err != nil {
		logger.Error("request lifecycle event", append(attrs, "error", ev.Err)...)
		return
	}
	logger.Info("request lifecycle event", attrs...)
}
