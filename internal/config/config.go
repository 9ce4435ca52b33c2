// Package config loads the gateway's configuration from environment
// variables only. Process bootstrap, config-file parsing, and CLI flags
// are external collaborators' concerns (§1 non-goals); this package
// models the key set of §6 plus the per-provider rate-limit settings
// on ProviderConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderConfig describes one upstream provider.
type ProviderConfig struct {
	Enabled        bool
	APIKey         string
	BaseURL        string
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration

	// RateLimitRPS caps outbound requests to this provider; 0 disables
	// limiting (§9 open question: per-provider rate limiting is an
	// addition beyond spec.md's enumerated config keys).
	RateLimitRPS   float64
	RateLimitBurst int
}

// RuleConfig mirrors one routing.rules[] entry (§6). JSON tags match the
// LUNAROUTE_RULES wire shape exactly since that's the only place this
// struct is ever deserialized.
type RuleConfig struct {
	Name         string   `json:"name"`
	ModelPattern string   `json:"model_pattern,omitempty"`
	Listener     string   `json:"listener,omitempty"`
	Primary      string   `json:"primary"`
	Fallbacks    []string `json:"fallbacks,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
	Weights      []int    `json:"weights,omitempty"`
}

// BreakerConfig mirrors the circuit_breaker key.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	ResetTimeoutSecs int
}

// HealthConfig mirrors the health_monitor key.
type HealthConfig struct {
	WindowSize      int
	HealthyMinRate  float64
	DegradedMinRate float64
}

// Config is the gateway's full runtime configuration (§6).
type Config struct {
	Host string
	Port int

	// APIDialect is the "preferred" dialect. Load validates it; passthrough
	// detection does not consult it (it compares the listener's dialect
	// with the target provider's).
	APIDialect string

	Providers map[string]ProviderConfig
	Rules     []RuleConfig
	Breaker   BreakerConfig
	Health    HealthConfig

	// ObserverEnabled forwards to the observer collaborator; the core
	// only consults this flag (§9 open questions).
	ObserverEnabled bool
}

// envPrefix is the namespace every gateway-specific override lives
// under, per §6 ("environment variables override config values under
// the LUNAROUTE_* prefix").
const envPrefix = "LUNAROUTE_"

// Load builds a Config purely from the process environment. There is no
// file-based source and no flag parsing; callers that need either layer
// it in before calling Load.
func Load() (*Config, error) {
	cfg := &Config{
		Host:       envOr("HOST", "0.0.0.0"),
		APIDialect: envOr("API_DIALECT", "anthropic"),
		Providers:  make(map[string]ProviderConfig),
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			ResetTimeoutSecs: 30,
		},
		Health: HealthConfig{
			WindowSize:      100,
			HealthyMinRate:  0.95,
			DegradedMinRate: 0.50,
		},
	}

	port, err := strconv.Atoi(envOr("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid PORT: %w", err)
	}
	cfg.Port = port

	if cfg.APIDialect != "anthropic" && cfg.APIDialect != "openai" {
		return nil, fmt.Errorf("config: api_dialect must be \"anthropic\" or \"openai\", got %q", cfg.APIDialect)
	}

	anthropicRPS, err := envFloat("ANTHROPIC_RATE_LIMIT_RPS", 0)
	if err != nil {
		return nil, err
	}
	openaiRPS, err := envFloat("OPENAI_RATE_LIMIT_RPS", 0)
	if err != nil {
		return nil, err
	}

	cfg.Providers["anthropic"] = ProviderConfig{
		Enabled:        os.Getenv("ANTHROPIC_API_KEY") != "",
		APIKey:         os.Getenv("ANTHROPIC_API_KEY"),
		BaseURL:        envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		ConnectTimeout: 10 * time.Second,
		TotalTimeout:   60 * time.Second,
		RateLimitRPS:   anthropicRPS,
		RateLimitBurst: int(anthropicRPS) + 1,
	}
	cfg.Providers["openai"] = ProviderConfig{
		Enabled:        os.Getenv("OPENAI_API_KEY") != "",
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		BaseURL:        envOr("OPENAI_BASE_URL", "https://api.openai.com"),
		ConnectTimeout: 10 * time.Second,
		TotalTimeout:   60 * time.Second,
		RateLimitRPS:   openaiRPS,
		RateLimitBurst: int(openaiRPS) + 1,
	}

	cfg.ObserverEnabled = envBool("OBSERVER_ENABLED", false)

	rules, err := loadRules()
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules

	return cfg, nil
}

// loadRules parses LUNAROUTE_RULES as a JSON array mirroring
// routing.rules[] (spec.md §6), or falls back to a default two-rule
// table that fans each dialect's native provider out to the other as
// a fallback.
func loadRules() ([]RuleConfig, error) {
	raw := os.Getenv(envPrefix + "RULES")
	if raw == "" {
		return []RuleConfig{
			{Name: "openai-default", Listener: "openai", Primary: "openai", Fallbacks: []string{"anthropic"}},
			{Name: "anthropic-default", Listener: "anthropic", Primary: "anthropic", Fallbacks: []string{"openai"}},
		}, nil
	}

	var rules []RuleConfig
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("config: invalid LUNAROUTE_RULES: %w", err)
	}
	return rules, nil
}

// envOr reads LUNAROUTE_<name>, falling back to def if unset or empty.
func envOr(name, def string) string {
	if v := os.Getenv(envPrefix + name); v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func envFloat(name string, def float64) (float64, error) {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return f, nil
}
