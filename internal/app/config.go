package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/driftwell/clauding/internal/router"
	"github.com/driftwell/clauding/internal/tokenstore"
	"github.com/driftwell/clauding/internal/translate"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Default configuration values.
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4000
	DefaultConfigShutdownTimeout = 30 * time.Second
	DefaultRequestTimeoutSeconds = 120
	DefaultMinTokensLimit        = 1
	DefaultMaxTokensLimit        = 8192
	DefaultUsageDBPath           = "clauding-usage.db"
)

// TierEndpointConfig is one tier's flat override fields, the shape a TOML
// file or CLI flag set naturally produces. app.Config carries one of
// these per tier (big/middle/small); ToRouterConfig collapses them into
// the router's TierConfig (explicit-absence-via-nil-pointer) shape.
type TierEndpointConfig struct {
	Model          string `json:"model"`
	EnableEndpoint bool   `json:"enable_endpoint"`
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
}

// ReasoningConfig holds the global default reasoning policy, overridden
// per-request by a model name's `:effort` / `:N[k]` suffix.
type ReasoningConfig struct {
	Effort    string `json:"effort" validate:"omitempty,oneof=low medium high"`
	MaxTokens int    `json:"max_tokens"`
	Exclude   bool   `json:"exclude"`
	Verbosity string `json:"verbosity" validate:"omitempty,oneof=low default high"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	Timeout time.Duration `json:"timeout"`
}

// UsageConfig controls the optional request-accounting subsystem.
type UsageConfig struct {
	Track  bool   `json:"track"`
	DBPath string `json:"db_path"`
}

// Config holds the gateway's complete runtime configuration. Loaded once
// at startup (config file, then env vars, then CLI flags, in ascending
// precedence; defaults fill only fields left unset) and never mutated directly — a reload builds a
// new Config and swaps it into the running App (see app.go).
type Config struct {
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json"`

	Server   ServerConfig   `json:"server"`
	Shutdown ShutdownConfig `json:"shutdown"`

	// ProxyAuthKey enforces client auth on /v1/messages and /v1/models
	// when non-empty. May be a tokenstore reference (file://, env://,
	// keyring://) resolved at load time, same as the API key fields.
	ProxyAuthKey string `json:"proxy_auth_key"`

	ProviderBaseURL string `json:"provider_base_url" validate:"required,url"`
	ProviderAPIKey  string `json:"provider_api_key"`

	BigModel    TierEndpointConfig `json:"big"`
	MiddleModel TierEndpointConfig `json:"middle"`
	SmallModel  TierEndpointConfig `json:"small"`

	Reasoning ReasoningConfig `json:"reasoning"`

	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
	MaxTokensLimit        int `json:"max_tokens_limit"`
	MinTokensLimit        int `json:"min_tokens_limit"`

	Usage UsageConfig `json:"usage"`

	// CustomHeaders is added to every backend call verbatim (e.g. an
	// OpenRouter HTTP-Referer, or a gateway-specific routing header).
	CustomHeaders map[string]string `json:"custom_headers"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if c.MaxTokensLimit == 0 {
		c.MaxTokensLimit = DefaultMaxTokensLimit
	}
	if c.MinTokensLimit == 0 {
		c.MinTokensLimit = DefaultMinTokensLimit
	}
	if c.Usage.Track && c.Usage.DBPath == "" {
		c.Usage.DBPath = DefaultUsageDBPath
	}
	if c.BigModel.Model == "" {
		c.BigModel.Model = "gpt-5"
	}
	if c.MiddleModel.Model == "" {
		c.MiddleModel.Model = "gpt-5-mini"
	}
	if c.SmallModel.Model == "" {
		c.SmallModel.Model = "gpt-5-nano"
	}
}

// Validate validates the configuration using struct tags and cross-field
// rules, after credential references have already been resolved by
// ResolveCredentials.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for name, tier := range map[string]TierEndpointConfig{"big": c.BigModel, "middle": c.MiddleModel, "small": c.SmallModel} {
		if tier.EnableEndpoint && tier.Endpoint == "" {
			return fmt.Errorf("%s: enable_endpoint set but endpoint is empty", name)
		}
	}
	return nil
}

// ResolveCredentials resolves every field that may carry a tokenstore
// reference (file://, env://, keyring://) into its literal value. Must
// run before Validate and before ToRouterConfig, so that a missing or
// unreadable credential fails startup rather than the first request
// that needs it.
func (c *Config) ResolveCredentials(ctx context.Context) error {
	resolved, err := tokenstore.Resolve(ctx, c.ProviderAPIKey)
	if err != nil {
		return fmt.Errorf("resolve provider_api_key: %w", err)
	}
	c.ProviderAPIKey = resolved

	if c.ProxyAuthKey != "" {
		resolved, err := tokenstore.Resolve(ctx, c.ProxyAuthKey)
		if err != nil {
			return fmt.Errorf("resolve proxy_auth_key: %w", err)
		}
		c.ProxyAuthKey = resolved
	}

	tiers := []*TierEndpointConfig{&c.BigModel, &c.MiddleModel, &c.SmallModel}
	names := []string{"big", "middle", "small"}
	for i, t := range tiers {
		if t.APIKey == "" {
			continue
		}
		resolved, err := tokenstore.Resolve(ctx, t.APIKey)
		if err != nil {
			return fmt.Errorf("resolve %s_api_key: %w", names[i], err)
		}
		t.APIKey = resolved
	}
	return nil
}

// ToRouterConfig collapses the flat per-tier fields into the router's
// explicit-absence-via-nil-pointer TierConfig shape.
func (c *Config) ToRouterConfig() router.Config {
	globalPolicy := c.globalReasoningPolicy()
	return router.Config{
		ProviderBaseURL: c.ProviderBaseURL,
		ProviderAPIKey:  c.ProviderAPIKey,
		Tiers: []router.TierConfig{
			c.tierConfig(router.Big, c.BigModel, globalPolicy),
			c.tierConfig(router.Middle, c.MiddleModel, globalPolicy),
			c.tierConfig(router.Small, c.SmallModel, globalPolicy),
		},
	}
}

func (c *Config) globalReasoningPolicy() *router.ReasoningPolicy {
	if c.Reasoning.Effort == "" && c.Reasoning.MaxTokens == 0 {
		return nil
	}
	p := &router.ReasoningPolicy{Exclude: c.Reasoning.Exclude, Verbosity: c.Reasoning.Verbosity}
	if c.Reasoning.MaxTokens > 0 {
		p.Mode = router.ReasoningBudget
		p.MaxTokens = router.ClampBudget(c.Reasoning.MaxTokens)
	} else {
		p.Mode = router.ReasoningEffort
		p.Effort = c.Reasoning.Effort
	}
	return p
}

func (c *Config) tierConfig(tier router.Tier, t TierEndpointConfig, globalPolicy *router.ReasoningPolicy) router.TierConfig {
	rc := router.TierConfig{Tier: tier, Model: t.Model, ReasoningPolicy: globalPolicy}
	if t.EnableEndpoint && t.Endpoint != "" {
		rc.Endpoint = &t.Endpoint
	}
	if t.APIKey != "" {
		rc.APIKey = &t.APIKey
	}
	return rc
}

// RequestTransformer builds the RequestTransformer this Config implies.
func (c *Config) RequestTransformer() translate.RequestTransformer {
	return translate.RequestTransformer{
		MinTokensLimit: c.MinTokensLimit,
		MaxTokensLimit: c.MaxTokensLimit,
	}
}

// RequestTimeout is RequestTimeoutSeconds as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
