package app

import (
	"context"
	"os"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		ProviderBaseURL: "https://api.global.example/v1",
		ProviderAPIKey:  "global-key",
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.LogFormat != DefaultConfigLogFormat {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, DefaultConfigLogFormat)
	}
	if cfg.Server.Host != DefaultConfigServerHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultConfigServerHost)
	}
	if cfg.Server.Port != DefaultConfigServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultConfigServerPort)
	}
	if cfg.Shutdown.Timeout != DefaultConfigShutdownTimeout {
		t.Errorf("Shutdown.Timeout = %s, want %s", cfg.Shutdown.Timeout, DefaultConfigShutdownTimeout)
	}
	if cfg.MaxTokensLimit != DefaultMaxTokensLimit || cfg.MinTokensLimit != DefaultMinTokensLimit {
		t.Errorf("token limits = (%d, %d), want (%d, %d)", cfg.MinTokensLimit, cfg.MaxTokensLimit, DefaultMinTokensLimit, DefaultMaxTokensLimit)
	}
	if cfg.BigModel.Model != "gpt-5" || cfg.MiddleModel.Model != "gpt-5-mini" || cfg.SmallModel.Model != "gpt-5-nano" {
		t.Errorf("default tier models = %+v/%+v/%+v", cfg.BigModel, cfg.MiddleModel, cfg.SmallModel)
	}
}

func TestApplyDefaultsLeavesExplicitValuesUntouched(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "0.0.0.0", Port: 9000}}
	cfg.ApplyDefaults()

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("ApplyDefaults overwrote explicit server config: %+v", cfg.Server)
	}
}

func TestApplyDefaultsUsageDBPathOnlyWhenTracking(t *testing.T) {
	untracked := &Config{}
	untracked.ApplyDefaults()
	if untracked.Usage.DBPath != "" {
		t.Errorf("DBPath = %q, want empty when usage.track is false", untracked.Usage.DBPath)
	}

	tracked := &Config{Usage: UsageConfig{Track: true}}
	tracked.ApplyDefaults()
	if tracked.Usage.DBPath != DefaultUsageDBPath {
		t.Errorf("DBPath = %q, want %q", tracked.Usage.DBPath, DefaultUsageDBPath)
	}
}

func TestValidateRequiresProviderBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderBaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing provider_base_url")
	}
}

func TestValidateRejectsInvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid log_format")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsEnabledEndpointWithoutURL(t *testing.T) {
	cfg := validConfig()
	cfg.BigModel.EnableEndpoint = true
	cfg.BigModel.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when enable_endpoint is set but endpoint is empty")
	}
}

func TestValidateAllowsEnabledEndpointWithURL(t *testing.T) {
	cfg := validConfig()
	cfg.BigModel.EnableEndpoint = true
	cfg.BigModel.Endpoint = "https://api.big.example/v1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestResolveCredentialsLiteralValuesPassThrough(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ResolveCredentials(context.Background()); err != nil {
		t.Fatalf("ResolveCredentials: %v", err)
	}
	if cfg.ProviderAPIKey != "global-key" {
		t.Errorf("ProviderAPIKey = %q, want unchanged literal", cfg.ProviderAPIKey)
	}
}

func TestResolveCredentialsEnvReference(t *testing.T) {
	t.Setenv("CLAUDING_TEST_PROVIDER_KEY", "sk-from-env")

	cfg := validConfig()
	cfg.ProviderAPIKey = "env://CLAUDING_TEST_PROVIDER_KEY"
	if err := cfg.ResolveCredentials(context.Background()); err != nil {
		t.Fatalf("ResolveCredentials: %v", err)
	}
	if cfg.ProviderAPIKey != "sk-from-env" {
		t.Errorf("ProviderAPIKey = %q, want sk-from-env", cfg.ProviderAPIKey)
	}
}

func TestResolveCredentialsFailsOnMissingEnvVar(t *testing.T) {
	_ = os.Unsetenv("CLAUDING_TEST_MISSING_KEY")

	cfg := validConfig()
	cfg.ProviderAPIKey = "env://CLAUDING_TEST_MISSING_KEY"
	if err := cfg.ResolveCredentials(context.Background()); err == nil {
		t.Error("expected error resolving unset env var reference")
	}
}

func TestResolveCredentialsResolvesTierKeys(t *testing.T) {
	t.Setenv("CLAUDING_TEST_BIG_KEY", "sk-big")

	cfg := validConfig()
	cfg.BigModel.APIKey = "env://CLAUDING_TEST_BIG_KEY"
	if err := cfg.ResolveCredentials(context.Background()); err != nil {
		t.Fatalf("ResolveCredentials: %v", err)
	}
	if cfg.BigModel.APIKey != "sk-big" {
		t.Errorf("BigModel.APIKey = %q, want sk-big", cfg.BigModel.APIKey)
	}
}

func TestResolveCredentialsSkipsEmptyProxyAuthKey(t *testing.T) {
	cfg := validConfig()
	cfg.ProxyAuthKey = ""
	if err := cfg.ResolveCredentials(context.Background()); err != nil {
		t.Fatalf("ResolveCredentials: %v", err)
	}
	if cfg.ProxyAuthKey != "" {
		t.Errorf("ProxyAuthKey = %q, want still empty", cfg.ProxyAuthKey)
	}
}

func TestToRouterConfigCollapsesDisabledEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.BigModel.Endpoint = "https://api.big.example/v1" // set but not enabled
	rc := cfg.ToRouterConfig()

	for _, tc := range rc.Tiers {
		if tc.Tier == "BIG" {
			if tc.Endpoint != nil {
				t.Errorf("expected nil Endpoint for disabled tier override, got %q", *tc.Endpoint)
			}
		}
	}
}

func TestToRouterConfigCollapsesEnabledEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.BigModel.EnableEndpoint = true
	cfg.BigModel.Endpoint = "https://api.big.example/v1"
	cfg.BigModel.APIKey = "big-key"
	rc := cfg.ToRouterConfig()

	found := false
	for _, tc := range rc.Tiers {
		if tc.Tier == "BIG" {
			found = true
			if tc.Endpoint == nil || *tc.Endpoint != "https://api.big.example/v1" {
				t.Errorf("expected collapsed Endpoint to be set, got %+v", tc.Endpoint)
			}
			if tc.APIKey == nil || *tc.APIKey != "big-key" {
				t.Errorf("expected collapsed APIKey to be set, got %+v", tc.APIKey)
			}
		}
	}
	if !found {
		t.Fatal("expected a BIG tier entry")
	}
}

func TestGlobalReasoningPolicyNilWhenUnset(t *testing.T) {
	cfg := validConfig()
	if p := cfg.globalReasoningPolicy(); p != nil {
		t.Errorf("expected nil policy, got %+v", p)
	}
}

func TestGlobalReasoningPolicyBudgetTakesPrecedenceOverEffort(t *testing.T) {
	cfg := validConfig()
	cfg.Reasoning.Effort = "high"
	cfg.Reasoning.MaxTokens = 4096
	p := cfg.globalReasoningPolicy()
	if p == nil {
		t.Fatal("expected non-nil policy")
	}
	if p.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", p.MaxTokens)
	}
}

func TestRequestTransformerCarriesTokenLimits(t *testing.T) {
	cfg := validConfig()
	cfg.MinTokensLimit = 10
	cfg.MaxTokensLimit = 5000
	xf := cfg.RequestTransformer()
	if xf.MinTokensLimit != 10 || xf.MaxTokensLimit != 5000 {
		t.Errorf("RequestTransformer() = %+v, want limits (10, 5000)", xf)
	}
}

func TestRequestTimeoutConvertsSecondsToDuration(t *testing.T) {
	cfg := validConfig()
	cfg.RequestTimeoutSeconds = 45
	if got := cfg.RequestTimeout(); got.Seconds() != 45 {
		t.Errorf("RequestTimeout() = %s, want 45s", got)
	}
}
