package router

import "testing"

func strPtr(s string) *string { return &s }

func testConfig() Config {
	return Config{
		ProviderBaseURL: "https://api.global.example/v1",
		ProviderAPIKey:  "global-key",
		Tiers: []TierConfig{
			{Tier: Big, Model: "openai/gpt-5"},
			{Tier: Middle, Model: "openai/gpt-5-mini"},
			{Tier: Small, Model: "openai/gpt-5-nano"},
		},
	}
}

func TestResolveTierKeywords(t *testing.T) {
	r := New(testConfig())

	cases := []struct {
		model    string
		wantTier Tier
		wantID   string
	}{
		{"claude-opus-4", Big, "openai/gpt-5"},
		{"claude-3-5-sonnet-20241022", Middle, "openai/gpt-5-mini"},
		{"claude-haiku-4-5", Small, "openai/gpt-5-nano"},
	}
	for _, c := range cases {
		route, err := r.Resolve(c.model)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", c.model, err)
		}
		if route.Tier != c.wantTier {
			t.Errorf("Resolve(%q).Tier = %s, want %s", c.model, route.Tier, c.wantTier)
		}
		if route.ModelID != c.wantID {
			t.Errorf("Resolve(%q).ModelID = %s, want %s", c.model, route.ModelID, c.wantID)
		}
		if route.ModelID == c.model {
			t.Errorf("Resolve(%q).ModelID must never equal the input name", c.model)
		}
	}
}

func TestResolvePassthrough(t *testing.T) {
	r := New(testConfig())
	route, err := r.Resolve("some-other-model")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.Tier != Middle {
		t.Errorf("passthrough tier = %s, want MIDDLE", route.Tier)
	}
	if route.ModelID != "some-other-model" {
		t.Errorf("passthrough ModelID = %s, want unchanged input", route.ModelID)
	}
	if route.EndpointURL != "https://api.global.example/v1" || route.APIKey != "global-key" {
		t.Errorf("passthrough must use global endpoint/key, got %+v", route)
	}
}

func TestResolvePerTierEndpointOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers[0] = TierConfig{
		Tier:     Big,
		Endpoint: strPtr("https://api.big.example/v1"),
		APIKey:   strPtr("big-key"),
		Model:    "openai/gpt-5",
	}
	r := New(cfg)
	route, err := r.Resolve("claude-opus-4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.EndpointURL != "https://api.big.example/v1" || route.APIKey != "big-key" {
		t.Errorf("tier override not applied: %+v", route)
	}
}

func TestResolvePerTierEndpointFallsBackToGlobalKey(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers[0] = TierConfig{
		Tier:     Big,
		Endpoint: strPtr("https://api.big.example/v1"),
		Model:    "openai/gpt-5",
	}
	r := New(cfg)
	route, err := r.Resolve("claude-opus-4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.APIKey != "global-key" {
		t.Errorf("expected fallback to global key, got %q", route.APIKey)
	}
}

func TestModelSuffixEffort(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers[0] = TierConfig{Tier: Big, Model: "openai/gpt-5:high"}
	r := New(cfg)
	route, err := r.Resolve("claude-opus-4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.ModelID != "openai/gpt-5" {
		t.Errorf("suffix not stripped: %q", route.ModelID)
	}
	if route.ReasoningPolicy.Mode != ReasoningEffort || route.ReasoningPolicy.Effort != "high" {
		t.Errorf("expected effort=high policy, got %+v", route.ReasoningPolicy)
	}
}

func TestModelSuffixBudgetKilo(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers[0] = TierConfig{Tier: Big, Model: "openai/gpt-5:8k"}
	r := New(cfg)
	route, err := r.Resolve("claude-opus-4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.ReasoningPolicy.Mode != ReasoningBudget || route.ReasoningPolicy.MaxTokens != 8192 {
		t.Errorf("expected budget=8192, got %+v", route.ReasoningPolicy)
	}
}

func TestModelSuffixBudgetClamped(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers[0] = TierConfig{Tier: Big, Model: "openai/gpt-5:999k"}
	r := New(cfg)
	route, err := r.Resolve("claude-opus-4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.ReasoningPolicy.MaxTokens != maxBudgetTokens {
		t.Errorf("expected clamp to %d, got %d", maxBudgetTokens, route.ReasoningPolicy.MaxTokens)
	}
}

func TestReasoningSilencedWhenModelCannotReason(t *testing.T) {
	cfg := testConfig()
	cfg.Tiers[0] = TierConfig{Tier: Big, Model: "some-plain-model:high"}
	r := New(cfg)
	route, err := r.Resolve("claude-opus-4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.ReasoningPolicy.Mode != ReasoningOff {
		t.Errorf("expected reasoning silenced for non-reasoning model, got %+v", route.ReasoningPolicy)
	}
}

func TestModelSupportsReasoning(t *testing.T) {
	yes := []string{"openai/gpt-5", "o3-mini", "claude-opus-4-1", "grok-4", "deepseek-r1", "some-model:thinking"}
	no := []string{"openai/gpt-4o", "llama-3.1-8b", "grok-2"}
	for _, m := range yes {
		if !ModelSupportsReasoning(m) {
			t.Errorf("ModelSupportsReasoning(%q) = false, want true", m)
		}
	}
	for _, m := range no {
		if ModelSupportsReasoning(m) {
			t.Errorf("ModelSupportsReasoning(%q) = true, want false", m)
		}
	}
}

func TestMissingCredentialError(t *testing.T) {
	cfg := Config{
		ProviderBaseURL: "https://api.global.example/v1",
		Tiers: []TierConfig{
			{Tier: Big, Model: "openai/gpt-5"},
			{Tier: Middle, Model: "openai/gpt-5-mini"},
			{Tier: Small, Model: "openai/gpt-5-nano"},
		},
	}
	r := New(cfg)
	_, err := r.Resolve("claude-opus-4")
	if err == nil {
		t.Fatal("expected MissingCredentialError, got nil")
	}
	var mce *MissingCredentialError
	if !asMissingCredential(err, &mce) {
		t.Fatalf("expected *MissingCredentialError, got %T: %v", err, err)
	}
}

func asMissingCredential(err error, target **MissingCredentialError) bool {
	if mce, ok := err.(*MissingCredentialError); ok {
		*target = mce
		return true
	}
	return false
}

func TestMissingCredentialToleratedForLoopback(t *testing.T) {
	cfg := Config{
		ProviderBaseURL: "http://localhost:11434/v1",
		Tiers: []TierConfig{
			{Tier: Big, Model: "llama3"},
			{Tier: Middle, Model: "llama3"},
			{Tier: Small, Model: "llama3"},
		},
	}
	r := New(cfg)
	if _, err := r.Resolve("claude-opus-4"); err != nil {
		t.Fatalf("expected no error for loopback endpoint, got %v", err)
	}
}
