// Package router maps an Anthropic model name onto a concrete backend
// route: an endpoint, a model id, a credential, and a reasoning policy.
package router

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Tier is one of the three routing buckets a client-supplied Claude model
// name resolves to.
type Tier string

const (
	Big    Tier = "BIG"
	Middle Tier = "MIDDLE"
	Small  Tier = "SMALL"
)

// ReasoningMode selects how a ReasoningPolicy instructs the backend.
type ReasoningMode string

const (
	ReasoningOff    ReasoningMode = "off"
	ReasoningEffort ReasoningMode = "effort"
	ReasoningBudget ReasoningMode = "budget"
)

// ReasoningPolicy is the effective per-request instruction for how much
// the backend should reason and whether to surface the trace.
type ReasoningPolicy struct {
	Mode      ReasoningMode
	Effort    string // "low" | "medium" | "high", set when Mode == ReasoningEffort
	MaxTokens int    // set when Mode == ReasoningBudget, clamped to [1024, 32768]
	Exclude   bool
	Verbosity string // "low" | "default" | "high" | ""
}

const (
	minBudgetTokens = 1024
	maxBudgetTokens = 32768
)

// ClampBudget clamps n to [minBudgetTokens, maxBudgetTokens].
func ClampBudget(n int) int {
	if n < minBudgetTokens {
		return minBudgetTokens
	}
	if n > maxBudgetTokens {
		return maxBudgetTokens
	}
	return n
}

// TierRoute is the fully resolved destination for one request.
type TierRoute struct {
	Tier            Tier
	EndpointURL     string
	APIKey          string
	ModelID         string
	ReasoningPolicy ReasoningPolicy
}

// TierConfig is the collapsed per-tier configuration shape Design Notes
// calls for: explicit absence (nil pointer) means "inherit global".
// app.Config's flat enable_T_endpoint/T_endpoint/T_api_key/T_model fields
// are adapted into one TierConfig per tier before reaching the router.
type TierConfig struct {
	Tier            Tier
	Endpoint        *string
	APIKey          *string
	Model           string
	ReasoningPolicy *ReasoningPolicy
}

// Config is everything the router needs to resolve routes, independent of
// how it was loaded.
type Config struct {
	ProviderBaseURL string
	ProviderAPIKey  string
	Tiers           []TierConfig // one entry each for Big, Middle, Small
}

// MissingCredentialError means a resolved route has no API key and its
// endpoint is not a recognized local-loopback backend.
type MissingCredentialError struct {
	Tier     Tier
	Endpoint string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no api key configured for tier %s (endpoint %s)", e.Tier, e.Endpoint)
}

// ModelRouter resolves Anthropic model names to TierRoutes. It is
// immutable after construction and safe for concurrent use.
type ModelRouter struct {
	cfg   Config
	tiers map[Tier]TierConfig
}

// New builds a ModelRouter from a resolved Config.
func New(cfg Config) *ModelRouter {
	tiers := make(map[Tier]TierConfig, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tiers[t.Tier] = t
	}
	return &ModelRouter{cfg: cfg, tiers: tiers}
}

// Resolve maps a client-supplied Anthropic model name to a TierRoute.
func (r *ModelRouter) Resolve(modelName string) (TierRoute, error) {
	lower := strings.ToLower(modelName)
	tier, passthrough := detectTier(lower)

	if passthrough {
		route := TierRoute{
			Tier:        Middle,
			EndpointURL: r.cfg.ProviderBaseURL,
			APIKey:      r.cfg.ProviderAPIKey,
			ModelID:     modelName,
		}
		if err := r.checkCredential(route); err != nil {
			return TierRoute{}, err
		}
		return route, nil
	}

	tc := r.tiers[tier]
	rawModel, suffixPolicy := parseModelSuffix(tc.Model)

	var endpoint, apiKey string
	if tc.Endpoint != nil && *tc.Endpoint != "" {
		endpoint = *tc.Endpoint
		if tc.APIKey != nil && *tc.APIKey != "" {
			apiKey = *tc.APIKey
		} else {
			apiKey = r.cfg.ProviderAPIKey
		}
	} else {
		endpoint = r.cfg.ProviderBaseURL
		apiKey = r.cfg.ProviderAPIKey
	}

	policy := ReasoningPolicy{Mode: ReasoningOff}
	if tc.ReasoningPolicy != nil {
		policy = *tc.ReasoningPolicy
	}
	if suffixPolicy != nil {
		policy = *suffixPolicy
	}
	if !ModelSupportsReasoning(rawModel) {
		policy = ReasoningPolicy{Mode: ReasoningOff}
	}

	route := TierRoute{
		Tier:            tier,
		EndpointURL:     endpoint,
		APIKey:          apiKey,
		ModelID:         rawModel,
		ReasoningPolicy: policy,
	}
	if err := r.checkCredential(route); err != nil {
		return TierRoute{}, err
	}
	return route, nil
}

func (r *ModelRouter) checkCredential(route TierRoute) error {
	if route.APIKey != "" {
		return nil
	}
	if isLocalLoopback(route.EndpointURL) {
		return nil
	}
	return &MissingCredentialError{Tier: route.Tier, Endpoint: route.EndpointURL}
}

func detectTier(lowerModelName string) (tier Tier, passthrough bool) {
	switch {
	case strings.Contains(lowerModelName, "opus"):
		return Big, false
	case strings.Contains(lowerModelName, "sonnet"):
		return Middle, false
	case strings.Contains(lowerModelName, "haiku"):
		return Small, false
	default:
		return Middle, true
	}
}

var suffixPattern = regexp.MustCompile(`^(.*):([a-zA-Z]+|\d+k?)$`)

// parseModelSuffix splits a configured tier model id on a trailing
// reasoning suffix (":low", ":medium", ":high", ":<N>", ":<N>k"), returning
// the bare model id and, when a suffix was present, the ReasoningPolicy it
// implies.
func parseModelSuffix(modelID string) (string, *ReasoningPolicy) {
	m := suffixPattern.FindStringSubmatch(modelID)
	if m == nil {
		return modelID, nil
	}
	base, suffix := m[1], m[2]

	switch strings.ToLower(suffix) {
	case "low", "medium", "high":
		return base, &ReasoningPolicy{Mode: ReasoningEffort, Effort: strings.ToLower(suffix)}
	}

	numeric := suffix
	multiplier := 1
	if strings.HasSuffix(suffix, "k") {
		numeric = strings.TrimSuffix(suffix, "k")
		multiplier = 1024
	}
	n, err := strconv.Atoi(numeric)
	if err != nil {
		return modelID, nil
	}
	return base, &ReasoningPolicy{Mode: ReasoningBudget, MaxTokens: ClampBudget(n * multiplier)}
}

var reasoningCapableSubstrings = []string{
	"gpt-5", "o1", "o3", "o4",
	"claude-3-7", "claude-4", "claude-opus-4", "claude-sonnet-4", "claude-haiku-4",
	"qwen3", "qwen-2.5-thinking",
	"deepseek-v3", "deepseek-r1",
	"kimi-k2-thinking", "minimax-m2",
}

var grokReasoningPattern = regexp.MustCompile(`grok[^0-9]*[3-9]`)

// ModelSupportsReasoning reports whether the backend model id is known to
// accept reasoning parameters at all. When false, any configured
// ReasoningPolicy is silenced.
func ModelSupportsReasoning(modelID string) bool {
	lower := strings.ToLower(modelID)
	if strings.HasSuffix(lower, ":thinking") {
		return true
	}
	for _, s := range reasoningCapableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return grokReasoningPattern.MatchString(lower)
}

// isLocalLoopback reports whether endpoint points at a loopback address,
// the signature of an unauthenticated local model server (Ollama, LM
// Studio) that legitimately has no API key.
func isLocalLoopback(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
