package gateway

import (
	"net/http"
	"net/url"
	"time"
)

// startedAt is the process start time (Unix seconds), used as the synthetic
// "created" field of every /v1/models entry, since the gateway has no
// real model catalog to report ages for.
var startedAt = time.Now().Unix()

// ModelCatalog is the static information needed to answer GET
// /v1/models and GET /health: the three pseudo-model names the gateway
// advertises, mapped to their configured tier routes.
type ModelCatalog struct {
	BigModel, MiddleModel, SmallModel       string
	BigEndpoint, MiddleEndpoint, SmallEndpoint string
	ProviderBaseURL                         string
	ReasoningAvailable                      bool
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

func ownedBy(endpoint string) string {
	if endpoint == "" {
		return "clauding"
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "clauding"
	}
	return u.Host
}

// ModelsHandler serves GET /v1/models.
type ModelsHandler struct{ GW *Gateway }

func (h ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := h.GW.modelCatalog()
	resp := modelsResponse{
		Object: "list",
		Data: []modelEntry{
			{ID: "claude-opus-4", Object: "model", OwnedBy: ownedBy(firstNonEmpty(c.BigEndpoint, c.ProviderBaseURL)), Created: startedAt},
			{ID: "claude-sonnet-4", Object: "model", OwnedBy: ownedBy(firstNonEmpty(c.MiddleEndpoint, c.ProviderBaseURL)), Created: startedAt},
			{ID: "claude-haiku-4", Object: "model", OwnedBy: ownedBy(firstNonEmpty(c.SmallEndpoint, c.ProviderBaseURL)), Created: startedAt},
			{ID: c.BigModel, Object: "model", OwnedBy: ownedBy(firstNonEmpty(c.BigEndpoint, c.ProviderBaseURL)), Created: startedAt},
			{ID: c.MiddleModel, Object: "model", OwnedBy: ownedBy(firstNonEmpty(c.MiddleEndpoint, c.ProviderBaseURL)), Created: startedAt},
			{ID: c.SmallModel, Object: "model", OwnedBy: ownedBy(firstNonEmpty(c.SmallEndpoint, c.ProviderBaseURL)), Created: startedAt},
		},
	}
	writeJSON(r.Context(), w, resp, http.StatusOK)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// HealthHandler serves GET /health.
type HealthHandler struct{ GW *Gateway }

type healthResponse struct {
	Status   string         `json:"status"`
	Provider healthProvider `json:"provider"`
	Features healthFeatures `json:"features"`
}

type healthProvider struct {
	BaseURL      string            `json:"base_url"`
	ModelMapping map[string]string `json:"model_mapping"`
}

type healthFeatures struct {
	Streaming bool `json:"streaming"`
	Reasoning bool `json:"reasoning"`
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := h.GW.modelCatalog()
	resp := healthResponse{
		Status: "healthy",
		Provider: healthProvider{
			BaseURL: c.ProviderBaseURL,
			ModelMapping: map[string]string{
				"claude-opus-4":   c.BigModel,
				"claude-sonnet-4": c.MiddleModel,
				"claude-haiku-4":  c.SmallModel,
			},
		},
		Features: healthFeatures{Streaming: true, Reasoning: c.ReasoningAvailable},
	}
	writeJSON(r.Context(), w, resp, http.StatusOK)
}
