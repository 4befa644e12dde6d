// Package transport issues the gateway's outbound HTTP calls to a
// resolved backend endpoint and maps transport failures into the
// gateway's error taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/driftwell/clauding/internal/apierr"
	openaischema "github.com/driftwell/clauding/internal/schema/openai"
)

const (
	unaryTimeout     = 120 * time.Second
	streamIdleTimeout = 60 * time.Second
)

// BackendClient issues Chat Completions calls against a resolved
// endpoint, unary or streaming.
type BackendClient struct {
	HTTPClient *http.Client
}

// NewBackendClient builds a BackendClient with a connection-reusing
// *http.Client and the header-injection RoundTripper wrapping it.
func NewBackendClient(customHeaders map[string]string) *BackendClient {
	var rt http.RoundTripper = DefaultTransport()
	if len(customHeaders) > 0 {
		rt = &HeaderInjectionTransport{Next: rt, Headers: customHeaders}
	}
	return &BackendClient{HTTPClient: &http.Client{Transport: rt}}
}

// DefaultTransport clones http.DefaultTransport and tightens its
// response-header timeout, the same baseline the gateway's proxy
// lineage uses before any header-injection wrapping.
func DefaultTransport() *http.Transport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = unaryTimeout
	return base
}

func authHeader(apiKey string) string {
	if apiKey == "" || apiKey == "dummy" {
		return ""
	}
	return "Bearer " + apiKey
}

func (c *BackendClient) newRequest(ctx context.Context, endpoint string, body []byte, apiKey string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := authHeader(apiKey); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req, nil
}

// Do issues a unary Chat Completions call and decodes the response.
func (c *BackendClient) Do(ctx context.Context, endpoint string, body []byte, apiKey string) (openaischema.ChatCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, unaryTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, endpoint, body, apiKey)
	if err != nil {
		return openaischema.ChatCompletion{}, apierr.New(apierr.BackendError, err.Error())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return openaischema.ChatCompletion{}, mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return openaischema.ChatCompletion{}, apierr.New(apierr.BackendError, fmt.Sprintf("read backend response: %v", err))
	}
	if resp.StatusCode >= 300 {
		return openaischema.ChatCompletion{}, apierr.FromBackendStatus(resp.StatusCode, string(respBody))
	}

	var chat openaischema.ChatCompletion
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return openaischema.ChatCompletion{}, apierr.New(apierr.BackendError, fmt.Sprintf("decode backend response: %v", err))
	}
	return chat, nil
}

// Stream issues a streaming Chat Completions call and returns an
// *SSEStream the caller reads chunks from. The caller must Close it.
func (c *BackendClient) Stream(ctx context.Context, endpoint string, body []byte, apiKey string) (*SSEStream, error) {
	req, err := c.newRequest(ctx, endpoint, body, apiKey)
	if err != nil {
		return nil, apierr.New(apierr.BackendError, err.Error())
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, mapTransportError(ctx, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, apierr.FromBackendStatus(resp.StatusCode, string(respBody))
	}
	return newSSEStream(resp.Body, streamIdleTimeout), nil
}

func mapTransportError(ctx context.Context, err error) *apierr.Error {
	if ctx.Err() == context.DeadlineExceeded {
		return apierr.New(apierr.Timeout, "backend request timed out")
	}
	return apierr.New(apierr.BackendError, fmt.Sprintf("backend transport error: %v", err))
}
