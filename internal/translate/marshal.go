package translate

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	openaischema "github.com/driftwell/clauding/internal/schema/openai"
)

// MarshalBackendBody serializes a ChatCompletionRequest and merges extra's
// keys into the top level of the resulting JSON object, implementing the
// extra_body escape hatch: the backend sees "reasoning" and "verbosity" as
// ordinary top-level fields, never nested under an "extra_body" key.
func MarshalBackendBody(req openaischema.ChatCompletionRequest, extra map[string]any) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat completion request: %w", err)
	}
	for key, value := range extra {
		body, err = sjson.SetBytes(body, key, value)
		if err != nil {
			return nil, fmt.Errorf("merge extra_body.%s: %w", key, err)
		}
	}
	return body, nil
}
