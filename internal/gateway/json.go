package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/driftwell/clauding/internal/apierr"
)

// errorEnvelope is the shape of every JSON error body the HTTP surface
// returns, matching Anthropic's {error:{type, message}} convention.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode json response", "error", err)
	}
}

// writeAPIError writes a gateway error in unary mode: a JSON body with the
// error's mapped HTTP status.
func writeAPIError(ctx context.Context, w http.ResponseWriter, err *apierr.Error) {
	writeJSON(ctx, w, errorEnvelope{Error: errorBody{Type: string(err.Kind), Message: err.Message, Code: err.Code}}, err.Kind.Status())
}
