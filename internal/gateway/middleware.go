package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"

	"github.com/driftwell/clauding/internal/apierr"
)

// Recovery recovers from panics in downstream handlers and returns a 500.
// Logging of the panic itself is left to the Logging middleware wrapping
// this one, which observes the resulting response status.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging applies go-chi/httplog's concise ECS-shaped request logger. Of
// the headers only the request Content-Type is logged, and bodies never
// are, since the rest may carry API keys or message content.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  []string{"Content-Type"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,
		RecoverPanics:      false,
	})
}

// Auth enforces Config.proxy_auth_key when non-empty: the request must
// present a matching x-api-key or Authorization: Bearer header.
func Auth(proxyAuthKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if proxyAuthKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("x-api-key")
			if presented == "" {
				if bearer, ok := cutBearer(r.Header.Get("Authorization")); ok {
					presented = bearer
				}
			}
			if presented != proxyAuthKey {
				writeAPIError(r.Context(), w, &apierr.Error{
					Kind:    apierr.AuthenticationError,
					Message: "invalid API key",
					Code:    "invalid_api_key",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cutBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):], true
	}
	return "", false
}

// applyMiddlewares wraps h with middlewares in order: the first entry is
// outermost and runs first.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
