package tokenstore

import "context"

// TokenStore reads and writes bearer credentials to persistent storage.
//
// Used to back the gateway's API keys (global and per-tier) so that a
// Config value can name a credential's location instead of embedding
// it literally.
type TokenStore interface {
	// Read returns the stored token. Returns error if token is missing or empty.
	Read(ctx context.Context) (string, error)

	// Write persists the token to storage. Returns error if storage backend
	// is read-only (e.g., environment variables) or if write operation fails.
	Write(ctx context.Context, token string) error
}
