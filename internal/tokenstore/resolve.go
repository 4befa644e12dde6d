package tokenstore

import (
	"context"
	"fmt"
	"strings"
)

// Resolve returns ref unchanged unless it names a TokenStore backend via
// a "file://", "env://", or "keyring://" prefix, in which case it reads
// the credential from that backend. keyring references have the form
// "keyring://service/user".
//
// Used to resolve Config's global and per-tier API key fields at
// load time, so a missing or unreadable credential fails startup
// rather than the first request that needs it.
func Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "file://"):
		store, err := NewFileStore(strings.TrimPrefix(ref, "file://"))
		if err != nil {
			return "", fmt.Errorf("resolve file credential: %w", err)
		}
		return store.Read(ctx)

	case strings.HasPrefix(ref, "env://"):
		store, err := NewEnvStore(strings.TrimPrefix(ref, "env://"))
		if err != nil {
			return "", fmt.Errorf("resolve env credential: %w", err)
		}
		return store.Read(ctx)

	case strings.HasPrefix(ref, "keyring://"):
		serviceUser := strings.TrimPrefix(ref, "keyring://")
		service, user, ok := strings.Cut(serviceUser, "/")
		if !ok {
			return "", fmt.Errorf("invalid keyring reference %q: want keyring://service/user", ref)
		}
		store, err := NewKeyringStore(service, user)
		if err != nil {
			return "", fmt.Errorf("resolve keyring credential: %w", err)
		}
		return store.Read(ctx)

	default:
		return ref, nil
	}
}
