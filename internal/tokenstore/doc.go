// Package tokenstore provides persistent storage abstractions for API
// credentials.
//
// Supports storage backends with different security and deployment
// tradeoffs:
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Env: read-only environment variable access
//   - Keyring: OS-native secure credential storage
//
// Config values for the gateway's global and per-tier API keys may
// reference any of these backends via Resolve instead of embedding a
// literal key.
package tokenstore
