// Package apierr defines the gateway's client-facing error taxonomy and
// its mapping to HTTP status codes, shared by the translate, transport,
// and gateway packages.
package apierr

import "fmt"

// Kind names one of the error categories the gateway can surface to a
// client, independent of whether it originated locally (bad request
// shape) or was relayed from the backend.
type Kind string

const (
	InvalidRequest      Kind = "invalid_request"
	AuthenticationError Kind = "authentication_error"
	PermissionError     Kind = "permission_error"
	NotFound            Kind = "not_found"
	RateLimit           Kind = "rate_limit"
	BackendError        Kind = "backend_error"
	Timeout             Kind = "timeout"
	Overloaded          Kind = "overloaded"
)

// Status returns the HTTP status code a Kind maps to.
func (k Kind) Status() int {
	switch k {
	case InvalidRequest:
		return 400
	case AuthenticationError:
		return 401
	case PermissionError:
		return 403
	case NotFound:
		return 404
	case RateLimit:
		return 429
	case BackendError:
		return 502
	case Timeout:
		return 504
	case Overloaded:
		return 503
	default:
		return 500
	}
}

// Error is the gateway's uniform error type: a Kind, a message, and an
// optional Code for the invalid_api_key case the HTTP surface documents.
type Error struct {
	Kind    Kind
	Message string
	Code    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an *Error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromBackendStatus maps a backend HTTP status code to an Error kind, per
// the propagation policy: 401/403/404/429 pass through with provenance,
// any other 4xx/5xx collapses to backend_error.
func FromBackendStatus(status int, body string) *Error {
	truncated := body
	const maxBodyBytes = 4096
	if len(truncated) > maxBodyBytes {
		truncated = truncated[:maxBodyBytes]
	}
	switch status {
	case 401:
		return &Error{Kind: AuthenticationError, Message: "backend rejected credentials: " + truncated}
	case 403:
		return &Error{Kind: PermissionError, Message: "backend denied the request: " + truncated}
	case 404:
		return &Error{Kind: NotFound, Message: "backend reported not found: " + truncated}
	case 429:
		return &Error{Kind: RateLimit, Message: "backend rate limited the request: " + truncated}
	default:
		return &Error{Kind: BackendError, Message: fmt.Sprintf("backend returned %d: %s", status, truncated)}
	}
}
