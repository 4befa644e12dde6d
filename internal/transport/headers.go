package transport

import "net/http"

// HeaderInjectionTransport is an http.RoundTripper that adds a fixed set
// of headers to every outbound request, implementing Config.custom_headers.
// Adapted from the proxy lineage's request-cloning RoundTripper pattern,
// narrowed to header injection only: this gateway does not filter or
// rewrite the client's headers, since the backend call is built fresh by
// BackendClient rather than relayed from the inbound request.
type HeaderInjectionTransport struct {
	Next    http.RoundTripper
	Headers map[string]string
}

var _ http.RoundTripper = (*HeaderInjectionTransport)(nil)

func (t *HeaderInjectionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}

	cloned := req.Clone(req.Context())
	for key, value := range t.Headers {
		cloned.Header.Set(key, value)
	}
	return next.RoundTrip(cloned)
}
