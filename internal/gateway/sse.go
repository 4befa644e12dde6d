package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
)

var (
	sseDataPrefix = []byte("data: ")
	sseTerminator = []byte("\n\n")
)

// SSEWriter wraps http.ResponseWriter with the Server-Sent Events framing
// the Anthropic streaming protocol uses, flushing after every event so
// the client observes each content_block_delta as it is produced.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter validates flushing support and sets the SSE response
// headers. Must be called before the first byte of the body is written.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not implement http.Flusher")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent marshals v to JSON and writes it as one SSE data frame.
func (s *SSEWriter) WriteEvent(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
