package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openaischema "github.com/driftwell/clauding/internal/schema/openai"
)

// ErrStreamDone is returned by Next once the backend has sent the
// terminal "data: [DONE]" frame.
var ErrStreamDone = errors.New("sse stream done")

// SSEStream reads an OpenAI-compatible Chat Completions SSE response,
// splitting on "\n\n" frame boundaries and decoding the "data: " payload
// of each frame into a ChatCompletionChunk.
type SSEStream struct {
	body        io.ReadCloser
	scanner     *bufio.Scanner
	idleTimeout time.Duration
}

func newSSEStream(body io.ReadCloser, idleTimeout time.Duration) *SSEStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitSSEFrames)
	return &SSEStream{body: body, scanner: scanner, idleTimeout: idleTimeout}
}

// Close releases the underlying connection.
func (s *SSEStream) Close() error {
	return s.body.Close()
}

// Next blocks for at most the stream's idle timeout waiting for the next
// frame, decodes it, and returns it. Returns ErrStreamDone on the [DONE]
// sentinel or clean EOF.
func (s *SSEStream) Next(ctx context.Context) (openaischema.ChatCompletionChunk, error) {
	type result struct {
		frame string
		ok    bool
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		ok := s.scanner.Scan()
		resultCh <- result{frame: s.scanner.Text(), ok: ok, err: s.scanner.Err()}
	}()

	select {
	case <-ctx.Done():
		return openaischema.ChatCompletionChunk{}, ctx.Err()
	case <-time.After(s.idleTimeout):
		return openaischema.ChatCompletionChunk{}, fmt.Errorf("sse stream idle for more than %s", s.idleTimeout)
	case r := <-resultCh:
		if !r.ok {
			if r.err != nil {
				return openaischema.ChatCompletionChunk{}, fmt.Errorf("read sse stream: %w", r.err)
			}
			return openaischema.ChatCompletionChunk{}, ErrStreamDone
		}
		return parseSSEFrame(r.frame)
	}
}

func parseSSEFrame(frame string) (openaischema.ChatCompletionChunk, error) {
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimRight(line, "\r")
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return openaischema.ChatCompletionChunk{}, ErrStreamDone
		}
		var chunk openaischema.ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return openaischema.ChatCompletionChunk{}, fmt.Errorf("decode sse chunk: %w", err)
		}
		return chunk, nil
	}
	return openaischema.ChatCompletionChunk{}, nil
}

// splitSSEFrames is a bufio.SplitFunc that splits on "\n\n" frame
// delimiters instead of lines.
func splitSSEFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	if atEOF {
		return 0, nil, io.EOF
	}
	return 0, nil, nil
}
