package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer serializes values as Server-Sent Event frames on an HTTP
// response.  It is not safe for concurrent use; streaming endpoints have
// a single writer goroutine by construction.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for an event stream and returns the
// frame writer.  It fails when the underlying ResponseWriter cannot
// flush, which would silently buffer the whole stream.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one frame: the value JSON-encoded into a data field,
// flushed immediately so subscribers observe events as they happen.
func (writer *Writer) Send(v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if _, err = fmt.Fprintf(writer.w, "data: %s\n\n", buf); err != nil {
		return err
	}

	writer.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line, useful as a keep-alive.
func (writer *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(writer.w, ": %s\n\n", text); err != nil {
		return err
	}

	writer.flusher.Flush()
	return nil
}
