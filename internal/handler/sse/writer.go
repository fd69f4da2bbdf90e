// Package sse writes server-sent event responses. The wire format mirrors
// what the platform endpoints emit, so browser clients can consume both
// with the same parser: "data: " payload lines, ": " comment lines for
// keep-alive, and a "[DONE]" sentinel at the end of a stream.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer emits SSE frames on one response. Safe for concurrent use so a
// keep-alive ticker can share it with the fragment path.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for streaming and returns a frame
// writer. Returns an error when the connection cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes one JSON data frame.
func (s *Writer) WriteEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.writeFrame(fmt.Sprintf("data: %s\n\n", data))
}

// WriteDone writes the end-of-stream sentinel.
func (s *Writer) WriteDone() error {
	return s.writeFrame("data: [DONE]\n\n")
}

// WriteKeepAlive writes an SSE comment line. Comments are ignored by
// clients but keep proxies from timing out an idle connection.
func (s *Writer) WriteKeepAlive() error {
	return s.writeFrame(": keepalive\n\n")
}

func (s *Writer) writeFrame(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
