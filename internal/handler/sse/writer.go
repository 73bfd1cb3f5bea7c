package sse

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Stream writes server-sent events. Events and keep-alive pings come from
// different goroutines, so every write holds the stream lock.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStream sets the SSE headers and flushes them
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, flusher: flusher}, nil
}

// WriteEvent writes one event. Multi-line data is split into data lines.
func (s *Stream) WriteEvent(id, event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment line, which clients ignore
func (s *Stream) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	s.flusher.Flush()
	return nil
}
