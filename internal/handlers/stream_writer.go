// File: internal/handlers/stream_writer.go
package handlers

import (
	"errors"
	"io"
	"net/http"
)

var errStreamingUnsupported = errors.New("streaming unsupported by response writer")

// streamWriter sends assistant fragments as raw text, flushing after each one.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	written int
}

func newStreamWriter(w http.ResponseWriter) (*streamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	return &streamWriter{w: w, flusher: flusher}, nil
}

// Start commits the 200 status and the streaming headers.
func (s *streamWriter) Start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// WriteFragment forwards one fragment. An error means the client is gone.
func (s *streamWriter) WriteFragment(fragment string) error {
	s.Start()
	n, err := io.WriteString(s.w, fragment)
	s.written += n
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
