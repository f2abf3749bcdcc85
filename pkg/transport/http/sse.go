package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/transport"
)

// writerState tracks the state of an SSE EventWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteEvent has been called at least once
	writerCompleted                    // [DONE] or an error event has been sent
)

// errWriterCompleted is returned for writes after the stream has ended.
var errWriterCompleted = errors.New("cannot write event: stream is completed")

// sseEventWriter implements transport.EventWriter for HTTP/SSE responses.
type sseEventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.EventWriter = (*sseEventWriter)(nil)

func newSSEEventWriter(w http.ResponseWriter) *sseEventWriter {
	return &sseEventWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent sends a single SSE event:
//
//	event: {type}\n
//	data: {json}\n
//	\n
//
// An error event ends the stream; no [DONE] marker follows it.
func (s *sseEventWriter) WriteEvent(_ context.Context, event api.ThreadStreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errWriterCompleted
	}
	s.startLocked()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	if event.Type == api.EventError {
		s.state = writerCompleted
		if err := s.rc.Flush(); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}
	return nil
}

// Flush sends buffered events to the client.
func (s *sseEventWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == writerIdle {
		return nil
	}
	return s.rc.Flush()
}

// Done ends a successful stream with the [DONE] marker.
func (s *sseEventWriter) Done() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return errWriterCompleted
	}
	s.startLocked()
	s.state = writerCompleted

	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write [DONE]: %w", err)
	}
	return s.rc.Flush()
}

// hasStartedStreaming reports whether any SSE output has been sent.
func (s *sseEventWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}

// startLocked sends the SSE headers before the first write.
func (s *sseEventWriter) startLocked() {
	if s.state != writerIdle {
		return
	}
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	s.state = writerStreaming
}
