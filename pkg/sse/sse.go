// Package sse writes Server-Sent Events.
//
//	stream, err := sse.New(c.W, c.R)
//	if err != nil { ... }
//	stream.Event("status", payload)
//	<-stream.Done()
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned once the client has gone away.
var ErrClosed = errors.New("sse: stream closed")

type Stream struct {
	mu   sync.Mutex
	w    http.ResponseWriter
	rc   *http.ResponseController
	done <-chan struct{}
	seq  int
}

// New writes the event-stream headers and flushes them. It fails when no
// writer in the chain can flush.
func New(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("sse: %w", err)
	}
	return &Stream{w: w, rc: rc, done: r.Context().Done()}, nil
}

// Done closes when the client disconnects.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Hold moves the connection's write deadline d into the future, past the
// server's WriteTimeout.
func (s *Stream) Hold(d time.Duration) error {
	return s.rc.SetWriteDeadline(time.Now().Add(d))
}

// Event sends a named event with data encoded as JSON. Each event carries
// an increasing id.
func (s *Stream) Event(name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.write(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", s.seq, name, payload))
}

// Comment sends a comment line; clients ignore it, proxies see traffic.
func (s *Stream) Comment(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(": " + strings.ReplaceAll(msg, "\n", " ") + "\n\n")
}

func (s *Stream) write(frame string) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return err
	}
	return s.rc.Flush()
}
