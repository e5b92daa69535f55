package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ErrClosed is returned by a sink whose consumer has gone away.
var ErrClosed = errors.New("events: sink closed")

// Sink receives a turn's events in order. Emit must deliver (or flush) the
// event before returning so the consumer observes progress as it happens.
// An error means the consumer is gone; the producer should stop the turn.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Emit(ctx context.Context, e Event) error { return f(ctx, e) }

// ChanSink delivers events on a channel. The consumer must read until it
// sees TypeDone.
type ChanSink struct {
	C chan Event
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

func (s *ChanSink) Emit(ctx context.Context, e Event) error {
	select {
	case s.C <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recorder stores every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	var out []Type
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

// Phases returns the recorded phase values in order.
func (r *Recorder) Phases() []Phase {
	var out []Phase
	for _, e := range r.Events() {
		if e.Type == TypePhase {
			out = append(out, e.Phase)
		}
	}
	return out
}

// Result returns the recorded result payload, if any.
func (r *Recorder) Result() *Result {
	for _, e := range r.Events() {
		if e.Type == TypeResult {
			return e.Result
		}
	}
	return nil
}

// Tee fans each event out to every sink in order and stops at the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, e Event) error {
		for _, s := range sinks {
			if err := s.Emit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// NDJSONWriter writes one JSON object per line. The sentinel is {"type":"done"}.
type NDJSONWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: w}
}

func (n *NDJSONWriter) Emit(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	flush(n.w)
	return nil
}

// SSEDone is the data line of the SSE sentinel.
const SSEDone = "[DONE]"

// SSEWriter writes events as Server-Sent Events, one "data:" record per
// event, and the sentinel as "data: [DONE]".
type SSEWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSSEWriter sets the SSE headers when w is an http.ResponseWriter.
func NewSSEWriter(w io.Writer) *SSEWriter {
	if rw, ok := w.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", "text/event-stream")
		rw.Header().Set("Cache-Control", "no-cache")
		rw.Header().Set("Connection", "keep-alive")
		rw.Header().Set("X-Accel-Buffering", "no")
	}
	return &SSEWriter{w: w}
}

func (s *SSEWriter) Emit(_ context.Context, e Event) error {
	var data string
	if e.Type == TypeDone {
		data = SSEDone
	} else {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		data = string(b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	flush(s.w)
	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// ReadNDJSON decodes events from r until the sentinel, calling fn for each
// event including the sentinel. It returns io.ErrUnexpectedEOF when the
// stream ends without one.
func ReadNDJSON(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return fmt.Errorf("events: decode: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
		if e.Type == TypeDone {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// ReadSSE decodes an SSE stream written by SSEWriter.
func ReadSSE(r io.Reader, fn func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == SSEDone {
			return fn(Done())
		}
		var e Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return fmt.Errorf("events: decode: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
