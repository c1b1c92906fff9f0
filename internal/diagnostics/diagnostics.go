// Package diagnostics carries side-channel trace events out of the rewrite
// path. Emitting is fire-and-forget: a sink never fails the caller.
package diagnostics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one diagnostic record.
type Event struct {
	ID      string
	Time    time.Time
	Source  string
	Message string
}

// NewEvent stamps a message with a fresh ID and the current time.
func NewEvent(source, message string) Event {
	return Event{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Source:  source,
		Message: message,
	}
}

// Sink receives diagnostic events.
type Sink interface {
	Emit(ev Event, isError bool)
}

// SlogSink writes events to a structured logger, at ERROR for errors and INFO otherwise.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink returns a sink logging to logger, or to slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

// Emit implements Sink.
func (s *SlogSink) Emit(ev Event, isError bool) {
	level := slog.LevelInfo
	if isError {
		level = slog.LevelError
	}
	s.Logger.LogAttrs(context.Background(), level, "diagnostic_event",
		slog.String("event_id", ev.ID),
		slog.String("source", ev.Source),
		slog.String("message", ev.Message),
		slog.Time("event_time", ev.Time),
		slog.Bool("is_error", isError),
	)
}

// Recorded is an event captured by a Recorder.
type Recorded struct {
	Event   Event
	IsError bool
}

// Recorder keeps every emitted event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Emit implements Sink.
func (r *Recorder) Emit(ev Event, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: ev, IsError: isError})
}

// Events returns a copy of the captured events in emission order.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Len returns the number of captured events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops all captured events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
