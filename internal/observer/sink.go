// Package observer defines the lifecycle event contract consumed by
// recorders, metrics exporters, and other external collaborators (§4.5).
// The core only ever sees the Sink interface; it never blocks on a
// subscriber.
package observer

import (
	"time"

	"github.com/lunaroute/lunaroute/internal/normalized"
)

// EventKind tags which lifecycle point produced an Event.
type EventKind string

const (
	EventStarted          EventKind = "started"
	EventRequestRecorded  EventKind = "request_recorded"
	EventResponseRecorded EventKind = "response_recorded"
	EventChunkRecorded    EventKind = "chunk_recorded"
	EventToolCallRecorded EventKind = "tool_call_recorded"
	EventCompleted        EventKind = "completed"
)

// Event is one lifecycle notification. Only the fields relevant to Kind
// are populated; the normalized payload is carried by reference so a
// slow subscriber doesn't force a copy on the request path.
type Event struct {
	Kind      EventKind
	RequestID string
	SessionID string
	Provider  string
	At        time.Time

	Request  *normalized.Request
	Response *normalized.Response
	Chunk    *normalized.StreamEvent
	ToolCall *normalized.ToolUseContent

	// Usage is populated on ResponseRecorded/Completed when known.
	Usage *normalized.Usage

	// Err is populated on Completed when the request failed.
	Err error
}

// Sink receives lifecycle events. Publish must never block the caller;
// implementations backed by a channel should select on a default case
// rather than sending unconditionally.
type Sink interface {
	Publish(ev Event)
}

// ChannelSink fans Event out to a single bounded channel. Publish is
// non-blocking: when the channel is full the event is dropped and
// Dropped is incremented, never applying backpressure to the request
// path (§4.5, §9 "observer fan-out").
type ChannelSink struct {
	ch      chan Event
	dropped dropCounter
}

// NewChannelSink returns a sink whose internal channel holds up to
// capacity pending events.
func NewChannelSink(capacity int) *ChannelSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &ChannelSink{ch: make(chan Event, capacity)}
}

// Publish implements Sink.
func (s *ChannelSink) Publish(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.inc()
	}
}

// Events returns the channel subscribers read from.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns the total number of events dropped so far because the
// channel was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.load()
}

// Close closes the underlying channel. Callers must ensure no further
// Publish calls occur afterward.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// NopSink discards every event. Used when no observer is configured.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(Event) {}

// FanOut publishes to every sink in order. A slow or full sink only
// drops its own copy; it cannot affect its siblings.
type FanOut struct {
	Sinks []Sink
}

// Publish implements Sink.
func (f FanOut) Publish(ev Event) {
	for _, s := range f.Sinks {
		s.Publish(ev)
	}
}
