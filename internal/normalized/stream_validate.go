package normalized

import "fmt"

// StreamSequencer enforces the stream-event sequencing invariant of §3:
// exactly one Start, zero or more content/tool events interleaved by
// index, an optional UsageUpdate, and exactly one terminal End or Error.
// A ToolCallArgumentsDelta for index i is valid only between a
// ToolCallStart and a ToolCallEnd (or terminal event) at that index.
//
// Check returns a plain error describing the first violation it sees. The
// dialect stream converters do not call it; their tests use it to
// validate converter output.
type StreamSequencer struct {
	started  bool
	done     bool
	openTool map[int]bool
}

// NewStreamSequencer returns a fresh sequencer for one response stream.
func NewStreamSequencer() *StreamSequencer {
	return &StreamSequencer{openTool: make(map[int]bool)}
}

// Check validates ev against the current state and, if valid, advances the
// sequencer. It does not mutate or buffer ev.
func (s *StreamSequencer) Check(ev StreamEvent) error {
	if s.done {
		return fmt.Errorf("stream event %s after terminal event", ev.Type)
	}

	switch ev.Type {
	case EventStart:
		if s.started {
			return fmt.Errorf("duplicate Start event")
		}
		s.started = true
	case EventContentDelta:
		if !s.started {
			return fmt.Errorf("ContentDelta before Start")
		}
	case EventToolCallStart:
		if !s.started {
			return fmt.Errorf("ToolCallStart before Start")
		}
		s.openTool[ev.Index] = true
	case EventToolCallArgumentsDelta:
		if !s.openTool[ev.Index] {
			return fmt.Errorf("ToolCallArgumentsDelta at index %d without a preceding ToolCallStart", ev.Index)
		}
	case EventToolCallEnd:
		if !s.openTool[ev.Index] {
			return fmt.Errorf("ToolCallEnd at index %d without a preceding ToolCallStart", ev.Index)
		}
		delete(s.openTool, ev.Index)
	case EventUsageUpdate:
		if !s.started {
			return fmt.Errorf("UsageUpdate before Start")
		}
	case EventEnd, EventError:
		s.done = true
	default:
		return fmt.Errorf("unknown stream event type %q", ev.Type)
	}
	return nil
}

// Done reports whether a terminal event has been observed.
func (s *StreamSequencer) Done() bool { return s.done }
