package normalized

// StreamEventType tags the variant held by a StreamEvent. Modeled as a
// linear tagged struct (teacher's provider.StreamChunk) rather than an
// interface hierarchy, since the per-index accumulation state machine in
// the dialect converters needs to switch on this explicitly.
type StreamEventType string

const (
	EventStart                   StreamEventType = "start"
	EventContentDelta             StreamEventType = "content_delta"
	EventToolCallStart            StreamEventType = "tool_call_start"
	EventToolCallArgumentsDelta   StreamEventType = "tool_call_arguments_delta"
	EventToolCallEnd              StreamEventType = "tool_call_end"
	EventUsageUpdate              StreamEventType = "usage_update"
	EventEnd                      StreamEventType = "end"
	EventError                    StreamEventType = "error"
)

// StreamEvent is one element of a NormalizedStreamEvent sequence. Only the
// fields relevant to Type are populated.
type StreamEvent struct {
	Type StreamEventType

	// EventStart
	ID    string
	Model string

	// EventContentDelta, EventToolCallStart, EventToolCallArgumentsDelta,
	// EventToolCallEnd: which content-block index this event belongs to.
	Index int

	// EventContentDelta
	Text string

	// EventToolCallStart
	ToolCallID   string
	ToolCallName string

	// EventToolCallArgumentsDelta
	ArgumentsFragment string

	// EventUsageUpdate, EventEnd (usage may also land on End)
	Usage *Usage

	// EventEnd
	FinishReason FinishReason

	// EventError
	ErrorKind    string
	ErrorMessage string
}

// IsTerminal reports whether this event ends a stream (absorbing state).
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventEnd || e.Type == EventError
}
