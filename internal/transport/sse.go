package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// SSEEvent is one parsed Server-Sent Event frame.
type SSEEvent struct {
	Event string
	Data  string
	ID    string
}

// DoneSentinel is the payload OpenAI-dialect streams use to signal
// completion instead of a typed terminal event.
const DoneSentinel = "[DONE]"

// SSEParser reads Server-Sent Events off an upstream response body. It
// buffers across read boundaries so a multi-byte UTF-8 sequence split
// across two TCP reads is never corrupted — bufio.Scanner operates on
// complete lines, so this falls out of using it rather than reading raw
// chunks.
type SSEParser struct {
	scanner *bufio.Scanner
	err     error
}

// NewSSEParser returns a parser reading from r.
func NewSSEParser(r io.Reader) *SSEParser {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEParser{scanner: s}
}

// Next returns the next event, or io.EOF when the stream ends cleanly.
func (p *SSEParser) Next() (*SSEEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	event := &SSEEvent{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" || event.ID != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue // comment / keepalive
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = fmt.Errorf("sse: reading stream: %w", err)
		return nil, p.err
	}

	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		p.err = io.EOF
		return event, nil
	}

	p.err = io.EOF
	return nil, io.EOF
}

// IsDone reports whether ev is the OpenAI-dialect terminal sentinel.
func IsDone(ev *SSEEvent) bool {
	return ev != nil && ev.Data == DoneSentinel
}

// SSEWriter writes Server-Sent Events to the client connection. Each
// WriteEvent call is followed by a flush so deltas reach the client as
// soon as they're produced rather than waiting on the runtime's buffer.
type SSEWriter struct {
	w       io.Writer
	flusher flusher
}

// flusher is implemented by http.ResponseWriter; kept as a narrow
// interface so tests can write to a bytes.Buffer without a real response.
type flusher interface {
	Flush()
}

// NewSSEWriter returns a writer over w. If w also implements Flush (as
// http.ResponseWriter does when streaming is supported), each event is
// flushed immediately.
func NewSSEWriter(w io.Writer) *SSEWriter {
	sw := &SSEWriter{w: w}
	if f, ok := w.(flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent writes one SSE frame: an optional "event:" line, then one
// or more "data:" lines, then a blank line.
func (w *SSEWriter) WriteEvent(ev SSEEvent) error {
	var b strings.Builder
	if ev.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", ev.Event)
	}
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return fmt.Errorf("sse: writing event: %w", err)
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// WriteDone writes dialect A's terminal "[DONE]" data-only frame.
func (w *SSEWriter) WriteDone() error {
	return w.WriteEvent(SSEEvent{Data: DoneSentinel})
}
