package transport

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSEParser_ParsesMultipleEvents(t *testing.T) {
	raw := "event: message_start\ndata: {\"type\":\"message_start\"}\n\ndata: {\"type\":\"ping\"}\n\n"
	p := NewSSEParser(strings.NewReader(raw))

	ev, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "message_start", ev.Event)
	require.Equal(t, `{"type":"message_start"}`, ev.Data)

	ev, err = p.Next()
	require.NoError(t, err)
	require.Equal(t, "", ev.Event)
	require.Equal(t, `{"type":"ping"}`, ev.Data)

	_, err = p.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEParser_IgnoresComments(t *testing.T) {
	raw := ": keepalive\ndata: hello\n\n"
	p := NewSSEParser(strings.NewReader(raw))
	ev, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "hello", ev.Data)
}

func TestSSEParser_MultilineDataJoinedWithNewline(t *testing.T) {
	raw := "data: line one\ndata: line two\n\n"
	p := NewSSEParser(strings.NewReader(raw))
	ev, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", ev.Data)
}

func TestIsDone_RecognizesDoneSentinel(t *testing.T) {
	require.True(t, IsDone(&SSEEvent{Data: "[DONE]"}))
	require.False(t, IsDone(&SSEEvent{Data: "{}"}))
}

func TestSSEWriter_WriteEventRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)
	require.NoError(t, w.WriteEvent(SSEEvent{Event: "content_block_delta", Data: `{"text":"hi"}`}))

	p := NewSSEParser(&buf)
	ev, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "content_block_delta", ev.Event)
	require.Equal(t, `{"text":"hi"}`, ev.Data)
}

func TestSSEWriter_WriteDone(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)
	require.NoError(t, w.WriteDone())
	require.Contains(t, buf.String(), "data: [DONE]")
}
