package observer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelSink_PublishAndDrain(t *testing.T) {
	s := NewChannelSink(4)
	s.Publish(Event{Kind: EventStarted, RequestID: "r1"})
	s.Publish(Event{Kind: EventCompleted, RequestID: "r1"})

	ev := <-s.Events()
	require.Equal(t, EventStarted, ev.Kind)
	ev = <-s.Events()
	require.Equal(t, EventCompleted, ev.Kind)
}

func TestChannelSink_DropsWhenFullWithoutBlocking(t *testing.T) {
	s := NewChannelSink(1)
	s.Publish(Event{Kind: EventStarted})
	s.Publish(Event{Kind: EventStarted}) // channel full, dropped
	s.Publish(Event{Kind: EventStarted}) // dropped

	require.Equal(t, uint64(2), s.Dropped())
	<-s.Events() // drains without hanging: Publish never blocked
}

func TestNopSink_DiscardsSilently(t *testing.T) {
	var s NopSink
	s.Publish(Event{Kind: EventStarted})
}

func TestFanOut_PublishesToEverySink(t *testing.T) {
	a := NewChannelSink(1)
	b := NewChannelSink(1)
	fo := FanOut{Sinks: []Sink{a, b}}

	fo.Publish(Event{Kind: EventStarted, RequestID: "r1"})

	evA := <-a.Events()
	evB := <-b.Events()
	require.Equal(t, "r1", evA.RequestID)
	require.Equal(t, "r1", evB.RequestID)
}

func TestFanOut_OneFullSinkDoesNotAffectSiblings(t *testing.T) {
	full := NewChannelSink(1)
	full.Publish(Event{Kind: EventStarted}) // occupies the only slot
	open := NewChannelSink(1)
	fo := FanOut{Sinks: []Sink{full, open}}

	fo.Publish(Event{Kind: EventCompleted, RequestID: "r2"})

	require.Equal(t, uint64(1), full.Dropped())
	ev := <-open.Events()
	require.Equal(t, "r2", ev.RequestID)
}
