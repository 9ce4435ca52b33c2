package obsotel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lunaroute/lunaroute/internal/observer"
)

// SpanSink turns Started/Completed lifecycle events into one span per
// request, keyed by RequestID since the two events arrive as separate
// Publish calls with no shared context (§4.5). It wraps an inner Sink
// and forwards every event unchanged, so it composes with
// observer.FanOut the same way any other sink does.
type SpanSink struct {
	tracer trace.Tracer
	inner  observer.Sink

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewSpanSink returns a SpanSink that starts/ends spans on tracer and
// forwards every event to inner.
func NewSpanSink(tracer trace.Tracer, inner observer.Sink) *SpanSink {
	return &SpanSink{tracer: tracer, inner: inner, spans: make(map[string]trace.Span)}
}

// Publish implements observer.Sink.
func (s *SpanSink) Publish(ev observer.Event) {
	switch ev.Kind {
	case observer.EventStarted:
		s.start(ev)
	case observer.EventToolCallRecorded:
		s.addToolCallEvent(ev)
	case observer.EventCompleted:
		s.finish(ev)
	}
	s.inner.Publish(ev)
}

// addToolCallEvent annotates the in-flight span with a tool-call span
// event, if one is open for ev.RequestID. A streamed tool call completing
// before the request's own span has been opened (out-of-order delivery)
// is simply dropped, same as finish does for an unknown RequestID.
func (s *SpanSink) addToolCallEvent(ev observer.Event) {
	if ev.ToolCall == nil {
		return
	}
	s.mu.Lock()
	span, ok := s.spans[ev.RequestID]
	s.mu.Unlock()
	if !ok {
		return
	}
	span.AddEvent("llm.tool_call", trace.WithAttributes(
		attribute.String("tool.name", ev.ToolCall.Name),
		attribute.String("tool.id", ev.ToolCall.ID),
	))
}

func (s *SpanSink) start(ev observer.Event) {
	attrs := []attribute.KeyValue{
		attribute.String("request.id", ev.RequestID),
	}
	if ev.Request != nil {
		attrs = append(attrs, attribute.String("llm.model", ev.Request.Model))
	}
	_, span := s.tracer.Start(context.Background(), "gateway.request", trace.WithAttributes(attrs...))

	s.mu.Lock()
	s.spans[ev.RequestID] = span
	s.mu.Unlock()
}

func (s *SpanSink) finish(ev observer.Event) {
	s.mu.Lock()
	span, ok := s.spans[ev.RequestID]
	if ok {
		delete(s.spans, ev.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	defer span.End()

	if ev.Provider != "" {
		span.SetAttributes(attribute.String("llm.provider", ev.Provider))
	}
	if ev.Usage != nil {
		span.SetAttributes(
			attribute.Int64("llm.usage.input_tokens", ev.Usage.InputTokens),
			attribute.Int64("llm.usage.output_tokens", ev.Usage.OutputTokens),
		)
	}
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
}
