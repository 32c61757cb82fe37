package kafka_middleware

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"trainerbook/pkg/kafka"
)

func TestTracingMiddleware_RoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var sent kafka.Message
	err := TracingProducerMiddleware()(parent, kafka.Message{Topic: "booking-events"}, func(_ context.Context, msg kafka.Message) error {
		sent = msg
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent.Headers["traceparent"] == "" {
		t.Fatalf("traceparent header missing: %v", sent.Headers)
	}

	var got trace.SpanContext
	err = TracingConsumerMiddleware()(context.Background(), sent, func(ctx context.Context, _ kafka.Message) error {
		got = trace.SpanContextFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.TraceID() != traceID {
		t.Errorf("trace id = %s, want %s", got.TraceID(), traceID)
	}
}
