package kafka_middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"trainerbook/pkg/kafka"
)

// TracingProducerMiddleware writes the W3C trace context of ctx into the
// message headers.
func TracingProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		if msg.Headers == nil {
			msg.Headers = make(map[string]string)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Headers))
		return next(ctx, msg)
	}
}

// TracingConsumerMiddleware continues the producer's trace, if any, in the
// handler context.
func TracingConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		if len(msg.Headers) > 0 {
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
		}
		return next(ctx, msg)
	}
}
