package events

import (
	"context"

	"trainerbook/pkg/amqp"
)

type amqpPublisher struct {
	publisher *amqp.Publisher
	source    string
}

// NewAMQPPublisher routes each event by its type on the configured exchange.
func NewAMQPPublisher(publisher *amqp.Publisher, source string) Publisher {
	return &amqpPublisher{publisher: publisher, source: source}
}

func (p *amqpPublisher) Publish(ctx context.Context, event Event) error {
	headers := map[string]string{
		"trainer-id":     event.TrainerID,
		"schema-version": SchemaVersion,
		"source":         p.source,
	}
	return p.publisher.PublishJSON(ctx, event.Type, event.ID, headers, event)
}

func (p *amqpPublisher) Close() error {
	return p.publisher.Close()
}
