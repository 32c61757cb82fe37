package events

import (
	"context"

	"trainerbook/pkg/kafka"
)

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

// NewKafkaPublisher keys events by trainer so each trainer's history stays
// ordered within one partition.
func NewKafkaPublisher(producer *kafka.Producer, source string) Publisher {
	return &kafkaPublisher{producer: producer, source: source}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.TrainerID).
		WithEventID(event.ID).
		WithEventType(event.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithValue(event).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
