package events

import (
	"context"
	"errors"

	"trainerbook/pkg/amqp"
	"trainerbook/pkg/contracts"
	"trainerbook/pkg/kafka"
)

type kafkaResultsWorker struct {
	consumer *kafka.Consumer
}

// NewKafkaPaymentResultsWorker runs consumer until shutdown and closes it on exit.
func NewKafkaPaymentResultsWorker(consumer *kafka.Consumer) contracts.Worker {
	return &kafkaResultsWorker{consumer: consumer}
}

func (w *kafkaResultsWorker) Name() string {
	return "payment-results-kafka"
}

func (w *kafkaResultsWorker) Run(ctx context.Context) error {
	err := w.consumer.Start(ctx)
	return errors.Join(ignoreCanceled(err), w.consumer.Close())
}

type amqpResultsWorker struct {
	consumer *amqp.Consumer
	handler  amqp.Handler
}

func NewAMQPPaymentResultsWorker(consumer *amqp.Consumer, h PaymentResultHandler) contracts.Worker {
	return &amqpResultsWorker{consumer: consumer, handler: AMQPPaymentResultHandler(h)}
}

func (w *amqpResultsWorker) Name() string {
	return "payment-results-amqp"
}

func (w *amqpResultsWorker) Run(ctx context.Context) error {
	err := w.consumer.Start(ctx, w.handler)
	return errors.Join(ignoreCanceled(err), w.consumer.Close())
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
