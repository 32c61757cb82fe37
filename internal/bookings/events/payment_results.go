package events

import (
	"context"
	"encoding/json"
	"fmt"

	"trainerbook/pkg/amqp"
	apperrors "trainerbook/pkg/errors"
	"trainerbook/pkg/kafka"
	"trainerbook/pkg/payment"
)

// PaymentResult is the message a payment provider bridge publishes once a
// payment settles.
type PaymentResult struct {
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
}

type PaymentResultHandler interface {
	HandlePaymentResult(ctx context.Context, reference string, outcome payment.Outcome) error
}

func decodePaymentResult(body []byte) (string, payment.Outcome, error) {
	var result PaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", "", fmt.Errorf("decode payment result: %w", err)
	}
	if result.Reference == "" {
		return "", "", fmt.Errorf("payment result without reference")
	}
	outcome, ok := payment.ParseOutcome(result.Outcome)
	if !ok {
		return "", "", fmt.Errorf("unknown payment outcome %q", result.Outcome)
	}
	return result.Reference, outcome, nil
}

// retryable reports whether a failed handling attempt may succeed later.
// Unknown references and stale transitions are final answers, not failures.
func retryable(err error) bool {
	if apperrors.HasCode(err, apperrors.CodeNotFound) ||
		apperrors.HasCode(err, apperrors.CodeInvalidState) ||
		apperrors.HasCode(err, apperrors.CodePaymentFailed) {
		return false
	}
	return true
}

func KafkaPaymentResultHandler(h PaymentResultHandler) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		reference, outcome, err := decodePaymentResult(msg.Value)
		if err != nil {
			return kafka.NewPermanentError("invalid payment result", err)
		}

		if err := h.HandlePaymentResult(ctx, reference, outcome); err != nil {
			if !retryable(err) {
				return kafka.NewBusinessError("payment result not applied", err)
			}
			return kafka.NewTransientError("payment result handling failed", err)
		}
		return nil
	}
}

func AMQPPaymentResultHandler(h PaymentResultHandler) amqp.Handler {
	return func(ctx context.Context, body []byte) (bool, error) {
		reference, outcome, err := decodePaymentResult(body)
		if err != nil {
			return false, err
		}
		if err := h.HandlePaymentResult(ctx, reference, outcome); err != nil {
			if !retryable(err) {
				return false, nil
			}
			return true, err
		}
		return false, nil
	}
}
