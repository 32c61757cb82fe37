package payment

import (
	"context"
	"errors"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePending Outcome = "pending"
)

var (
	ErrUnknownReference = errors.New("unknown payment reference")
	ErrDeclined         = errors.New("payment declined")
)

// Intent is what a client needs to complete a payment out of band.
type Intent struct {
	Reference   string `json:"reference"`
	ClientToken string `json:"client_token"`
}

// Processor is the external payment provider. Amounts are in the currency's
// minor unit.
type Processor interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
	PaymentResult(ctx context.Context, reference string) (Outcome, error)
	CancelPayment(ctx context.Context, reference string) error
}

// ParseOutcome maps provider result strings onto an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(s) {
	case OutcomeSuccess, OutcomeFailure, OutcomePending:
		return Outcome(s), true
	}
	return "", false
}
