package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// Stripe backs Processor with Stripe PaymentIntents. The intent ID is the
// payment reference and its client secret is handed to the client.
type Stripe struct{}

func NewStripe(secretKey string) *Stripe {
	stripe.Key = strings.TrimSpace(secretKey)
	return &Stripe{}
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	return &Intent{Reference: pi.ID, ClientToken: pi.ClientSecret}, nil
}

func (s *Stripe) PaymentResult(ctx context.Context, reference string) (Outcome, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(reference, params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return outcomeOf(pi), nil
}

func (s *Stripe) CancelPayment(ctx context.Context, reference string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := paymentintent.Cancel(reference, params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

// outcomeOf maps an intent onto an Outcome. A fresh intent also sits in
// requires_payment_method, so that status is a failure only after a declined
// attempt.
func outcomeOf(pi *stripe.PaymentIntent) Outcome {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return OutcomeSuccess
	case stripe.PaymentIntentStatusCanceled:
		return OutcomeFailure
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return OutcomeFailure
		}
		return OutcomePending
	default:
		return OutcomePending
	}
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			return fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
		case stripeErr.HTTPStatusCode == 404:
			return fmt.Errorf("%w: %s", ErrUnknownReference, stripeErr.Msg)
		}
	}
	return fmt.Errorf("stripe request failed: %w", err)
}
