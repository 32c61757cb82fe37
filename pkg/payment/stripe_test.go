package payment

import (
	"testing"

	"github.com/stripe/stripe-go/v79"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		pi   *stripe.PaymentIntent
		want Outcome
	}{
		{"fresh intent awaiting a card", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, OutcomePending},
		{"declined attempt", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod, LastPaymentError: &stripe.Error{Code: stripe.ErrorCodeCardDeclined}}, OutcomeFailure},
		{"requires confirmation", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresConfirmation}, OutcomePending},
		{"requires action", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresAction}, OutcomePending},
		{"processing", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusProcessing}, OutcomePending},
		{"succeeded", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusSucceeded}, OutcomeSuccess},
		{"canceled", &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled}, OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeOf(tt.pi); got != tt.want {
				t.Errorf("outcomeOf(%s) = %s, want %s", tt.pi.Status, got, tt.want)
			}
		})
	}
}
