package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSandbox_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox("")

	intent, err := s.CreatePaymentIntent(ctx, 5000, "usd", map[string]string{"booking_id": "b1"})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if !strings.HasPrefix(intent.Reference, "sbx_") || intent.ClientToken == "" {
		t.Fatalf("unexpected intent %+v", intent)
	}

	outcome, err := s.PaymentResult(ctx, intent.Reference)
	if err != nil || outcome != OutcomeSuccess {
		t.Errorf("PaymentResult = %s, %v; want success", outcome, err)
	}

	s.SetOutcome(intent.Reference, OutcomePending)
	if outcome, _ := s.PaymentResult(ctx, intent.Reference); outcome != OutcomePending {
		t.Errorf("outcome after SetOutcome = %s", outcome)
	}

	if err := s.CancelPayment(ctx, intent.Reference); err != nil {
		t.Fatalf("CancelPayment: %v", err)
	}
	if outcome, _ := s.PaymentResult(ctx, intent.Reference); outcome != OutcomeFailure {
		t.Errorf("cancelled intent should report failure, got %s", outcome)
	}
}

func TestSandbox_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox(OutcomeFailure)

	tests := []struct {
		name     string
		amount   int64
		currency string
		want     error
	}{
		{"zero amount", 0, "usd", ErrDeclined},
		{"bad currency", 100, "dollars", ErrDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreatePaymentIntent(ctx, tt.amount, tt.currency, nil); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := s.PaymentResult(ctx, "missing"); !errors.Is(err, ErrUnknownReference) {
		t.Errorf("expected ErrUnknownReference, got %v", err)
	}
	if err := s.CancelPayment(ctx, "missing"); !errors.Is(err, ErrUnknownReference) {
		t.Errorf("expected ErrUnknownReference, got %v", err)
	}
}

func TestParseOutcome(t *testing.T) {
	for _, s := range []string{"success", "failure", "pending"} {
		if o, ok := ParseOutcome(s); !ok || string(o) != s {
			t.Errorf("ParseOutcome(%q) = %q, %v", s, o, ok)
		}
	}
	if _, ok := ParseOutcome("refunded"); ok {
		t.Error("unknown outcome should not parse")
	}
}
