package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sandbox settles payments in process. Every intent reports DefaultOutcome
// until SetOutcome overrides it.
type Sandbox struct {
	DefaultOutcome Outcome

	mu       sync.Mutex
	outcomes map[string]Outcome
}

func NewSandbox(defaultOutcome Outcome) *Sandbox {
	if defaultOutcome == "" {
		defaultOutcome = OutcomeSuccess
	}
	return &Sandbox{
		DefaultOutcome: defaultOutcome,
		outcomes:       map[string]Outcome{},
	}
}

func (s *Sandbox) CreatePaymentIntent(ctx context.Context, amount int64, currency string, _ map[string]string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrDeclined, amount)
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: invalid currency %q", ErrDeclined, currency)
	}

	id := uuid.NewString()
	intent := &Intent{
		Reference:   "sbx_" + id,
		ClientToken: "sbx_secret_" + id,
	}

	s.mu.Lock()
	s.outcomes[intent.Reference] = s.DefaultOutcome
	s.mu.Unlock()
	return intent, nil
}

func (s *Sandbox) PaymentResult(ctx context.Context, reference string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, ok := s.outcomes[reference]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownReference, reference)
	}
	return outcome, nil
}

func (s *Sandbox) CancelPayment(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outcomes[reference]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReference, reference)
	}
	s.outcomes[reference] = OutcomeFailure
	return nil
}

// SetOutcome decides how an existing intent settles.
func (s *Sandbox) SetOutcome(reference string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[reference] = outcome
}
