package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrInvalidArgument = errors.New("invalid booking argument")

	ErrSlotConflict = errors.New("slot already held by an active booking")

	ErrInvalidState = errors.New("booking is not in a state that allows this transition")

	ErrPaymentFailure = errors.New("payment failed")

	ErrReferenceMismatch = errors.New("payment reference does not match booking")

	ErrTrainerNotFound = errors.New("trainer not found")
)

// StateError reports the status that blocked a transition. It matches
// ErrInvalidState with errors.Is.
type StateError struct {
	BookingID string
	Status    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: booking %s is %s", ErrInvalidState, e.BookingID, e.Status)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}
