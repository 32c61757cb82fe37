package model

import (
	"time"
)

const (
	StatusPendingPayment = "pending_payment"
	StatusConfirmed      = "confirmed"
	StatusCancelled      = "cancelled"
	StatusCompleted      = "completed"
)

const (
	CancelReasonUser          = "user"
	CancelReasonAdmin         = "admin"
	CancelReasonPaymentFailed = "payment_failed"
	CancelReasonExpired       = "expired"
)

const ActorSystem = "system"

type Booking struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty"`
	TrainerID        string    `json:"trainer_id" bson:"trainer_id" validate:"required,max=64"`
	UserID           string    `json:"user_id" bson:"user_id" validate:"required,max=64"`
	Date             string    `json:"date" bson:"date" validate:"required,civil_date"`
	StartTime        string    `json:"start_time" bson:"start_time" validate:"required,hhmm"`
	EndTime          string    `json:"end_time" bson:"end_time" validate:"required,hhmm"`
	Status           string    `json:"status" bson:"status" validate:"required,oneof=pending_payment confirmed cancelled completed"`
	SlotHeld         bool      `json:"-" bson:"slot_held"`
	Notes            string    `json:"notes,omitempty" bson:"notes,omitempty" validate:"max=500"`
	PaymentReference string    `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	CancelReason     string    `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CancelledBy      string    `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// ReserveRequest is the client payload for holding a slot.
type ReserveRequest struct {
	TrainerID string `json:"trainer_id" validate:"required,max=64"`
	UserID    string `json:"-" validate:"required,max=64"`
	Date      string `json:"date" validate:"required,civil_date"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
	Notes     string `json:"notes,omitempty" validate:"max=500"`
}

type ReserveResult struct {
	BookingID          string   `json:"booking_id"`
	PaymentClientToken string   `json:"payment_client_token"`
	Booking            *Booking `json:"booking"`
}

type ConfirmRequest struct {
	PaymentReference string `json:"payment_reference" validate:"required,max=255"`
}

// IsActiveStatus reports whether a booking in status s occupies its slot.
func IsActiveStatus(s string) bool {
	return s == StatusPendingPayment || s == StatusConfirmed
}

var transitions = map[string][]string{
	StatusConfirmed: {StatusPendingPayment},
	StatusCancelled: {StatusPendingPayment, StatusConfirmed},
	StatusCompleted: {StatusConfirmed},
}

// SourceStatuses lists the statuses a booking may move to target from.
func SourceStatuses(target string) []string {
	return transitions[target]
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}
