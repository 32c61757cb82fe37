package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
)

const (
	TypeReserved  = "booking.reserved"
	TypeConfirmed = "booking.confirmed"
	TypeCancelled = "booking.cancelled"
	TypeExpired   = "booking.expired"
	TypeCompleted = "booking.completed"
)

const SchemaVersion = "1"

// Event is the payload published for every booking transition.
type Event struct {
	ID               string    `json:"event_id"`
	Type             string    `json:"event_type"`
	BookingID        string    `json:"booking_id"`
	TrainerID        string    `json:"trainer_id"`
	UserID           string    `json:"user_id"`
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	Status           string    `json:"status"`
	CancelReason     string    `json:"cancel_reason,omitempty"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func FromBooking(eventType string, b *model.Booking) Event {
	return Event{
		ID:               uuid.NewString(),
		Type:             eventType,
		BookingID:        b.ID,
		TrainerID:        b.TrainerID,
		UserID:           b.UserID,
		Date:             b.Date,
		StartTime:        b.StartTime,
		EndTime:          b.EndTime,
		Status:           b.Status,
		CancelReason:     b.CancelReason,
		PaymentReference: b.PaymentReference,
		OccurredAt:       time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct {
	log *logger.Logger
}

// NewNoopPublisher drops events after logging them at debug level.
func NewNoopPublisher(log *logger.Logger) Publisher {
	return &noopPublisher{log: log}
}

func (p *noopPublisher) Publish(_ context.Context, event Event) error {
	p.log.Debug("Booking event", "event_type", event.Type, "booking_id", event.BookingID)
	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}
