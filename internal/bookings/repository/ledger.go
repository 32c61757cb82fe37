package repository

import (
	"context"
	"time"

	"trainerbook/pkg/model"
)

// BookingRepository is the booking ledger. Reserve is the only place where
// double booking is prevented: at most one booking per (trainer, date, start)
// may be pending_payment or confirmed, and a losing Reserve returns
// ErrSlotConflict. Every transition is a compare-and-swap on status.
type BookingRepository interface {
	Reserve(ctx context.Context, booking *model.Booking) error
	IsSlotTaken(ctx context.Context, trainerID, date, startTime string) (bool, error)
	TakenStartTimes(ctx context.Context, trainerID, date string) (map[string]struct{}, error)

	AttachPaymentReference(ctx context.Context, id, paymentReference string) (*model.Booking, error)
	Confirm(ctx context.Context, id, paymentReference string) (*model.Booking, error)
	Cancel(ctx context.Context, id, actor, reason string) (*model.Booking, error)
	Complete(ctx context.Context, id string) (*model.Booking, error)
	ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Booking, error)

	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByPaymentReference(ctx context.Context, paymentReference string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// withTimeout bounds ctx by timeout unless the caller already set a tighter deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
