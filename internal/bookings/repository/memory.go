package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	bookingserrors "trainerbook/internal/bookings/errors"
	"trainerbook/pkg/model"
)

type slotKey struct {
	trainerID, date, startTime string
}

// memoryBookingRepository keeps the ledger in process memory. The held map
// plays the role of the storage unique index. Suitable for a single replica
// in development and for tests.
type memoryBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	held     map[slotKey]string
	clock    func() time.Time
}

func NewMemoryBookingRepository(clock func() time.Time) BookingRepository {
	if clock == nil {
		clock = now
	}
	return &memoryBookingRepository{
		bookings: map[string]*model.Booking{},
		held:     map[slotKey]string{},
		clock:    clock,
	}
}

func keyOf(b *model.Booking) slotKey {
	return slotKey{trainerID: b.TrainerID, date: b.Date, startTime: b.StartTime}
}

func clone(b *model.Booking) *model.Booking {
	c := *b
	return &c
}

func (r *memoryBookingRepository) Reserve(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(booking)
	if _, taken := r.held[key]; taken {
		return bookingserrors.ErrSlotConflict
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.Status = model.StatusPendingPayment
	booking.SlotHeld = true
	booking.CreatedAt = r.clock()
	booking.UpdatedAt = booking.CreatedAt

	r.bookings[booking.ID] = clone(booking)
	r.held[key] = booking.ID
	return nil
}

func (r *memoryBookingRepository) IsSlotTaken(_ context.Context, trainerID, date, startTime string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := r.held[slotKey{trainerID: trainerID, date: date, startTime: startTime}]
	return taken, nil
}

func (r *memoryBookingRepository) TakenStartTimes(_ context.Context, trainerID, date string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := map[string]struct{}{}
	for key := range r.held {
		if key.trainerID == trainerID && key.date == date {
			taken[key.startTime] = struct{}{}
		}
	}
	return taken, nil
}

func (r *memoryBookingRepository) AttachPaymentReference(_ context.Context, id, paymentReference string) (*model.Booking, error) {
	return r.transition(id, []string{model.StatusPendingPayment}, func(b *model.Booking) {
		b.PaymentReference = paymentReference
	})
}

func (r *memoryBookingRepository) Confirm(_ context.Context, id, paymentReference string) (*model.Booking, error) {
	return r.transition(id, model.SourceStatuses(model.StatusConfirmed), func(b *model.Booking) {
		b.Status = model.StatusConfirmed
		b.PaymentReference = paymentReference
	})
}

func (r *memoryBookingRepository) Cancel(_ context.Context, id, actor, reason string) (*model.Booking, error) {
	return r.transition(id, model.SourceStatuses(model.StatusCancelled), func(b *model.Booking) {
		b.Status = model.StatusCancelled
		b.CancelReason = reason
		b.CancelledBy = actor
	})
}

func (r *memoryBookingRepository) Complete(_ context.Context, id string) (*model.Booking, error) {
	return r.transition(id, model.SourceStatuses(model.StatusCompleted), func(b *model.Booking) {
		b.Status = model.StatusCompleted
	})
}

func (r *memoryBookingRepository) transition(id string, from []string, mutate func(*model.Booking)) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.transitionLocked(id, from, mutate)
}

func (r *memoryBookingRepository) transitionLocked(id string, from []string, mutate func(*model.Booking)) (*model.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}

	allowed := false
	for _, s := range from {
		if b.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, &bookingserrors.StateError{BookingID: id, Status: b.Status}
	}

	mutate(b)
	b.UpdatedAt = r.clock()
	b.SlotHeld = model.IsActiveStatus(b.Status)
	if !b.SlotHeld && r.held[keyOf(b)] == b.ID {
		delete(r.held, keyOf(b))
	}
	return clone(b), nil
}

func (r *memoryBookingRepository) ExpirePendingOlderThan(_ context.Context, cutoff time.Time) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := []*model.Booking{}
	for id, b := range r.bookings {
		if b.Status != model.StatusPendingPayment || !b.CreatedAt.Before(cutoff) {
			continue
		}
		updated, err := r.transitionLocked(id, []string{model.StatusPendingPayment}, func(b *model.Booking) {
			b.Status = model.StatusCancelled
			b.CancelReason = model.CancelReasonExpired
			b.CancelledBy = model.ActorSystem
		})
		if err != nil {
			return expired, err
		}
		expired = append(expired, updated)
	}
	return expired, nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return clone(b), nil
}

func (r *memoryBookingRepository) FindByPaymentReference(_ context.Context, paymentReference string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if paymentReference != "" && b.PaymentReference == paymentReference {
			return clone(b), nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *memoryBookingRepository) ListByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := []*model.Booking{}
	for _, b := range r.bookings {
		if b.UserID == userID {
			all = append(all, clone(b))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date > all[j].Date
		}
		return all[i].StartTime > all[j].StartTime
	})

	if offset >= int64(len(all)) {
		return []*model.Booking{}, nil
	}
	end := min(int(offset)+limit, len(all))
	return all[offset:end], nil
}

func (r *memoryBookingRepository) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, b := range r.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}
