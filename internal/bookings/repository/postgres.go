package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	bookingserrors "trainerbook/internal/bookings/errors"
	"trainerbook/pkg/config"
	pgtx "trainerbook/pkg/db/postgres"
	"trainerbook/pkg/model"
)

const bookingColumns = `id, trainer_id, user_id, date, start_time, end_time, status,
	coalesce(notes, ''), coalesce(payment_reference, ''), coalesce(cancel_reason, ''),
	coalesce(cancelled_by, ''), created_at, updated_at`

type pgBookingRepository struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	txManager pgtx.TransactionManager
}

func NewPostgresBookingRepository(cfg *config.Config) BookingRepository {
	return &pgBookingRepository{
		cfg:       cfg,
		pool:      cfg.Client.Postgres,
		txManager: pgtx.NewTransactionManager(cfg.Client.Postgres),
	}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.TrainerID, &b.UserID, &b.Date, &b.StartTime, &b.EndTime, &b.Status,
		&b.Notes, &b.PaymentReference, &b.CancelReason, &b.CancelledBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.SlotHeld = model.IsActiveStatus(b.Status)
	return &b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *pgBookingRepository) Reserve(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.Status = model.StatusPendingPayment
	booking.SlotHeld = true
	booking.CreatedAt = now()
	booking.UpdatedAt = booking.CreatedAt

	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, trainer_id, user_id, date, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		booking.ID, booking.TrainerID, booking.UserID, booking.Date, booking.StartTime, booking.EndTime,
		booking.Status, nullable(booking.Notes), booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		if pgtx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s %s", bookingserrors.ErrSlotConflict, booking.TrainerID, booking.Date, booking.StartTime)
		}
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	return nil
}

func (r *pgBookingRepository) IsSlotTaken(ctx context.Context, trainerID, date, startTime string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE trainer_id = $1 AND date = $2 AND start_time = $3
			  AND status IN ('pending_payment', 'confirmed'))`,
		trainerID, date, startTime,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return taken, nil
}

func (r *pgBookingRepository) TakenStartTimes(ctx context.Context, trainerID, date string) (map[string]struct{}, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT start_time FROM bookings
		WHERE trainer_id = $1 AND date = $2 AND status IN ('pending_payment', 'confirmed')`,
		trainerID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list taken slots: %w", err)
	}

	starts, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read taken slots: %w", err)
	}

	taken := make(map[string]struct{}, len(starts))
	for _, s := range starts {
		taken[s] = struct{}{}
	}
	return taken, nil
}

func (r *pgBookingRepository) AttachPaymentReference(ctx context.Context, id, paymentReference string) (*model.Booking, error) {
	return r.transition(ctx, id, []string{model.StatusPendingPayment}, func(b *model.Booking) {
		b.PaymentReference = paymentReference
	})
}

func (r *pgBookingRepository) Confirm(ctx context.Context, id, paymentReference string) (*model.Booking, error) {
	return r.transition(ctx, id, model.SourceStatuses(model.StatusConfirmed), func(b *model.Booking) {
		b.Status = model.StatusConfirmed
		b.PaymentReference = paymentReference
	})
}

func (r *pgBookingRepository) Cancel(ctx context.Context, id, actor, reason string) (*model.Booking, error) {
	return r.transition(ctx, id, model.SourceStatuses(model.StatusCancelled), func(b *model.Booking) {
		b.Status = model.StatusCancelled
		b.CancelReason = reason
		b.CancelledBy = actor
	})
}

func (r *pgBookingRepository) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return r.transition(ctx, id, model.SourceStatuses(model.StatusCompleted), func(b *model.Booking) {
		b.Status = model.StatusCompleted
	})
}

// transition locks the row, checks its status against from and writes the
// mutated booking back in the same transaction.
func (r *pgBookingRepository) transition(ctx context.Context, id string, from []string, mutate func(*model.Booking)) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var updated *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return bookingserrors.ErrNotFound
			}
			return fmt.Errorf("failed to lock booking: %w", err)
		}

		allowed := false
		for _, s := range from {
			if b.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return &bookingserrors.StateError{BookingID: id, Status: b.Status}
		}

		mutate(b)
		b.UpdatedAt = now()
		b.SlotHeld = model.IsActiveStatus(b.Status)

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET status = $2, payment_reference = $3, cancel_reason = $4, cancelled_by = $5, updated_at = $6
			WHERE id = $1`,
			b.ID, b.Status, nullable(b.PaymentReference), nullable(b.CancelReason), nullable(b.CancelledBy), b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExpirePendingOlderThan is a single statement, so rows confirmed in the
// meantime no longer match and are left alone.
func (r *pgBookingRepository) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancel_reason = $2, cancelled_by = $3, updated_at = $4
		WHERE status = 'pending_payment' AND created_at < $1
		RETURNING `+bookingColumns,
		cutoff.UTC(), model.CancelReasonExpired, model.ActorSystem, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expire bookings: %w", err)
	}

	expired, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Booking, error) {
		return scanBooking(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read expired bookings: %w", err)
	}
	return expired, nil
}

func (r *pgBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *pgBookingRepository) FindByPaymentReference(ctx context.Context, paymentReference string) (*model.Booking, error) {
	return r.findOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_reference = $1`, paymentReference)
}

func (r *pgBookingRepository) findOne(ctx context.Context, query string, arg string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return b, nil
}

func (r *pgBookingRepository) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Booking, error) {
		return scanBooking(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	return bookings, nil
}

func (r *pgBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
