package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "trainerbook/internal/bookings/errors"
	"trainerbook/pkg/config"
	"trainerbook/pkg/model"
)

const (
	CollectionName = "Bookings"

	// ActiveSlotIndex is the partial unique index backing Reserve.
	ActiveSlotIndex = "uniq_active_slot"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Reserve(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.Status = model.StatusPendingPayment
	booking.SlotHeld = true
	booking.CreatedAt = now()
	booking.UpdatedAt = booking.CreatedAt

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s %s %s", bookingserrors.ErrSlotConflict, booking.TrainerID, booking.Date, booking.StartTime)
		}
		return fmt.Errorf("failed to reserve slot: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) IsSlotTaken(ctx context.Context, trainerID, date, startTime string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"trainer_id": trainerID, "date": date, "start_time": startTime, "slot_held": true}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return count > 0, nil
}

func (r *mongoBookingRepository) TakenStartTimes(ctx context.Context, trainerID, date string) (map[string]struct{}, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"trainer_id": trainerID, "date": date, "slot_held": true}
	opts := options.Find().SetProjection(bson.M{"start_time": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list taken slots: %w", err)
	}
	defer cursor.Close(ctx)

	taken := map[string]struct{}{}
	for cursor.Next(ctx) {
		var row struct {
			StartTime string `bson:"start_time"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode taken slot: %w", err)
		}
		taken[row.StartTime] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate taken slots: %w", err)
	}
	return taken, nil
}

func (r *mongoBookingRepository) AttachPaymentReference(ctx context.Context, id, paymentReference string) (*model.Booking, error) {
	return r.transition(ctx, id, []string{model.StatusPendingPayment}, bson.M{
		"payment_reference": paymentReference,
	})
}

func (r *mongoBookingRepository) Confirm(ctx context.Context, id, paymentReference string) (*model.Booking, error) {
	return r.transition(ctx, id, model.SourceStatuses(model.StatusConfirmed), bson.M{
		"status":            model.StatusConfirmed,
		"payment_reference": paymentReference,
	})
}

func (r *mongoBookingRepository) Cancel(ctx context.Context, id, actor, reason string) (*model.Booking, error) {
	return r.transition(ctx, id, model.SourceStatuses(model.StatusCancelled), bson.M{
		"status":        model.StatusCancelled,
		"slot_held":     false,
		"cancel_reason": reason,
		"cancelled_by":  actor,
	})
}

func (r *mongoBookingRepository) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return r.transition(ctx, id, model.SourceStatuses(model.StatusCompleted), bson.M{
		"status":    model.StatusCompleted,
		"slot_held": false,
	})
}

// transition applies set only while the booking is in one of from. A miss is
// resolved into ErrNotFound or ErrInvalidState with a follow-up read.
func (r *mongoBookingRepository) transition(ctx context.Context, id string, from []string, set bson.M) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set["updated_at"] = now()
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&booking)
	if err == nil {
		return &booking, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	return nil, &bookingserrors.StateError{BookingID: id, Status: current.Status}
}

// ExpirePendingOlderThan cancels pending bookings created before cutoff. Each
// booking is moved with its own conditional update, so concurrent sweeps and
// confirmations never double-apply.
func (r *mongoBookingRepository) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Booking, error) {
	findCtx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"status": model.StatusPendingPayment, "created_at": bson.M{"$lt": cutoff.UTC()}}
	cursor, err := r.collection.Find(findCtx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale bookings: %w", err)
	}

	var stale []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(findCtx, &stale); err != nil {
		return nil, fmt.Errorf("failed to decode stale bookings: %w", err)
	}

	expired := make([]*model.Booking, 0, len(stale))
	for _, s := range stale {
		b, err := r.transition(ctx, s.ID, []string{model.StatusPendingPayment}, bson.M{
			"status":        model.StatusCancelled,
			"slot_held":     false,
			"cancel_reason": model.CancelReasonExpired,
			"cancelled_by":  model.ActorSystem,
		})
		if err != nil {
			if errors.Is(err, bookingserrors.ErrInvalidState) || errors.Is(err, bookingserrors.ErrNotFound) {
				continue
			}
			return expired, err
		}
		expired = append(expired, b)
	}
	return expired, nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoBookingRepository) FindByPaymentReference(ctx context.Context, paymentReference string) (*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findOne(ctx, bson.M{"payment_reference": paymentReference})
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M) (*model.Booking, error) {
	var booking model.Booking
	if err := r.collection.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "start_time", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
