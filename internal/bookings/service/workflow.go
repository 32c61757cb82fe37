package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	availability "trainerbook/internal/availability/service"
	bookingserrors "trainerbook/internal/bookings/errors"
	"trainerbook/internal/bookings/events"
	"trainerbook/internal/bookings/repository"
	"trainerbook/internal/bookings/validator"
	"trainerbook/pkg/civil"
	"trainerbook/pkg/config"
	apperrors "trainerbook/pkg/errors"
	"trainerbook/pkg/model"
	"trainerbook/pkg/payment"
	"trainerbook/pkg/sanitizer"
	"trainerbook/pkg/validation"
)

var tracer = otel.Tracer("trainerbook/bookings")

// BookingService drives a booking from reservation to a terminal state.
// Every transition is delegated to the ledger, which alone decides races.
type BookingService interface {
	Reserve(ctx context.Context, req *model.ReserveRequest) (*model.ReserveResult, error)
	Confirm(ctx context.Context, id, paymentReference string) (*model.Booking, error)
	Cancel(ctx context.Context, id, actor, reason string) (*model.Booking, error)
	Complete(ctx context.Context, id string) (*model.Booking, error)
	ExpireStale(ctx context.Context) (int, error)
	HandlePaymentResult(ctx context.Context, reference string, outcome payment.Outcome) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetForUser(ctx context.Context, id, userID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo         repository.BookingRepository
	availability availability.AvailabilityService
	processor    payment.Processor
	publisher    events.Publisher
	validator    *validator.BookingValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	availability availability.AvailabilityService,
	processor payment.Processor,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		availability: availability,
		processor:    processor,
		publisher:    publisher,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *bookingService) Reserve(ctx context.Context, req *model.ReserveRequest) (*model.ReserveResult, error) {
	ctx, span := tracer.Start(ctx, "bookings.Reserve")
	defer span.End()

	s.sanitize(req)
	if err := s.validator.ValidateReserve(req); err != nil {
		return nil, validationError("Invalid booking input", err)
	}
	span.SetAttributes(
		attribute.String("trainer_id", req.TrainerID),
		attribute.String("date", req.Date),
		attribute.String("start_time", req.StartTime),
	)

	trainer, err := s.availability.Trainer(ctx, req.TrainerID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyOnGrid(ctx, trainer, req); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		TrainerID: req.TrainerID,
		UserID:    req.UserID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}
	if err := s.repo.Reserve(ctx, booking); err != nil {
		if errors.Is(err, bookingserrors.ErrSlotConflict) {
			s.cfg.Log.Info("Slot already held",
				"trainer_id", booking.TrainerID,
				"date", booking.Date,
				"start_time", booking.StartTime,
				"user_id", booking.UserID,
			)
			span.SetAttributes(attribute.Bool("slot_conflict", true))
			return nil, apperrors.SlotConflict(booking.Date, booking.StartTime)
		}
		return nil, s.fail(span, "Failed to reserve slot", err)
	}
	span.SetAttributes(attribute.String("booking_id", booking.ID))

	intent, err := s.processor.CreatePaymentIntent(ctx, trainer.PricePerSession, s.currency(trainer), map[string]string{
		"booking_id": booking.ID,
		"trainer_id": booking.TrainerID,
		"user_id":    booking.UserID,
	})
	if err != nil {
		s.cfg.Log.Warn("Payment intent creation failed, releasing slot", "booking_id", booking.ID, "error", err)
		s.release(ctx, booking.ID, "")
		return nil, apperrors.PaymentFailed(err)
	}

	held, err := s.repo.AttachPaymentReference(ctx, booking.ID, intent.Reference)
	if err != nil {
		s.cfg.Log.Error("Failed to attach payment reference", "booking_id", booking.ID, "error", err)
		s.release(ctx, booking.ID, intent.Reference)
		return nil, s.fail(span, "Failed to reserve slot", err)
	}

	s.publish(ctx, events.TypeReserved, held)
	s.cfg.Log.Info("Slot reserved",
		"booking_id", held.ID,
		"trainer_id", held.TrainerID,
		"date", held.Date,
		"start_time", held.StartTime,
		"user_id", held.UserID,
	)

	return &model.ReserveResult{
		BookingID:          held.ID,
		PaymentClientToken: intent.ClientToken,
		Booking:            held,
	}, nil
}

// verifyOnGrid accepts only a slot the resolver would offer, ignoring
// whether it is currently taken. The ledger settles that.
func (s *bookingService) verifyOnGrid(ctx context.Context, trainer *model.Trainer, req *model.ReserveRequest) error {
	date, err := civil.ParseDate(req.Date)
	if err != nil {
		return apperrors.Validation("Invalid booking input", map[string]any{"date": "date must be a date in YYYY-MM-DD format"})
	}

	candidates, err := s.availability.CandidateSlots(ctx, trainer, date)
	if err != nil {
		return err
	}
	for _, slot := range candidates {
		if slot.StartTime == req.StartTime && slot.EndTime == req.EndTime {
			return nil
		}
	}
	return apperrors.Validation("Slot is not offered by this trainer", map[string]any{
		"date":       req.Date,
		"start_time": req.StartTime,
		"end_time":   req.EndTime,
	})
}

// release cancels a reservation whose payment could not be set up. It runs
// even if the caller's context is already done.
func (s *bookingService) release(ctx context.Context, bookingID, paymentReference string) {
	ctx = context.WithoutCancel(ctx)

	if paymentReference != "" {
		if err := s.processor.CancelPayment(ctx, paymentReference); err != nil {
			s.cfg.Log.Warn("Failed to cancel payment intent", "booking_id", bookingID, "payment_reference", paymentReference, "error", err)
		}
	}

	cancelled, err := s.repo.Cancel(ctx, bookingID, model.ActorSystem, model.CancelReasonPaymentFailed)
	if err != nil {
		s.cfg.Log.Error("Failed to release slot after payment failure", "booking_id", bookingID, "error", err)
		return
	}
	s.publish(ctx, events.TypeCancelled, cancelled)
}

func (s *bookingService) Confirm(ctx context.Context, id, paymentReference string) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Confirm", trace.WithAttributes(attribute.String("booking_id", id)))
	defer span.End()

	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	req := &model.ConfirmRequest{PaymentReference: paymentReference}
	if err := s.validator.ValidateConfirm(req); err != nil {
		return nil, validationError("Invalid confirmation input", err)
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.StatusPendingPayment {
		return nil, apperrors.InvalidState(booking.Status, model.StatusConfirmed)
	}
	if booking.PaymentReference != paymentReference {
		s.cfg.Log.Warn("Payment reference mismatch", "booking_id", id)
		return nil, apperrors.Validation("Payment reference does not match booking", map[string]any{
			"payment_reference": bookingserrors.ErrReferenceMismatch.Error(),
		})
	}

	outcome, err := s.processor.PaymentResult(ctx, paymentReference)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownReference) {
			return nil, apperrors.Validation("Unknown payment reference", map[string]any{"payment_reference": paymentReference})
		}
		s.cfg.Log.Error("Failed to query payment result", "booking_id", id, "error", err)
		return nil, apperrors.Unavailable("Payment processor", err)
	}
	span.SetAttributes(attribute.String("payment.outcome", string(outcome)))

	return s.applyOutcome(ctx, booking, outcome)
}

func (s *bookingService) applyOutcome(ctx context.Context, booking *model.Booking, outcome payment.Outcome) (*model.Booking, error) {
	switch outcome {
	case payment.OutcomeSuccess:
		confirmed, err := s.repo.Confirm(ctx, booking.ID, booking.PaymentReference)
		if err != nil {
			return nil, s.ledgerError(err, booking.ID, model.StatusConfirmed)
		}
		s.publish(ctx, events.TypeConfirmed, confirmed)
		s.cfg.Log.Info("Booking confirmed", "booking_id", confirmed.ID, "trainer_id", confirmed.TrainerID)
		return confirmed, nil

	case payment.OutcomeFailure:
		cancelled, err := s.repo.Cancel(ctx, booking.ID, model.ActorSystem, model.CancelReasonPaymentFailed)
		if err != nil {
			return nil, s.ledgerError(err, booking.ID, model.StatusCancelled)
		}
		s.publish(ctx, events.TypeCancelled, cancelled)
		s.cfg.Log.Info("Payment failed, slot released", "booking_id", cancelled.ID)
		return nil, apperrors.PaymentFailed(payment.ErrDeclined)

	default:
		appErr := apperrors.InvalidState(booking.Status, model.StatusConfirmed)
		appErr.Details["payment_outcome"] = string(payment.OutcomePending)
		return nil, appErr
	}
}

// HandlePaymentResult applies an asynchronously delivered payment outcome.
// Redelivery of an outcome that was already applied is a no-op.
func (s *bookingService) HandlePaymentResult(ctx context.Context, reference string, outcome payment.Outcome) error {
	ctx, span := tracer.Start(ctx, "bookings.HandlePaymentResult",
		trace.WithAttributes(attribute.String("payment.outcome", string(outcome))))
	defer span.End()

	if outcome == payment.OutcomePending {
		return nil
	}

	booking, err := s.repo.FindByPaymentReference(ctx, reference)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", reference)
		}
		return apperrors.Internal("Failed to load booking", err)
	}
	span.SetAttributes(attribute.String("booking_id", booking.ID))

	switch {
	case booking.Status == model.StatusPendingPayment:
		_, err = s.applyOutcome(ctx, booking, outcome)
		if apperrors.HasCode(err, apperrors.CodePaymentFailed) {
			return nil
		}
		return err
	case outcome == payment.OutcomeSuccess && (booking.Status == model.StatusConfirmed || booking.Status == model.StatusCompleted):
		return nil
	case outcome == payment.OutcomeFailure && booking.Status == model.StatusCancelled:
		return nil
	case outcome == payment.OutcomeSuccess:
		s.cfg.Log.Warn("Payment succeeded for a released booking", "booking_id", booking.ID, "status", booking.Status, "payment_reference", reference)
		return apperrors.InvalidState(booking.Status, model.StatusConfirmed)
	default:
		return apperrors.InvalidState(booking.Status, model.StatusCancelled)
	}
}

// Cancel releases a slot. A user may only cancel their own booking; other
// users get a not found response.
func (s *bookingService) Cancel(ctx context.Context, id, actor, reason string) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Cancel", trace.WithAttributes(
		attribute.String("booking_id", id),
		attribute.String("cancel_reason", reason),
	))
	defer span.End()

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason == model.CancelReasonUser && booking.UserID != actor {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}

	cancelled, err := s.repo.Cancel(ctx, id, actor, reason)
	if err != nil {
		return nil, s.ledgerError(err, id, model.StatusCancelled)
	}

	if booking.Status == model.StatusPendingPayment && booking.PaymentReference != "" {
		if err := s.processor.CancelPayment(ctx, booking.PaymentReference); err != nil {
			s.cfg.Log.Warn("Failed to cancel payment intent", "booking_id", id, "error", err)
		}
	}

	s.publish(ctx, events.TypeCancelled, cancelled)
	s.cfg.Log.Info("Booking cancelled", "booking_id", id, "actor", actor, "reason", reason)
	return cancelled, nil
}

func (s *bookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "bookings.Complete", trace.WithAttributes(attribute.String("booking_id", id)))
	defer span.End()

	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.StatusConfirmed {
		if err := s.ensureSessionOver(ctx, booking); err != nil {
			return nil, err
		}
	}

	completed, err := s.repo.Complete(ctx, id)
	if err != nil {
		return nil, s.ledgerError(err, id, model.StatusCompleted)
	}

	s.publish(ctx, events.TypeCompleted, completed)
	s.cfg.Log.Info("Booking completed", "booking_id", id)
	return completed, nil
}

// ensureSessionOver rejects completing a session before it ends in the
// trainer's zone. Completion releases the slot.
func (s *bookingService) ensureSessionOver(ctx context.Context, booking *model.Booking) error {
	date, err := civil.ParseDate(booking.Date)
	if err != nil {
		return apperrors.Internal("Stored booking has an invalid date", err)
	}
	end, err := civil.ParseTimeOfDay(booking.EndTime)
	if err != nil {
		return apperrors.Internal("Stored booking has an invalid end time", err)
	}
	trainer, err := s.availability.Trainer(ctx, booking.TrainerID)
	if err != nil {
		return err
	}

	endsAt := date.At(end, s.availability.Location(trainer))
	if s.now().Before(endsAt) {
		appErr := apperrors.InvalidState(booking.Status, model.StatusCompleted)
		appErr.Details["session_ends_at"] = endsAt.Format(time.RFC3339)
		return appErr
	}
	return nil
}

// ExpireStale cancels every pending booking older than the payment timeout
// and returns how many were released.
func (s *bookingService) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "bookings.ExpireStale")
	defer span.End()

	cutoff := s.now().Add(-s.cfg.PaymentTimeout)
	expired, err := s.repo.ExpirePendingOlderThan(ctx, cutoff)
	for _, b := range expired {
		if b.PaymentReference != "" {
			if cancelErr := s.processor.CancelPayment(ctx, b.PaymentReference); cancelErr != nil {
				s.cfg.Log.Warn("Failed to cancel payment intent", "booking_id", b.ID, "error", cancelErr)
			}
		}
		s.publish(ctx, events.TypeExpired, b)
	}
	span.SetAttributes(attribute.Int("bookings.expired", len(expired)))

	if err != nil {
		return len(expired), s.fail(span, "Failed to expire pending bookings", err)
	}
	if len(expired) > 0 {
		s.cfg.Log.Info("Expired pending bookings", "count", len(expired), "cutoff", cutoff)
	}
	return len(expired), nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

// GetForUser returns a booking only to the user who made it. Other users get
// a not found response, as with Cancel.
func (s *bookingService) GetForUser(ctx context.Context, id, userID string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.ListByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return bookings, count, nil
}

func (s *bookingService) sanitize(req *model.ReserveRequest) {
	req.TrainerID = sanitizer.SanitizeIdentifier(req.TrainerID)
	req.UserID = sanitizer.SanitizeIdentifier(req.UserID)
	req.Date = sanitizer.TrimAndNormalize(req.Date)
	req.StartTime = sanitizer.TrimAndNormalize(req.StartTime)
	req.EndTime = sanitizer.TrimAndNormalize(req.EndTime)
	req.Notes = sanitizer.SanitizeNotes(req.Notes)
}

func (s *bookingService) currency(trainer *model.Trainer) string {
	if trainer.Currency != "" {
		return trainer.Currency
	}
	return s.cfg.DefaultCurrency
}

func (s *bookingService) publish(ctx context.Context, eventType string, b *model.Booking) {
	if err := s.publisher.Publish(ctx, events.FromBooking(eventType, b)); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "event_type", eventType, "booking_id", b.ID, "error", err)
	}
}

func (s *bookingService) ledgerError(err error, id, target string) error {
	var stateErr *bookingserrors.StateError
	switch {
	case errors.As(err, &stateErr):
		return apperrors.InvalidState(stateErr.Status, target)
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Booking ledger did not respond in time")
	default:
		s.cfg.Log.Error("Booking ledger failure", "booking_id", id, "target_status", target, "error", err)
		return apperrors.Internal("Failed to update booking", err)
	}
}

func (s *bookingService) fail(span trace.Span, message string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	s.cfg.Log.Error(message, "error", err)
	return apperrors.Internal(message, err)
}

func validationError(message string, err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
