package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trainerbook/internal/availability/index"
	"trainerbook/internal/slots"
	trainerserrors "trainerbook/internal/trainers/errors"
	"trainerbook/internal/trainers/repository"
	"trainerbook/pkg/civil"
	apperrors "trainerbook/pkg/errors"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
)

var tracer = otel.Tracer("trainerbook/availability")

// SlotLedger is the read side of the booking ledger the resolver depends on.
type SlotLedger interface {
	TakenStartTimes(ctx context.Context, trainerID, date string) (map[string]struct{}, error)
}

type AvailabilityService interface {
	AvailableSlots(ctx context.Context, trainerID, date string) ([]model.Slot, error)
	Trainer(ctx context.Context, trainerID string) (*model.Trainer, error)
	CandidateSlots(ctx context.Context, trainer *model.Trainer, date civil.Date) ([]model.Slot, error)
	Location(trainer *model.Trainer) *time.Location
}

type availabilityService struct {
	directory   repository.TrainerDirectory
	ledger      SlotLedger
	index       *index.Index
	granularity int
	now         func() time.Time
	log         *logger.Logger
}

func NewAvailabilityService(
	directory repository.TrainerDirectory,
	ledger SlotLedger,
	ix *index.Index,
	granularityMinutes int,
	now func() time.Time,
	log *logger.Logger,
) AvailabilityService {
	if now == nil {
		now = time.Now
	}
	return &availabilityService{
		directory:   directory,
		ledger:      ledger,
		index:       ix,
		granularity: granularityMinutes,
		now:         now,
		log:         log,
	}
}

// AvailableSlots returns the slots that can be reserved right now, ascending.
// It reads the ledger on every call and keeps no state between calls.
func (s *availabilityService) AvailableSlots(ctx context.Context, trainerID, date string) ([]model.Slot, error) {
	ctx, span := tracer.Start(ctx, "availability.AvailableSlots")
	defer span.End()
	span.SetAttributes(attribute.String("trainer_id", trainerID), attribute.String("date", date))

	if trainerID == "" {
		return nil, apperrors.InvalidInput("Trainer ID cannot be empty")
	}
	d, err := civil.ParseDate(date)
	if err != nil {
		return nil, apperrors.Validation("Invalid date", map[string]any{"date": "date must be in YYYY-MM-DD format"})
	}

	trainer, err := s.Trainer(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.CandidateSlots(ctx, trainer, d)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	taken, err := s.ledger.TakenStartTimes(ctx, trainerID, d.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger read failed")
		s.log.Error("Failed to read taken slots", "trainer_id", trainerID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to resolve availability", err)
	}

	available := make([]model.Slot, 0, len(candidates))
	for _, slot := range candidates {
		if _, ok := taken[slot.StartTime]; ok {
			continue
		}
		available = append(available, slot)
	}

	span.SetAttributes(attribute.Int("slots.candidate", len(candidates)), attribute.Int("slots.available", len(available)))
	return available, nil
}

func (s *availabilityService) Trainer(ctx context.Context, trainerID string) (*model.Trainer, error) {
	trainer, err := s.directory.GetTrainer(ctx, trainerID)
	if err != nil {
		switch {
		case errors.Is(err, trainerserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Trainer", trainerID)
		case errors.Is(err, trainerserrors.ErrDirectoryUnavailable):
			s.log.Warn("Trainer directory unavailable", "trainer_id", trainerID, "error", err)
			return nil, apperrors.Unavailable("Trainer directory", err)
		default:
			s.log.Error("Failed to load trainer", "trainer_id", trainerID, "error", err)
			return nil, apperrors.Internal("Failed to load trainer", err)
		}
	}
	return trainer, nil
}

// CandidateSlots is the trainer's grid for date without consulting the ledger.
// Slots that already started are dropped when date is today.
func (s *availabilityService) CandidateSlots(_ context.Context, trainer *model.Trainer, date civil.Date) ([]model.Slot, error) {
	now := s.now()
	loc := s.index.Location(trainer)
	isToday := date == s.index.Today(trainer, now)

	out := []model.Slot{}
	for _, w := range s.index.WindowsForDate(trainer, date, now) {
		grid, err := slots.Grid(w.Start, w.End, s.granularity)
		if err != nil {
			return nil, apperrors.Internal("Invalid slot granularity", err)
		}
		for _, slot := range grid {
			if isToday && date.At(slot.Start, loc).Before(now) {
				continue
			}
			out = append(out, model.Slot{
				Date:      date.String(),
				StartTime: slot.Start.String(),
				EndTime:   slot.End.String(),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *availabilityService) Location(trainer *model.Trainer) *time.Location {
	return s.index.Location(trainer)
}
