package validator

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"trainerbook/pkg/civil"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
	"trainerbook/pkg/validation"
)

type TrainerValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewTrainerValidator(log *logger.Logger) *TrainerValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to build trainer validator", "error", err)
	}

	return &TrainerValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks field formats, then the window invariants: each window is
// keyed by the trainer's mode, starts before it ends, and does not overlap
// another window on the same date or weekday.
func (v *TrainerValidator) Validate(trainer *model.Trainer) error {
	if err := validation.Check(v.validate, trainer); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	type span struct {
		index      int
		start, end civil.TimeOfDay
	}
	byKey := map[string][]span{}

	for i, w := range trainer.Windows {
		field := fmt.Sprintf("windows[%d]", i)

		key, keyErr := windowKey(trainer.AvailabilityMode, w)
		if keyErr != "" {
			errs = append(errs, validation.ValidationError{Field: field, Message: keyErr})
			continue
		}

		start, _ := civil.ParseTimeOfDay(w.StartTime)
		end, _ := civil.ParseTimeOfDay(w.EndTime)
		if start >= end {
			errs = append(errs, validation.ValidationError{
				Field:   field + ".end_time",
				Message: "end_time must be after start_time",
			})
			continue
		}
		byKey[key] = append(byKey[key], span{index: i, start: start, end: end})
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		spans := byKey[key]
		sort.Slice(spans, func(a, b int) bool { return spans[a].start < spans[b].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				errs = append(errs, validation.ValidationError{
					Field:   fmt.Sprintf("windows[%d]", spans[i].index),
					Message: fmt.Sprintf("overlaps windows[%d] on %s", spans[i-1].index, key),
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func windowKey(mode string, w model.AvailabilityWindow) (string, string) {
	switch mode {
	case model.AvailabilityModeDate:
		if w.Date == "" || w.Weekday != "" {
			return "", "date-mode windows must set date and not weekday"
		}
		return w.Date, ""
	case model.AvailabilityModeWeekly:
		if w.Weekday == "" || w.Date != "" {
			return "", "weekly-mode windows must set weekday and not date"
		}
		return w.Weekday, ""
	default:
		return "", "unknown availability mode " + mode
	}
}
