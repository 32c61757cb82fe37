package validator

import (
	"github.com/go-playground/validator/v10"

	"trainerbook/pkg/civil"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
	"trainerbook/pkg/validation"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to build booking validator", "error", err)
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func (v *BookingValidator) ValidateReserve(req *model.ReserveRequest) error {
	if err := validation.Check(v.validate, req); err != nil {
		return err
	}

	start := civil.MustParseTimeOfDay(req.StartTime)
	end := civil.MustParseTimeOfDay(req.EndTime)
	if end <= start {
		return validation.ValidationErrors{{Field: "end_time", Message: "end_time must be after start_time"}}
	}
	return nil
}

func (v *BookingValidator) ValidateConfirm(req *model.ConfirmRequest) error {
	return validation.Check(v.validate, req)
}
