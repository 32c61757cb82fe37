package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"trainerbook/pkg/civil"
)

const (
	TagTimeOfDay = "hhmm"
	TagDate      = "civil_date"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors as a field → message map for API responses.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

// New returns a validator with the calendar tags registered. JSON names are
// reported as field names so messages match the request payload.
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation(TagTimeOfDay, validateTimeOfDay); err != nil {
		return nil, fmt.Errorf("register %q: %w", TagTimeOfDay, err)
	}
	if err := v.RegisterValidation(TagDate, validateDate); err != nil {
		return nil, fmt.Errorf("register %q: %w", TagDate, err)
	}
	return v, nil
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := civil.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := civil.ParseDate(fl.Field().String())
	return err == nil
}

// Check runs struct validation and translates failures into ValidationErrors.
func Check(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return Translate(validationErrs)
	}
	return err
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "timezone":
			message = fmt.Sprintf("%s must be an IANA time zone", err.Field())
		case TagTimeOfDay:
			message = fmt.Sprintf("%s must be a time in HH:MM format", err.Field())
		case TagDate:
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		}

		out = append(out, ValidationError{
			Field:   fieldPath(err),
			Message: message,
		})
	}

	return out
}

// fieldPath drops the root struct name from the namespace, keeping nested
// paths such as windows[0].start_time.
func fieldPath(err validator.FieldError) string {
	ns := err.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return err.Field()
}
