package model

const (
	AvailabilityModeDate   = "date"
	AvailabilityModeWeekly = "weekly"
)

// AvailabilityWindow is one block of time a trainer offers. Exactly one of
// Date or Weekday is set, matching the trainer's availability mode.
type AvailabilityWindow struct {
	Date      string `json:"date,omitempty" bson:"date,omitempty" yaml:"date,omitempty" validate:"omitempty,civil_date"`
	Weekday   string `json:"weekday,omitempty" bson:"weekday,omitempty" yaml:"weekday,omitempty" validate:"omitempty,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	StartTime string `json:"start_time" bson:"start_time" yaml:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" bson:"end_time" yaml:"end_time" validate:"required,hhmm"`
}

type Trainer struct {
	ID               string               `json:"id" bson:"_id" yaml:"id" validate:"required,max=64"`
	Name             string               `json:"name" bson:"name" yaml:"name" validate:"required,min=2,max=100"`
	AvailabilityMode string               `json:"availability_mode" bson:"availability_mode" yaml:"availability_mode" validate:"required,oneof=date weekly"`
	Windows          []AvailabilityWindow `json:"windows" bson:"windows" yaml:"windows" validate:"dive"`
	PricePerSession  int64                `json:"price_per_session" bson:"price_per_session" yaml:"price_per_session" validate:"required,gt=0"`
	Currency         string               `json:"currency,omitempty" bson:"currency,omitempty" yaml:"currency,omitempty" validate:"omitempty,len=3"`
	TimeZone         string               `json:"time_zone,omitempty" bson:"time_zone,omitempty" yaml:"time_zone,omitempty" validate:"omitempty,timezone"`
}

// Slot is a bookable opportunity derived from a window; it is never stored.
type Slot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
