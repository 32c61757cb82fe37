package index

import (
	"sort"
	"time"

	"trainerbook/pkg/civil"
	"trainerbook/pkg/model"
)

// Window is an availability window resolved to a concrete date.
type Window struct {
	Date  civil.Date
	Start civil.TimeOfDay
	End   civil.TimeOfDay
}

type Policy struct {
	// HorizonDays limits how far ahead weekly availability is offered. Zero means unlimited.
	HorizonDays int
	// DefaultLocation applies to trainers without a time zone.
	DefaultLocation *time.Location
}

type Index struct {
	policy Policy
}

func New(policy Policy) *Index {
	if policy.DefaultLocation == nil {
		policy.DefaultLocation = time.UTC
	}
	return &Index{policy: policy}
}

// Location returns the zone in which the trainer's wall-clock windows are expressed.
func (ix *Index) Location(trainer *model.Trainer) *time.Location {
	if trainer.TimeZone != "" {
		if loc, err := time.LoadLocation(trainer.TimeZone); err == nil {
			return loc
		}
	}
	return ix.policy.DefaultLocation
}

// Today is the current calendar date in the trainer's zone.
func (ix *Index) Today(trainer *model.Trainer, now time.Time) civil.Date {
	return civil.DateOf(now.In(ix.Location(trainer)))
}

// WindowsForDate returns the trainer's windows that apply on date, ordered by
// start time. Past dates, dates beyond the weekly horizon, malformed windows,
// windows of the other availability mode and windows overlapping an earlier
// one are left out. An empty result means no availability.
func (ix *Index) WindowsForDate(trainer *model.Trainer, date civil.Date, now time.Time) []Window {
	out := []Window{}
	if trainer == nil {
		return out
	}

	today := ix.Today(trainer, now)
	if date.Before(today) {
		return out
	}

	var match func(w model.AvailabilityWindow) bool
	switch trainer.AvailabilityMode {
	case model.AvailabilityModeDate:
		match = func(w model.AvailabilityWindow) bool {
			if w.Weekday != "" || w.Date == "" {
				return false
			}
			d, err := civil.ParseDate(w.Date)
			return err == nil && d == date
		}
	case model.AvailabilityModeWeekly:
		if ix.policy.HorizonDays > 0 && date.After(today.AddDays(ix.policy.HorizonDays)) {
			return out
		}
		weekday := date.Weekday().String()
		match = func(w model.AvailabilityWindow) bool {
			return w.Date == "" && w.Weekday == weekday
		}
	default:
		return out
	}

	for _, w := range trainer.Windows {
		if !match(w) {
			continue
		}
		start, errS := civil.ParseTimeOfDay(w.StartTime)
		end, errE := civil.ParseTimeOfDay(w.EndTime)
		if errS != nil || errE != nil || start >= end {
			continue
		}
		out = append(out, Window{Date: date, Start: start, End: end})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	kept := out[:0]
	for _, w := range out {
		if len(kept) > 0 && w.Start < kept[len(kept)-1].End {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}
