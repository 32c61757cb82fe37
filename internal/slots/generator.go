package slots

import (
	"errors"
	"fmt"

	"trainerbook/pkg/civil"
)

// ErrInvalidGranularity rejects a zero or negative slot length.
var ErrInvalidGranularity = errors.New("granularity must be a positive number of minutes")

// Slot is one bookable interval inside a window.
type Slot struct {
	Start civil.TimeOfDay
	End   civil.TimeOfDay
}

// Generate returns slot start times [start, start+g, ...) for every slot that
// fits entirely inside [start, end). A window shorter than one slot yields an
// empty result.
func Generate(start, end civil.TimeOfDay, granularityMinutes int) ([]civil.TimeOfDay, error) {
	if granularityMinutes <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidGranularity, granularityMinutes)
	}

	starts := []civil.TimeOfDay{}
	for s := start; s.Add(granularityMinutes) <= end; s = s.Add(granularityMinutes) {
		starts = append(starts, s)
	}
	return starts, nil
}

// Grid is Generate with each start paired with its end.
func Grid(start, end civil.TimeOfDay, granularityMinutes int) ([]Slot, error) {
	starts, err := Generate(start, end, granularityMinutes)
	if err != nil {
		return nil, err
	}

	grid := make([]Slot, 0, len(starts))
	for _, s := range starts {
		grid = append(grid, Slot{Start: s, End: s.Add(granularityMinutes)})
	}
	return grid, nil
}
