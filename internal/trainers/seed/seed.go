package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
	"trainerbook/pkg/sanitizer"
)

// File is the on-disk seed layout:
//
//	trainers:
//	  - id: dana
//	    name: Dana Levi
//	    availability_mode: weekly
//	    price_per_session: 5000
//	    windows:
//	      - {weekday: Monday, start_time: "09:00", end_time: "12:00"}
type File struct {
	Trainers []*model.Trainer `yaml:"trainers"`
}

type Validator interface {
	Validate(trainer *model.Trainer) error
}

type Upserter interface {
	Upsert(ctx context.Context, trainer *model.Trainer) error
}

func Parse(r io.Reader) ([]*model.Trainer, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return f.Trainers, nil
}

// Apply normalizes and validates every trainer before writing any of them, so
// a file with one bad entry changes nothing.
func Apply(ctx context.Context, trainers []*model.Trainer, v Validator, repo Upserter, log *logger.Logger) (int, error) {
	seen := map[string]bool{}
	var problems []string

	for i, t := range trainers {
		normalize(t)
		if seen[t.ID] {
			problems = append(problems, fmt.Sprintf("trainers[%d]: duplicate id %q", i, t.ID))
			continue
		}
		seen[t.ID] = true

		if err := v.Validate(t); err != nil {
			problems = append(problems, fmt.Sprintf("trainers[%d] (%s): %v", i, t.ID, err))
		}
	}
	if len(problems) > 0 {
		return 0, fmt.Errorf("seed rejected:\n  %s", strings.Join(problems, "\n  "))
	}

	for _, t := range trainers {
		if err := repo.Upsert(ctx, t); err != nil {
			return 0, err
		}
		log.Info("Trainer seeded", "trainer_id", t.ID, "mode", t.AvailabilityMode, "windows", len(t.Windows))
	}
	return len(trainers), nil
}

func normalize(t *model.Trainer) {
	t.ID = sanitizer.SanitizeIdentifier(t.ID)
	t.Name = sanitizer.SanitizeName(t.Name)
	t.AvailabilityMode = strings.ToLower(strings.TrimSpace(t.AvailabilityMode))
	t.Currency = strings.ToLower(strings.TrimSpace(t.Currency))
	for i := range t.Windows {
		w := &t.Windows[i]
		w.Date = strings.TrimSpace(w.Date)
		w.StartTime = strings.TrimSpace(w.StartTime)
		w.EndTime = strings.TrimSpace(w.EndTime)
		if wd := strings.ToLower(strings.TrimSpace(w.Weekday)); wd != "" {
			w.Weekday = strings.ToUpper(wd[:1]) + wd[1:]
		}
	}
}
