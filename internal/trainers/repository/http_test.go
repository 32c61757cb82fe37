package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	trainerserrors "trainerbook/internal/trainers/errors"
)

func TestHTTPTrainerDirectory_GetTrainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/trainers/t1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"id":"t1","name":"Dana","availability_mode":"weekly","price_per_session":5000,
				"windows":[{"weekday":"Monday","start_time":"09:00","end_time":"12:00"}]}}`))
		case "/api/v1/trainers/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"Trainer not found"}`))
		}
	}))
	defer srv.Close()

	dir := NewHTTPTrainerDirectory(srv.URL, time.Second)

	trainer, err := dir.GetTrainer(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trainer.Name != "Dana" || len(trainer.Windows) != 1 || trainer.Windows[0].Weekday != "Monday" {
		t.Errorf("unexpected trainer %+v", trainer)
	}

	if _, err := dir.GetTrainer(context.Background(), "missing"); !errors.Is(err, trainerserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := dir.GetTrainer(context.Background(), "broken"); !errors.Is(err, trainerserrors.ErrDirectoryUnavailable) {
		t.Errorf("expected ErrDirectoryUnavailable, got %v", err)
	}
}
