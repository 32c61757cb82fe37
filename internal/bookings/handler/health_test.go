package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	"trainerbook/pkg/contracts"
	"trainerbook/pkg/logger"
)

func TestReady(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("no route") })

	tests := []struct {
		name     string
		checks   map[string]contracts.Pinger
		wantCode int
		contains string
	}{
		{"all healthy", map[string]contracts.Pinger{"mongo": ok, "redis": ok}, http.StatusOK, `"redis":"ok"`},
		{"one down", map[string]contracts.Pinger{"mongo": ok, "postgres": down}, http.StatusServiceUnavailable, `"postgres":"error"`},
		{"no dependencies", nil, http.StatusOK, `"status":"ready"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(tt.checks, logger.Nop()).RegisterRoutes(router)

			w := do(router, http.MethodGet, "/ready", "", nil)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %s missing %s", w.Body.String(), tt.contains)
			}
		})
	}
}
