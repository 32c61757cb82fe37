package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	apperrors "trainerbook/pkg/errors"
	httputil "trainerbook/pkg/http"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
	"trainerbook/pkg/payment"
)

type mockBookingService struct {
	reserveFunc  func(ctx context.Context, req *model.ReserveRequest) (*model.ReserveResult, error)
	confirmFunc  func(ctx context.Context, id, ref string) (*model.Booking, error)
	cancelFunc   func(ctx context.Context, id, actor, reason string) (*model.Booking, error)
	completeFunc func(ctx context.Context, id string) (*model.Booking, error)
	listFunc     func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	expireFunc   func(ctx context.Context) (int, error)
}

func (m *mockBookingService) Reserve(ctx context.Context, req *model.ReserveRequest) (*model.ReserveResult, error) {
	return m.reserveFunc(ctx, req)
}

func (m *mockBookingService) Confirm(ctx context.Context, id, ref string) (*model.Booking, error) {
	return m.confirmFunc(ctx, id, ref)
}

func (m *mockBookingService) Cancel(ctx context.Context, id, actor, reason string) (*model.Booking, error) {
	return m.cancelFunc(ctx, id, actor, reason)
}

func (m *mockBookingService) Complete(ctx context.Context, id string) (*model.Booking, error) {
	return m.completeFunc(ctx, id)
}

func (m *mockBookingService) ExpireStale(ctx context.Context) (int, error) {
	return m.expireFunc(ctx)
}

func (m *mockBookingService) HandlePaymentResult(context.Context, string, payment.Outcome) error {
	return nil
}

func (m *mockBookingService) GetByID(_ context.Context, id string) (*model.Booking, error) {
	if id == "missing" {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return &model.Booking{ID: id, Status: model.StatusConfirmed}, nil
}

func (m *mockBookingService) GetForUser(ctx context.Context, id, userID string) (*model.Booking, error) {
	booking, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.UserID = userID
	return booking, nil
}

func (m *mockBookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, userID, limit, offset)
}

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Nop()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	return body.Code
}

func TestReserve_StatusMapping(t *testing.T) {
	user := map[string]string{httputil.HeaderUserID: "u1"}
	validBody := `{"trainer_id":"t1","date":"2026-06-10","start_time":"09:00","end_time":"10:00"}`

	tests := []struct {
		name     string
		body     string
		headers  map[string]string
		err      error
		wantCode int
		wantErr  string
	}{
		{"created", validBody, user, nil, http.StatusCreated, ""},
		{"slot taken", validBody, user, apperrors.SlotConflict("2026-06-10", "09:00"), http.StatusConflict, apperrors.CodeSlotConflict},
		{"payment failed", validBody, user, apperrors.PaymentFailed(errors.New("declined")), http.StatusPaymentRequired, apperrors.CodePaymentFailed},
		{"unknown trainer", validBody, user, apperrors.NotFoundWithID("Trainer", "t1"), http.StatusNotFound, apperrors.CodeNotFound},
		{"missing identity", validBody, nil, nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"malformed body", `{"trainer_id":`, user, nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"unknown field", `{"trainer_id":"t1","user_id":"spoofed"}`, user, nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"unexpected failure", validBody, user, errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.ReserveRequest
			svc := &mockBookingService{reserveFunc: func(_ context.Context, req *model.ReserveRequest) (*model.ReserveResult, error) {
				got = req
				if tt.err != nil {
					return nil, tt.err
				}
				return &model.ReserveResult{BookingID: "b1", PaymentClientToken: "tok", Booking: &model.Booking{ID: "b1"}}, nil
			}}

			w := do(newRouter(svc), http.MethodPost, "/api/v1/bookings", tt.body, tt.headers)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr != "" {
				if code := errorCode(t, w); code != tt.wantErr {
					t.Errorf("code = %s, want %s", code, tt.wantErr)
				}
				if strings.Contains(w.Body.String(), "boom") {
					t.Error("internal cause leaked to the client")
				}
				return
			}
			if got.UserID != "u1" {
				t.Errorf("user id = %q, want header value", got.UserID)
			}
			if !strings.Contains(w.Body.String(), `"payment_client_token":"tok"`) {
				t.Errorf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestTransitions_StatusMapping(t *testing.T) {
	svc := &mockBookingService{
		confirmFunc: func(_ context.Context, id, ref string) (*model.Booking, error) {
			switch id {
			case "missing":
				return nil, apperrors.NotFoundWithID("Booking", id)
			case "done":
				return nil, apperrors.InvalidState(model.StatusConfirmed, model.StatusConfirmed)
			}
			return &model.Booking{ID: id, Status: model.StatusConfirmed, PaymentReference: ref}, nil
		},
		cancelFunc: func(_ context.Context, id, actor, reason string) (*model.Booking, error) {
			if id == "gone" {
				return nil, apperrors.InvalidState(model.StatusCancelled, model.StatusCancelled)
			}
			return &model.Booking{ID: id, Status: model.StatusCancelled, CancelledBy: actor, CancelReason: reason}, nil
		},
		completeFunc: func(_ context.Context, id string) (*model.Booking, error) {
			return nil, apperrors.InvalidState(model.StatusPendingPayment, model.StatusCompleted)
		},
	}
	router := newRouter(svc)
	user := map[string]string{httputil.HeaderUserID: "u1"}

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		headers  map[string]string
		wantCode int
		contains string
	}{
		{"confirm ok", http.MethodPost, "/api/v1/bookings/b1/confirm", `{"payment_reference":"pi_1"}`, nil, http.StatusOK, `"status":"confirmed"`},
		{"confirm missing", http.MethodPost, "/api/v1/bookings/missing/confirm", `{"payment_reference":"pi_1"}`, nil, http.StatusNotFound, apperrors.CodeNotFound},
		{"confirm twice", http.MethodPost, "/api/v1/bookings/done/confirm", `{"payment_reference":"pi_1"}`, nil, http.StatusConflict, apperrors.CodeInvalidState},
		{"cancel ok", http.MethodPost, "/api/v1/bookings/b1/cancel", "", user, http.StatusOK, `"cancel_reason":"user"`},
		{"cancel without identity", http.MethodPost, "/api/v1/bookings/b1/cancel", "", nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"cancel twice", http.MethodPost, "/api/v1/bookings/gone/cancel", "", user, http.StatusConflict, apperrors.CodeInvalidState},
		{"admin cancel", http.MethodPost, "/api/v1/admin/bookings/b1/cancel", "", nil, http.StatusOK, `"cancel_reason":"admin"`},
		{"complete pending", http.MethodPost, "/api/v1/bookings/b1/complete", "", nil, http.StatusConflict, apperrors.CodeInvalidState},
		{"get ok", http.MethodGet, "/api/v1/bookings/b1", "", user, http.StatusOK, `"user_id":"u1"`},
		{"get without identity", http.MethodGet, "/api/v1/bookings/b1", "", nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"get missing", http.MethodGet, "/api/v1/bookings/missing", "", user, http.StatusNotFound, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, tt.method, tt.path, tt.body, tt.headers)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.contains)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	svc := &mockBookingService{listFunc: func(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
		gotLimit, gotOffset = limit, offset
		return []*model.Booking{{ID: "b1", UserID: userID}}, 7, nil
	}}
	router := newRouter(svc)
	user := map[string]string{httputil.HeaderUserID: "u1"}

	w := do(router, http.MethodGet, "/api/v1/bookings?limit=500&offset=-3", "", user)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotLimit != 100 || gotOffset != 0 {
		t.Errorf("limit/offset = %d/%d, want normalized 100/0", gotLimit, gotOffset)
	}
	var body httputil.PaginatedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.TotalCount != 7 {
		t.Errorf("total = %d", body.TotalCount)
	}

	if w := do(router, http.MethodGet, "/api/v1/bookings?limit=abc", "", user); w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d", w.Code)
	}
}

func TestExpire(t *testing.T) {
	svc := &mockBookingService{expireFunc: func(context.Context) (int, error) { return 3, nil }}

	w := do(newRouter(svc), http.MethodPost, "/api/v1/admin/expire", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"expired":3`) {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
}
