package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	availabilityindex "trainerbook/internal/availability/index"
	availability "trainerbook/internal/availability/service"
	"trainerbook/internal/bookings/events"
	"trainerbook/internal/bookings/repository"
	"trainerbook/internal/bookings/validator"
	trainerserrors "trainerbook/internal/trainers/errors"
	"trainerbook/pkg/config"
	apperrors "trainerbook/pkg/errors"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
	"trainerbook/pkg/payment"
)

type mockDirectory struct {
	trainer *model.Trainer
}

func (m *mockDirectory) GetTrainer(_ context.Context, id string) (*model.Trainer, error) {
	if id != m.trainer.ID {
		return nil, trainerserrors.ErrNotFound
	}
	return m.trainer, nil
}

type mockProcessor struct {
	CreatePaymentIntentFunc func(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error)
	PaymentResultFunc       func(ctx context.Context, reference string) (payment.Outcome, error)
	CancelPaymentFunc       func(ctx context.Context, reference string) error
	cancelled               []string
	mu                      sync.Mutex
}

func (m *mockProcessor) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	return m.CreatePaymentIntentFunc(ctx, amount, currency, metadata)
}

func (m *mockProcessor) PaymentResult(ctx context.Context, reference string) (payment.Outcome, error) {
	return m.PaymentResultFunc(ctx, reference)
}

func (m *mockProcessor) CancelPayment(ctx context.Context, reference string) error {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, reference)
	m.mu.Unlock()
	if m.CancelPaymentFunc == nil {
		return nil
	}
	return m.CancelPaymentFunc(ctx, reference)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var trainer = &model.Trainer{
	ID:               "t1",
	Name:             "Dana",
	AvailabilityMode: model.AvailabilityModeDate,
	PricePerSession:  5000,
	Windows: []model.AvailabilityWindow{
		{Date: "2026-06-10", StartTime: "09:00", EndTime: "11:00"},
		{Date: "2026-06-11", StartTime: "14:00", EndTime: "14:30"},
	},
}

type fixture struct {
	svc       BookingService
	slots     availability.AvailabilityService
	ledger    repository.BookingRepository
	processor *mockProcessor
	sandbox   *payment.Sandbox
	publisher *recordingPublisher
	clock     *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := &clock{t: time.Date(2026, 6, 9, 12, 0, 0, 0, time.UTC)}
	ledger := repository.NewMemoryBookingRepository(clk.Now)
	log := logger.Nop()
	slots := availability.NewAvailabilityService(
		&mockDirectory{trainer: trainer},
		ledger,
		availabilityindex.New(availabilityindex.Policy{HorizonDays: 30}),
		60,
		clk.Now,
		log,
	)

	sandbox := payment.NewSandbox(payment.OutcomeSuccess)
	processor := &mockProcessor{
		CreatePaymentIntentFunc: sandbox.CreatePaymentIntent,
		PaymentResultFunc:       sandbox.PaymentResult,
	}
	publisher := &recordingPublisher{}
	cfg := &config.Config{
		Log:             log,
		PaymentTimeout:  15 * time.Minute,
		DefaultCurrency: "usd",
	}

	svc := NewBookingService(ledger, slots, processor, publisher, validator.NewBookingValidator(log), cfg)
	svc.(*bookingService).now = clk.Now

	return &fixture{
		svc:       svc,
		slots:     slots,
		ledger:    ledger,
		processor: processor,
		sandbox:   sandbox,
		publisher: publisher,
		clock:     clk,
	}
}

func reserveReq(user, start, end string) *model.ReserveRequest {
	return &model.ReserveRequest{TrainerID: "t1", UserID: user, Date: "2026-06-10", StartTime: start, EndTime: end}
}

func available(t *testing.T, f *fixture) []string {
	t.Helper()
	got, err := f.slots.AvailableSlots(context.Background(), "t1", "2026-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	out := []string{}
	for _, s := range got {
		out = append(out, s.StartTime)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Two-hour window, hourly slots: reserve, conflict, expire, re-reserve, confirm.
func TestWorkflow_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if got := available(t, f); !equal(got, []string{"09:00", "10:00"}) {
		t.Fatalf("initial availability = %v", got)
	}

	first, err := f.svc.Reserve(ctx, reserveReq("userA", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if first.PaymentClientToken == "" || first.Booking.Status != model.StatusPendingPayment || first.Booking.PaymentReference == "" {
		t.Fatalf("unexpected reservation %+v", first.Booking)
	}
	if got := available(t, f); !equal(got, []string{"10:00"}) {
		t.Errorf("availability after reserve = %v", got)
	}

	_, err = f.svc.Reserve(ctx, reserveReq("userB", "09:00", "10:00"))
	if !apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		t.Fatalf("second reserve should conflict, got %v", err)
	}

	f.clock.Advance(16 * time.Minute)
	n, err := f.svc.ExpireStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireStale = %d, %v", n, err)
	}
	if len(f.processor.cancelled) != 1 || f.processor.cancelled[0] != first.Booking.PaymentReference {
		t.Errorf("expired intent should be cancelled at the processor, got %v", f.processor.cancelled)
	}
	if got := available(t, f); !equal(got, []string{"09:00", "10:00"}) {
		t.Errorf("availability after expiry = %v", got)
	}

	second, err := f.svc.Reserve(ctx, reserveReq("userB", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("re-reserve after expiry: %v", err)
	}
	confirmed, err := f.svc.Confirm(ctx, second.BookingID, second.Booking.PaymentReference)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Errorf("status = %s", confirmed.Status)
	}

	stale, _ := f.svc.GetByID(ctx, first.BookingID)
	if stale.Status != model.StatusCancelled || stale.CancelReason != model.CancelReasonExpired {
		t.Errorf("first booking = %s/%s, want cancelled/expired", stale.Status, stale.CancelReason)
	}

	want := []string{events.TypeReserved, events.TypeExpired, events.TypeReserved, events.TypeConfirmed}
	if got := f.publisher.types(); !equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestWorkflow_ConcurrentReserve(t *testing.T) {
	f := newFixture(t)
	const n = 32

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Reserve(context.Background(), reserveReq("user", "10:00", "11:00"))
			switch {
			case err == nil:
				ok.Add(1)
			case apperrors.HasCode(err, apperrors.CodeSlotConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if ok.Load() != 1 || conflicts.Load() != n-1 {
		t.Errorf("got %d successes, %d conflicts", ok.Load(), conflicts.Load())
	}
}

func TestWorkflow_ReserveRejectsOffGridSlots(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  *model.ReserveRequest
		code string
	}{
		{"half-hour offset", reserveReq("u", "09:30", "10:30"), apperrors.CodeValidation},
		{"outside window", reserveReq("u", "11:00", "12:00"), apperrors.CodeValidation},
		{"window shorter than granularity", &model.ReserveRequest{TrainerID: "t1", UserID: "u", Date: "2026-06-11", StartTime: "14:00", EndTime: "14:30"}, apperrors.CodeValidation},
		{"end before start", reserveReq("u", "10:00", "09:00"), apperrors.CodeValidation},
		{"unknown trainer", &model.ReserveRequest{TrainerID: "nobody", UserID: "u", Date: "2026-06-10", StartTime: "09:00", EndTime: "10:00"}, apperrors.CodeNotFound},
		{"missing user", reserveReq("", "09:00", "10:00"), apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reserve(context.Background(), tt.req)
			if !apperrors.HasCode(err, tt.code) {
				t.Errorf("got %v, want code %s", err, tt.code)
			}
		})
	}
	if len(f.publisher.types()) != 0 {
		t.Errorf("rejected requests must not publish events, got %v", f.publisher.types())
	}
}

func TestWorkflow_PaymentIntentFailureReleasesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.processor.CreatePaymentIntentFunc = func(context.Context, int64, string, map[string]string) (*payment.Intent, error) {
		return nil, payment.ErrDeclined
	}

	_, err := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
	if !apperrors.HasCode(err, apperrors.CodePaymentFailed) {
		t.Fatalf("expected PAYMENT_FAILED, got %v", err)
	}
	if appErr := apperrors.AsAppError(err); appErr.StatusCode() != 402 {
		t.Errorf("status = %d, want 402", appErr.StatusCode())
	}
	if got := available(t, f); !equal(got, []string{"09:00", "10:00"}) {
		t.Errorf("slot should be free again, availability = %v", got)
	}
	if got := f.publisher.types(); !equal(got, []string{events.TypeCancelled}) {
		t.Errorf("events = %v", got)
	}
}

func TestWorkflow_ConfirmOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("failure cancels and frees the slot", func(t *testing.T) {
		f := newFixture(t)
		res, _ := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
		f.sandbox.SetOutcome(res.Booking.PaymentReference, payment.OutcomeFailure)

		_, err := f.svc.Confirm(ctx, res.BookingID, res.Booking.PaymentReference)
		if !apperrors.HasCode(err, apperrors.CodePaymentFailed) {
			t.Fatalf("expected PAYMENT_FAILED, got %v", err)
		}
		b, _ := f.svc.GetByID(ctx, res.BookingID)
		if b.Status != model.StatusCancelled || b.CancelReason != model.CancelReasonPaymentFailed {
			t.Errorf("booking = %s/%s", b.Status, b.CancelReason)
		}
		if got := available(t, f); !equal(got, []string{"09:00", "10:00"}) {
			t.Errorf("availability = %v", got)
		}
	})

	t.Run("pending keeps the hold", func(t *testing.T) {
		f := newFixture(t)
		res, _ := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
		f.sandbox.SetOutcome(res.Booking.PaymentReference, payment.OutcomePending)

		_, err := f.svc.Confirm(ctx, res.BookingID, res.Booking.PaymentReference)
		if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
			t.Fatalf("expected INVALID_STATE, got %v", err)
		}
		b, _ := f.svc.GetByID(ctx, res.BookingID)
		if b.Status != model.StatusPendingPayment {
			t.Errorf("status = %s", b.Status)
		}
	})

	t.Run("reference mismatch", func(t *testing.T) {
		f := newFixture(t)
		res, _ := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))

		_, err := f.svc.Confirm(ctx, res.BookingID, "sbx_other")
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Fatalf("expected VALIDATION_ERROR, got %v", err)
		}
	})

	t.Run("double confirm", func(t *testing.T) {
		f := newFixture(t)
		res, _ := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
		if _, err := f.svc.Confirm(ctx, res.BookingID, res.Booking.PaymentReference); err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		_, err := f.svc.Confirm(ctx, res.BookingID, res.Booking.PaymentReference)
		if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
			t.Errorf("expected INVALID_STATE, got %v", err)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Confirm(ctx, "missing", "sbx_1")
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			t.Errorf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("processor down", func(t *testing.T) {
		f := newFixture(t)
		res, _ := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
		f.processor.PaymentResultFunc = func(context.Context, string) (payment.Outcome, error) {
			return "", errors.New("connection reset")
		}
		_, err := f.svc.Confirm(ctx, res.BookingID, res.Booking.PaymentReference)
		if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
			t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
		}
	})
}

func TestWorkflow_CancelAndComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, _ := f.svc.Reserve(ctx, reserveReq("owner", "09:00", "10:00"))

	if _, err := f.svc.Cancel(ctx, res.BookingID, "intruder", model.CancelReasonUser); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("foreign cancel should look like not found, got %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, res.BookingID, "owner", model.CancelReasonUser)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled || cancelled.CancelledBy != "owner" {
		t.Errorf("unexpected booking %+v", cancelled)
	}
	if len(f.processor.cancelled) != 1 {
		t.Errorf("pending cancel should void the payment intent, got %v", f.processor.cancelled)
	}

	_, err = f.svc.Cancel(ctx, res.BookingID, "owner", model.CancelReasonUser)
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("re-cancel should be INVALID_STATE, got %v", err)
	}

	res2, _ := f.svc.Reserve(ctx, reserveReq("owner", "10:00", "11:00"))
	if _, err := f.svc.Complete(ctx, res2.BookingID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("completing a pending booking should fail, got %v", err)
	}
	_, _ = f.svc.Confirm(ctx, res2.BookingID, res2.Booking.PaymentReference)
	f.clock.Advance(24 * time.Hour) // 2026-06-10 12:00, after the 10:00-11:00 session
	completed, err := f.svc.Complete(ctx, res2.BookingID)
	if err != nil || completed.Status != model.StatusCompleted {
		t.Fatalf("Complete: %+v %v", completed, err)
	}
	if _, err := f.svc.Cancel(ctx, res2.BookingID, "admin", model.CancelReasonAdmin); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("completed booking cannot be cancelled, got %v", err)
	}
}

func TestWorkflow_CompleteBeforeSessionEnds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Reserve(ctx, reserveReq("alice", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, res.BookingID, res.Booking.PaymentReference); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if _, err := f.svc.Complete(ctx, res.BookingID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("completing a future session should be INVALID_STATE, got %v", err)
	}
	if got := available(t, f); !equal(got, []string{"10:00"}) {
		t.Errorf("slot should stay taken, available = %v", got)
	}
	if _, err := f.svc.Reserve(ctx, reserveReq("bob", "09:00", "10:00")); !apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		t.Errorf("second reservation should conflict, got %v", err)
	}

	// 2026-06-10 09:30: the session is running but has not ended.
	f.clock.Advance(21*time.Hour + 30*time.Minute)
	if _, err := f.svc.Complete(ctx, res.BookingID); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("completing a running session should be INVALID_STATE, got %v", err)
	}

	f.clock.Advance(30 * time.Minute)
	completed, err := f.svc.Complete(ctx, res.BookingID)
	if err != nil || completed.Status != model.StatusCompleted {
		t.Fatalf("Complete at session end: %+v %v", completed, err)
	}
}

func TestWorkflow_GetForUserHidesForeignBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Reserve(ctx, reserveReq("alice", "09:00", "10:00"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := f.svc.GetForUser(ctx, res.BookingID, "bob"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("foreign read should look like not found, got %v", err)
	}
	own, err := f.svc.GetForUser(ctx, res.BookingID, "alice")
	if err != nil || own.ID != res.BookingID {
		t.Errorf("own read = %+v, %v", own, err)
	}
}

func TestWorkflow_HandlePaymentResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, _ := f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
	ref := res.Booking.PaymentReference

	if err := f.svc.HandlePaymentResult(ctx, ref, payment.OutcomePending); err != nil {
		t.Errorf("pending result should be ignored, got %v", err)
	}
	if err := f.svc.HandlePaymentResult(ctx, ref, payment.OutcomeSuccess); err != nil {
		t.Fatalf("HandlePaymentResult: %v", err)
	}
	if err := f.svc.HandlePaymentResult(ctx, ref, payment.OutcomeSuccess); err != nil {
		t.Errorf("redelivery should be a no-op, got %v", err)
	}
	b, _ := f.svc.GetByID(ctx, res.BookingID)
	if b.Status != model.StatusConfirmed {
		t.Errorf("status = %s", b.Status)
	}
	if err := f.svc.HandlePaymentResult(ctx, ref, payment.OutcomeFailure); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("failure after confirm should be INVALID_STATE, got %v", err)
	}
	if err := f.svc.HandlePaymentResult(ctx, "sbx_unknown", payment.OutcomeSuccess); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("unknown reference should be NOT_FOUND, got %v", err)
	}

	res2, _ := f.svc.Reserve(ctx, reserveReq("u", "10:00", "11:00"))
	if err := f.svc.HandlePaymentResult(ctx, res2.Booking.PaymentReference, payment.OutcomeFailure); err != nil {
		t.Fatalf("failure result: %v", err)
	}
	b2, _ := f.svc.GetByID(ctx, res2.BookingID)
	if b2.Status != model.StatusCancelled {
		t.Errorf("status = %s", b2.Status)
	}
}

func TestWorkflow_ExpireStaleKeepsFreshHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _ = f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
	f.clock.Advance(10 * time.Minute)
	_, _ = f.svc.Reserve(ctx, reserveReq("u", "10:00", "11:00"))
	f.clock.Advance(6 * time.Minute)

	n, err := f.svc.ExpireStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireStale = %d, %v", n, err)
	}
	if got := available(t, f); !equal(got, []string{"09:00"}) {
		t.Errorf("availability = %v", got)
	}

	n, _ = f.svc.ExpireStale(ctx)
	if n != 0 {
		t.Errorf("second sweep expired %d", n)
	}
}

func TestWorkflow_ListByUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.svc.Reserve(ctx, reserveReq("u", "09:00", "10:00"))
	_, _ = f.svc.Reserve(ctx, reserveReq("u", "10:00", "11:00"))

	list, total, err := f.svc.ListByUser(ctx, "u", 1, 0)
	if err != nil || total != 2 || len(list) != 1 {
		t.Errorf("ListByUser = %d items, total %d, %v", len(list), total, err)
	}
	if _, _, err := f.svc.ListByUser(ctx, "", 10, 0); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}
