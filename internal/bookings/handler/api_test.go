package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	availabilityhandler "trainerbook/internal/availability/handler"
	"trainerbook/internal/availability/index"
	availabilityservice "trainerbook/internal/availability/service"
	"trainerbook/internal/bookings/events"
	"trainerbook/internal/bookings/handler"
	"trainerbook/internal/bookings/repository"
	"trainerbook/internal/bookings/service"
	"trainerbook/internal/bookings/validator"
	trainerserrors "trainerbook/internal/trainers/errors"
	"trainerbook/pkg/client"
	"trainerbook/pkg/config"
	apperrors "trainerbook/pkg/errors"
	"trainerbook/pkg/logger"
	"trainerbook/pkg/model"
	"trainerbook/pkg/payment"
)

type directory map[string]*model.Trainer

func (d directory) GetTrainer(_ context.Context, id string) (*model.Trainer, error) {
	if t, ok := d[id]; ok {
		return t, nil
	}
	return nil, trainerserrors.ErrNotFound
}

type api struct {
	server  *httptest.Server
	sandbox *payment.Sandbox
	date    string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	date := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	trainers := directory{
		"t1": {
			ID:               "t1",
			Name:             "Dana",
			AvailabilityMode: model.AvailabilityModeDate,
			PricePerSession:  5000,
			Windows:          []model.AvailabilityWindow{{Date: date, StartTime: "09:00", EndTime: "11:00"}},
		},
	}

	log := logger.Nop()
	ledger := repository.NewMemoryBookingRepository(nil)
	slots := availabilityservice.NewAvailabilityService(trainers, ledger, index.New(index.Policy{}), 60, nil, log)
	sandbox := payment.NewSandbox(payment.OutcomeSuccess)
	cfg := &config.Config{Log: log, PaymentTimeout: 15 * time.Minute, DefaultCurrency: "usd"}
	svc := service.NewBookingService(ledger, slots, sandbox, events.NewNoopPublisher(log), validator.NewBookingValidator(log), cfg)

	router := httprouter.New()
	handler.NewBookingHandler(svc, log).RegisterRoutes(router)
	availabilityhandler.NewAvailabilityHandler(slots, log).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &api{server: srv, sandbox: sandbox, date: date}
}

func (a *api) client(user string) *client.BookingClient {
	return client.NewBookingClient(a.server.URL, user)
}

func startTimes(t *testing.T, c *client.BookingClient, date string) []string {
	t.Helper()
	resp, err := c.AvailableSlots(context.Background(), "t1", date)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("AvailableSlots status = %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	slots, err := c.DecodeSlots(resp)
	if err != nil {
		t.Fatal(err)
	}
	out := []string{}
	for _, s := range slots {
		out = append(out, s.StartTime)
	}
	return out
}

func TestAPI_ReserveConfirmCancel(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	alice := a.client("alice")
	bob := a.client("bob")

	if got := startTimes(t, alice, a.date); len(got) != 2 || got[0] != "09:00" || got[1] != "10:00" {
		t.Fatalf("initial slots = %v", got)
	}

	resp, err := alice.Reserve(ctx, model.ReserveRequest{TrainerID: "t1", Date: a.date, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Reserve status = %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	reservation, err := alice.DecodeReservation(resp)
	if err != nil {
		t.Fatal(err)
	}
	if reservation.PaymentClientToken == "" || reservation.Booking.PaymentReference == "" {
		t.Fatalf("reservation missing payment details: %+v", reservation)
	}

	resp, err = bob.Reserve(ctx, model.ReserveRequest{TrainerID: "t1", Date: a.date, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict || client.GetErrorCode(resp) != apperrors.CodeSlotConflict {
		t.Fatalf("second Reserve = %d %s, want 409 SLOT_CONFLICT", resp.StatusCode, client.GetErrorCode(resp))
	}

	if got := startTimes(t, bob, a.date); len(got) != 1 || got[0] != "10:00" {
		t.Fatalf("slots after hold = %v", got)
	}

	resp, err = alice.Confirm(ctx, reservation.BookingID, reservation.Booking.PaymentReference)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Confirm status = %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	booking, err := alice.DecodeBooking(resp)
	if err != nil {
		t.Fatal(err)
	}
	if booking.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", booking.Status)
	}

	resp, err = bob.GetByID(ctx, reservation.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign GetByID status = %d, want 404", resp.StatusCode)
	}
	resp, err = alice.GetByID(ctx, reservation.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own GetByID status = %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}

	resp, err = bob.Cancel(ctx, reservation.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign Cancel status = %d, want 404", resp.StatusCode)
	}

	resp, err = alice.Cancel(ctx, reservation.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Cancel status = %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}

	if got := startTimes(t, bob, a.date); len(got) != 2 {
		t.Fatalf("slots after cancel = %v", got)
	}

	resp, err = alice.List(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("List status = %d", resp.StatusCode)
	}
	var listed []model.Booking
	if err := resp.DecodeData(&listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Status != model.StatusCancelled {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestAPI_DeclinedPaymentReleasesSlot(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	alice := a.client("alice")

	resp, err := alice.Reserve(ctx, model.ReserveRequest{TrainerID: "t1", Date: a.date, StartTime: "10:00", EndTime: "11:00"})
	if err != nil {
		t.Fatal(err)
	}
	reservation, err := alice.DecodeReservation(resp)
	if err != nil {
		t.Fatal(err)
	}

	a.sandbox.SetOutcome(reservation.Booking.PaymentReference, payment.OutcomeFailure)

	resp, err = alice.Confirm(ctx, reservation.BookingID, reservation.Booking.PaymentReference)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("Confirm status = %d, want 402", resp.StatusCode)
	}
	if got := startTimes(t, alice, a.date); len(got) != 2 {
		t.Fatalf("slots after declined payment = %v", got)
	}
}

func TestAPI_ConcurrentReserve(t *testing.T) {
	a := newAPI(t)
	const n = 16

	var wg sync.WaitGroup
	codes := make(chan int, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := a.client(string(rune('a' + i)))
			<-start
			resp, err := c.Reserve(context.Background(), model.ReserveRequest{TrainerID: "t1", Date: a.date, StartTime: "09:00", EndTime: "10:00"})
			if err != nil {
				t.Error(err)
				return
			}
			codes <- resp.StatusCode
		}(i)
	}
	close(start)
	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if created != 1 || conflicts != n-1 {
		t.Errorf("created = %d, conflicts = %d", created, conflicts)
	}
}
