package client

import (
	"context"
	"fmt"
	"net/url"

	"trainerbook/pkg/model"
)

// BookingClient calls the bookings API on behalf of one user.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseURL, userID string) *BookingClient {
	hc := NewHttpClient(baseURL)
	hc.Headers["X-User-ID"] = userID
	return &BookingClient{httpClient: hc}
}

func (c *BookingClient) AvailableSlots(ctx context.Context, trainerID, date string) (*Response, error) {
	path := fmt.Sprintf("/api/v1/trainers/%s/slots?date=%s", url.PathEscape(trainerID), url.QueryEscape(date))
	return c.httpClient.GET(ctx, path)
}

func (c *BookingClient) Reserve(ctx context.Context, req model.ReserveRequest) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings", req)
}

func (c *BookingClient) Confirm(ctx context.Context, id, paymentReference string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings/"+url.PathEscape(id)+"/confirm",
		model.ConfirmRequest{PaymentReference: paymentReference})
}

func (c *BookingClient) Cancel(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings/"+url.PathEscape(id)+"/cancel", nil)
}

func (c *BookingClient) Complete(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings/"+url.PathEscape(id)+"/complete", nil)
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/bookings/"+url.PathEscape(id))
}

func (c *BookingClient) List(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/bookings?limit=%d&offset=%d", limit, offset))
}

func (c *BookingClient) DecodeSlots(resp *Response) ([]model.Slot, error) {
	var slots []model.Slot
	if err := resp.DecodeData(&slots); err != nil {
		return nil, fmt.Errorf("could not decode slots: %w", err)
	}
	return slots, nil
}

func (c *BookingClient) DecodeReservation(resp *Response) (*model.ReserveResult, error) {
	var result model.ReserveResult
	if err := resp.DecodeData(&result); err != nil {
		return nil, fmt.Errorf("could not decode reservation: %w", err)
	}
	return &result, nil
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var booking model.Booking
	if err := resp.DecodeData(&booking); err != nil {
		return nil, fmt.Errorf("could not decode booking: %w", err)
	}
	return &booking, nil
}
