package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("trainer-1").
		WithValue(map[string]string{"booking_id": "b1"}).
		WithEventType("booking.reserved").
		WithSource("bookings").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if msg.Key != "trainer-1" || msg.GetEventType() != "booking.reserved" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.GetEventID() == "" || msg.Headers[HeaderTimestamp] == "" {
		t.Error("Build should fill event id and timestamp")
	}

	var decoded map[string]string
	if err := msg.DecodeValue(&decoded); err != nil || decoded["booking_id"] != "b1" {
		t.Errorf("DecodeValue = %v, %v", decoded, err)
	}
}

func TestMessageBuilder_EncodingFailure(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{}
	for i := 1; i <= 12; i++ {
		msg.IncrementRetryCount()
		if got := msg.GetRetryCount(); got != i {
			t.Fatalf("retry count = %d, want %d", got, i)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"refused", errors.New("dial tcp: connection refused"), ErrorTypeTransient},
		{"explicit permanent", NewPermanentError("bad", nil), ErrorTypePermanent},
		{"business", NewBusinessError("stale", nil), ErrorTypeBusiness},
		{"unknown", errors.New("boom"), ErrorTypePermanent},
		{"bad json", (&Message{Value: []byte("{")}).DecodeValue(&struct{}{}), ErrorTypePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}

	if ShouldRetry(errors.New("i/o timeout"), 3, 3) {
		t.Error("should not retry past max")
	}
	if !ShouldRetry(errors.New("i/o timeout"), 0, 3) {
		t.Error("should retry transient error")
	}
}
