package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")

	var calls []string
	d.Subscribe(EventSessionIssued, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.UserID)
		return boom
	})
	d.Subscribe(EventSessionIssued, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.UserID)
		return nil
	})
	d.Subscribe(EventSessionRevoked, func(context.Context, Event) error {
		t.Fatal("handler for another event type must not run")
		return nil
	})

	err := d.Publish(context.Background(), New(EventSessionIssued, "u1", SessionPayload{Username: "alice"}))
	if !errors.Is(err, boom) {
		t.Fatalf("Publish error = %v, want wrapped boom", err)
	}
	if len(calls) != 2 || calls[0] != "first:u1" || calls[1] != "second:u1" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), New(EventUserRegistered, "u1", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
