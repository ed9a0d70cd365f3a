package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/yoockh/lumina/internal/models"
)

func receive(t *testing.T, ch <-chan []byte) Event {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		var ev Event
		if err := json.Unmarshal(b, &ev); err != nil {
			t.Fatalf("decode %q: %v", b, err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestMemoryBusRoutesByWorkspace(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()

	a, cancelA, _ := bus.Subscribe(ctx, "a")
	defer cancelA()
	b, cancelB, _ := bus.Subscribe(ctx, "b")
	defer cancelB()

	_ = bus.Publish(ctx, "a", Event{Type: TypePartial, Fields: models.Partial{"subject": "fox"}})

	ev := receive(t, a)
	if ev.Type != TypePartial || ev.Fields["subject"] != "fox" {
		t.Errorf("event = %+v", ev)
	}
	select {
	case got := <-b:
		t.Errorf("workspace b received %s", got)
	default:
	}
}

func TestMemoryBusSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	_, cancel, _ := bus.Subscribe(ctx, "a")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			_ = bus.Publish(ctx, "a", Event{Type: TypeView})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	bus := NewMemoryBus()

	ch, cancel, _ := bus.Subscribe(ctx, "a")
	if bus.subscribers("a") != 1 {
		t.Fatalf("subscribers = %d, want 1", bus.subscribers("a"))
	}

	stop()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	cancel() // idempotent

	if bus.subscribers("a") != 0 {
		t.Errorf("subscribers = %d after cancel", bus.subscribers("a"))
	}
}
