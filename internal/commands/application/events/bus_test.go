package events

import (
	"context"
	"errors"
	"testing"
)

func TestBusFanOutInOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(func(_ context.Context, event any) error {
		order = append(order, "a:"+Name(event))
		return nil
	})
	bus.Subscribe(nil)
	bus.Subscribe(func(_ context.Context, event any) error {
		order = append(order, "b:"+Name(event))
		return nil
	})
	if err := bus.Publish(context.Background(), PumpCommandAcked{CommandID: "cmd-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 2 || order[0] != "a:command.acked" || order[1] != "b:command.acked" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestBusStopsAtFirstError(t *testing.T) {
	bus := NewBus()
	calls := 0
	want := errors.New("stop")
	bus.Subscribe(func(context.Context, any) error { calls++; return want })
	bus.Subscribe(func(context.Context, any) error { calls++; return nil })
	if err := bus.Publish(context.Background(), PumpCommandFailed{}); !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	if Name(struct{}{}) != "" || Name(&PumpCommandIssued{}) != "command.issued" {
		t.Fatalf("unexpected event names")
	}
}
