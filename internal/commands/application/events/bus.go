package events

import (
	"context"
	"sync"
)

// Bus is an in-process fan-out for command lifecycle events.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(context.Context, any) error
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for every published event.
func (b *Bus) Subscribe(handler func(context.Context, any) error) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers event to each handler in registration order and stops at
// the first error.
func (b *Bus) Publish(ctx context.Context, event any) error {
	b.mu.RLock()
	handlers := append([]func(context.Context, any) error(nil), b.handlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the stream event name for a command event.
func Name(event any) string {
	switch event.(type) {
	case PumpCommandIssued, *PumpCommandIssued:
		return "command.issued"
	case PumpCommandAcked, *PumpCommandAcked:
		return "command.acked"
	case PumpCommandFailed, *PumpCommandFailed:
		return "command.failed"
	default:
		return ""
	}
}
