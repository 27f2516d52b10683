package http

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	hlog "hydro-dashboard/internal/log"
)

// EventCommand carries pump command lifecycle events.
const EventCommand = "command"

const clientBuffer = 16

type message struct {
	event string
	data  []byte
}

// Broker fans out dashboard events to connected stream clients.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan message]struct{}
	logger  *zap.SugaredLogger
}

// NewBroker constructs a broker.
func NewBroker(logger *zap.SugaredLogger) *Broker {
	return &Broker{clients: make(map[chan message]struct{}), logger: hlog.OrNop(logger)}
}

// Broadcast encodes payload once and offers it to every client.
// Slow clients miss the event.
func (b *Broker) Broadcast(event string, payload any) {
	if b == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warnw("stream payload encode failed", "event", event, "error", err)
		return
	}
	msg := message{event: event, data: data}

	// Sends are non-blocking, so holding the read lock keeps unsubscribe
	// from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
			b.logger.Debugw("stream client lagging, event dropped", "event", event)
		}
	}
}

// subscribe registers a new client channel.
func (b *Broker) subscribe() chan message {
	if b == nil {
		return nil
	}
	ch := make(chan message, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// unsubscribe removes and closes a client channel.
func (b *Broker) unsubscribe(ch chan message) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.clients[ch]
	delete(b.clients, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
