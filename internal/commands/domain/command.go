package commands

import (
	"errors"
	"strings"
	"time"

	sensors "hydro-dashboard/internal/sensors/domain"
)

const (
	StatusCreated = "created"
	StatusSent    = "sent"
	StatusAcked   = "acked"
	StatusFailed  = "failed"
)

// ErrInvalidState indicates a pump state other than on/off/0/1.
var ErrInvalidState = errors.New("commands: state must be on or off")

// PumpCommand records one request to switch the water pump.
type PumpCommand struct {
	CommandID      string            `json:"command_id"`
	State          sensors.PumpState `json:"state"`
	Actor          string            `json:"actor,omitempty"`
	IdempotencyKey string            `json:"idempotency_key"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	SentAt         time.Time         `json:"sent_at"`
	AckedAt        time.Time         `json:"acked_at"`
	Error          string            `json:"error,omitempty"`
}

// ParseState accepts "on", "off", "1" and "0", case-insensitive.
func ParseState(value string) (sensors.PumpState, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "1":
		return sensors.PumpOn, nil
	case "off", "0":
		return sensors.PumpOff, nil
	default:
		return 0, ErrInvalidState
	}
}
