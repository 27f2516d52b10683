package events

import (
	"time"

	sensors "hydro-dashboard/internal/sensors/domain"
)

// PumpCommandIssued is emitted when a pump command is recorded.
type PumpCommandIssued struct {
	CommandID  string            `json:"command_id"`
	State      sensors.PumpState `json:"state"`
	Actor      string            `json:"actor,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// PumpCommandAcked is emitted when the store accepted the pump state.
type PumpCommandAcked struct {
	CommandID  string            `json:"command_id"`
	State      sensors.PumpState `json:"state"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// PumpCommandFailed is emitted when the store rejected the write.
type PumpCommandFailed struct {
	CommandID  string            `json:"command_id"`
	State      sensors.PumpState `json:"state"`
	Error      string            `json:"error"`
	OccurredAt time.Time         `json:"occurred_at"`
}
