package alarms

import (
	"fmt"
	"strconv"
	"time"

	sensors "hydro-dashboard/internal/sensors/domain"
)

// ConditionKind groups statuses that share one cooldown.
type ConditionKind string

const (
	KindOutOfRange  ConditionKind = "out_of_range"
	KindSensorError ConditionKind = "sensor_error"
)

// Kinds lists the tracked condition kinds.
func Kinds() []ConditionKind {
	return []ConditionKind{KindOutOfRange, KindSensorError}
}

// Valid returns true when kind is tracked.
func (k ConditionKind) Valid() bool {
	return k == KindOutOfRange || k == KindSensorError
}

// KindFor maps a classification status to the alert condition it raises.
func KindFor(status sensors.Status) (ConditionKind, bool) {
	switch status {
	case sensors.StatusTooHigh, sensors.StatusTooLow:
		return KindOutOfRange, true
	case sensors.StatusSensorError:
		return KindSensorError, true
	default:
		return "", false
	}
}

// Payload is attached to delivered notifications.
type Payload struct {
	Param string  `json:"param"`
	Value float64 `json:"value"`
}

// Alert is a notification-worthy condition on one parameter.
type Alert struct {
	ID        string               `json:"id"`
	Parameter sensors.ParameterKey `json:"parameter"`
	Kind      ConditionKind        `json:"kind"`
	Status    sensors.Status       `json:"status"`
	Value     float64              `json:"value"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Payload   Payload              `json:"payload"`
	FiredAt   time.Time            `json:"fired_at"`
}

// NewAlert builds the alert texts for a classified value.
func NewAlert(id string, spec sensors.ParameterSpec, status sensors.Status, value float64, firedAt time.Time) (Alert, error) {
	kind, ok := KindFor(status)
	if !ok {
		return Alert{}, fmt.Errorf("%w: %s", ErrNotAlerting, status)
	}
	alert := Alert{
		ID:        id,
		Parameter: spec.Key,
		Kind:      kind,
		Status:    status,
		Value:     value,
		Payload:   Payload{Param: spec.Name, Value: value},
		FiredAt:   firedAt.UTC(),
	}
	switch kind {
	case KindSensorError:
		alert.Title = spec.Name + " Sensor Error"
		alert.Body = fmt.Sprintf("Your %s sensor is reporting 0. This may indicate a sensor issue. Tap for details.", spec.Name)
	case KindOutOfRange:
		direction := "high"
		if status == sensors.StatusTooLow {
			direction = "low"
		}
		alert.Title = spec.Name + " Alert"
		alert.Body = fmt.Sprintf("Your %s (%s%s) is %s. Tap for more information.", spec.Name, FormatValue(value), spec.Unit, direction)
	}
	return alert, nil
}

// FormatValue renders a reading value with the shortest exact representation.
func FormatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
