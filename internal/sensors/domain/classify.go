package sensors

import "math"

// Status is the classification outcome for one value.
type Status string

const (
	StatusSatisfactory Status = "satisfactory"
	StatusTooHigh      Status = "too_high"
	StatusTooLow       Status = "too_low"
	StatusSensorError  Status = "sensor_error"
	StatusUnknown      Status = "unknown"
)

// OutOfRange returns true for too_high and too_low.
func (s Status) OutOfRange() bool {
	return s == StatusTooHigh || s == StatusTooLow
}

// Classification is derived on demand and never stored.
type Classification struct {
	Parameter   ParameterKey `json:"parameter"`
	Status      Status       `json:"status"`
	Implication string       `json:"implication,omitempty"`
	Action      string       `json:"action,omitempty"`
	Importance  string       `json:"importance,omitempty"`
}

// Classify maps a value for key to a status and advice texts.
// A nil value yields unknown.
func Classify(key ParameterKey, value *float64) Classification {
	spec, ok := specs[key]
	if !ok {
		return Classification{
			Parameter:   key,
			Status:      StatusUnknown,
			Implication: notApplicable,
			Importance:  unknownParameter,
		}
	}
	out := Classification{Parameter: key, Importance: spec.Importance}
	if value == nil || math.IsNaN(*value) {
		out.Status = StatusUnknown
		return out
	}

	v := *value
	// A zero TDS probe is reported as a fault before the range check.
	if key == ParamTDS && v == 0 {
		out.Status = StatusSensorError
		out.Implication = tdsZeroImplication
		out.Action = tdsZeroAction
		return out
	}

	switch {
	case v < spec.Min:
		out.Status = StatusTooLow
		out.Implication = spec.TooLow
		out.Action = spec.TooLowFix
	case v > spec.Max:
		out.Status = StatusTooHigh
		out.Implication = spec.TooHigh
		out.Action = spec.TooHighFix
	default:
		out.Status = StatusSatisfactory
		out.Implication = spec.Satisfactory
	}
	return out
}

// ClassifyReading classifies every monitored parameter of r.
func ClassifyReading(r Reading) []Classification {
	out := make([]Classification, 0, len(specs))
	for _, key := range Keys() {
		var ptr *float64
		if v, ok := r.Value(key); ok {
			ptr = &v
		}
		out = append(out, Classify(key, ptr))
	}
	return out
}
