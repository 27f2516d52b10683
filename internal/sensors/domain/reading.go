package sensors

import (
	"math"
	"sort"
	"time"
)

// ParameterKey identifies a monitored parameter.
type ParameterKey string

const (
	ParamAirTemp   ParameterKey = "air_temp"
	ParamHumidity  ParameterKey = "humidity"
	ParamWaterTemp ParameterKey = "water_temp"
	ParamPH        ParameterKey = "ph"
	ParamTDS       ParameterKey = "tds"
)

// FieldPumpState is the store field carrying the pump state.
const FieldPumpState = "pump_state"

// FieldTimestamp is the optional store field carrying a live reading time in unix seconds.
const FieldTimestamp = "timestamp"

// Keys lists the monitored parameters in display order.
func Keys() []ParameterKey {
	return []ParameterKey{ParamAirTemp, ParamHumidity, ParamWaterTemp, ParamPH, ParamTDS}
}

// Known returns true when key is a monitored parameter.
func (k ParameterKey) Known() bool {
	switch k {
	case ParamAirTemp, ParamHumidity, ParamWaterTemp, ParamPH, ParamTDS:
		return true
	default:
		return false
	}
}

// PumpState is the binary pump state written by the rig.
type PumpState int

const (
	PumpOff PumpState = 0
	PumpOn  PumpState = 1
)

// Valid returns true for 0 or 1.
func (p PumpState) Valid() bool {
	return p == PumpOff || p == PumpOn
}

// String renders the state the way the dashboard shows it.
func (p PumpState) String() string {
	if p == PumpOn {
		return "ON"
	}
	return "OFF"
}

// Reading is a snapshot of all sensor values at one instant.
// Absent fields are nil.
type Reading struct {
	Timestamp time.Time  `json:"timestamp"`
	AirTemp   *float64   `json:"air_temp,omitempty"`
	Humidity  *float64   `json:"humidity,omitempty"`
	WaterTemp *float64   `json:"water_temp,omitempty"`
	PH        *float64   `json:"ph,omitempty"`
	TDS       *float64   `json:"tds,omitempty"`
	Pump      *PumpState `json:"pump_state,omitempty"`
}

// Value returns the numeric value for key. NaN is reported as absent.
func (r Reading) Value(key ParameterKey) (float64, bool) {
	var ptr *float64
	switch key {
	case ParamAirTemp:
		ptr = r.AirTemp
	case ParamHumidity:
		ptr = r.Humidity
	case ParamWaterTemp:
		ptr = r.WaterTemp
	case ParamPH:
		ptr = r.PH
	case ParamTDS:
		ptr = r.TDS
	}
	if ptr == nil || math.IsNaN(*ptr) {
		return 0, false
	}
	return *ptr, true
}

// Set stores value under key. Unknown keys are ignored.
func (r *Reading) Set(key ParameterKey, value float64) {
	v := value
	switch key {
	case ParamAirTemp:
		r.AirTemp = &v
	case ParamHumidity:
		r.Humidity = &v
	case ParamWaterTemp:
		r.WaterTemp = &v
	case ParamPH:
		r.PH = &v
	case ParamTDS:
		r.TDS = &v
	}
}

// Empty returns true when no field is present.
func (r Reading) Empty() bool {
	if r.Pump != nil {
		return false
	}
	for _, key := range Keys() {
		if _, ok := r.Value(key); ok {
			return false
		}
	}
	return true
}

// HistoryLog maps unix seconds to the reading recorded at that time.
// Map order carries no meaning; use Sorted.
type HistoryLog map[int64]Reading

// HistoryEntry is one timestamped entry of a HistoryLog.
type HistoryEntry struct {
	At      int64
	Reading Reading
}

// Sorted returns entries ordered by ascending timestamp.
func (h HistoryLog) Sorted() []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(h))
	for at, reading := range h {
		entries = append(entries, HistoryEntry{At: at, Reading: reading})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].At < entries[j].At })
	return entries
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Pump returns a pointer to p.
func Pump(p PumpState) *PumpState {
	return &p
}
