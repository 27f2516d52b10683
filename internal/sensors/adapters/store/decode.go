package store

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	sensors "hydro-dashboard/internal/sensors/domain"
)

// Issue reasons reported by decoding.
const (
	ReasonInvalidKey       = "invalid_key"
	ReasonInvalidValue     = "invalid_value"
	ReasonInvalidPumpState = "invalid_pump_state"
	ReasonInvalidTimestamp = "invalid_timestamp"
	ReasonUnknownField     = "unknown_field"
	ReasonEmptyEntry       = "empty_entry"
	ReasonNotObject        = "not_object"
)

// Issue describes a store value that was dropped during decoding.
type Issue struct {
	Key    string `json:"key,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// DecodeReading validates one reading record. Malformed fields are dropped
// and reported; the remaining fields form the reading.
func DecodeReading(raw map[string]json.RawMessage) (sensors.Reading, []Issue) {
	var reading sensors.Reading
	var issues []Issue
	for field, value := range raw {
		if isNull(value) {
			continue
		}
		key := sensors.ParameterKey(field)
		switch {
		case key.Known():
			number, ok := decodeNumber(value)
			if !ok {
				issues = append(issues, Issue{Field: field, Reason: ReasonInvalidValue})
				continue
			}
			reading.Set(key, number)
		case field == sensors.FieldPumpState:
			number, ok := decodeNumber(value)
			state := sensors.PumpState(int(number))
			if !ok || number != math.Trunc(number) || !state.Valid() {
				issues = append(issues, Issue{Field: field, Reason: ReasonInvalidPumpState})
				continue
			}
			reading.Pump = sensors.Pump(state)
		case field == sensors.FieldTimestamp:
			number, ok := decodeNumber(value)
			if !ok || number <= 0 {
				issues = append(issues, Issue{Field: field, Reason: ReasonInvalidTimestamp})
				continue
			}
			reading.Timestamp = time.Unix(int64(number), 0).UTC()
		default:
			issues = append(issues, Issue{Field: field, Reason: ReasonUnknownField})
		}
	}
	return reading, issues
}

// DecodeHistory validates a history snapshot keyed by unix seconds.
// Entries with a non-numeric key, a non-object body or no valid field are rejected.
func DecodeHistory(raw map[string]json.RawMessage) (sensors.HistoryLog, []Issue) {
	log := make(sensors.HistoryLog, len(raw))
	var issues []Issue
	for key, body := range raw {
		at, err := strconv.ParseInt(key, 10, 64)
		if err != nil || at <= 0 {
			issues = append(issues, Issue{Key: key, Reason: ReasonInvalidKey})
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
			issues = append(issues, Issue{Key: key, Reason: ReasonNotObject})
			continue
		}
		reading, fieldIssues := DecodeReading(fields)
		for _, issue := range fieldIssues {
			issue.Key = key
			issues = append(issues, issue)
		}
		if reading.Empty() {
			issues = append(issues, Issue{Key: key, Reason: ReasonEmptyEntry})
			continue
		}
		reading.Timestamp = time.Unix(at, 0).UTC()
		log[at] = reading
	}
	return log, issues
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		return 0, false
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return number, true
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
