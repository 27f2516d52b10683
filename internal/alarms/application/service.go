package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	alarms "hydro-dashboard/internal/alarms/domain"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

// AlertNotifier delivers fired alerts.
type AlertNotifier interface {
	Notify(ctx context.Context, alert alarms.Alert)
}

// Evaluator turns readings into deduplicated alerts.
type Evaluator struct {
	dedup *Deduplicator
	newID func() string
}

// EvaluatorOption customizes the evaluator.
type EvaluatorOption func(*Evaluator)

// WithIDFunc overrides alert id generation.
func WithIDFunc(fn func() string) EvaluatorOption {
	return func(e *Evaluator) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(dedup *Deduplicator, opts ...EvaluatorOption) (*Evaluator, error) {
	if dedup == nil {
		return nil, errors.New("alarms: nil deduplicator")
	}
	e := &Evaluator{dedup: dedup, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate classifies every present parameter of reading and returns the
// alerts that pass the cooldown. Same-goroutine use only.
func (e *Evaluator) Evaluate(reading sensors.Reading, now time.Time) []alarms.Alert {
	if e == nil {
		return nil
	}
	var out []alarms.Alert
	for _, key := range sensors.Keys() {
		value, ok := reading.Value(key)
		if !ok {
			continue
		}
		result := sensors.Classify(key, &value)
		metrics.SetParameterStatus(string(key), string(result.Status))
		kind, alerting := alarms.KindFor(result.Status)
		if !alerting {
			continue
		}
		if !e.dedup.ShouldFire(key, kind, now) {
			metrics.IncAlertSuppressed(string(key), string(kind))
			continue
		}
		spec, _ := sensors.Spec(key)
		alert, err := alarms.NewAlert(e.newID(), spec, result.Status, value, now)
		if err != nil {
			continue
		}
		metrics.IncAlertFired(string(key), string(kind))
		out = append(out, alert)
	}
	return out
}
