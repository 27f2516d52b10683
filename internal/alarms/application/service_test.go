package application

import (
	"fmt"
	"testing"
	"time"

	alarms "hydro-dashboard/internal/alarms/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("alert-%d", n)
	}
}

func TestEvaluatorFiresOncePerCooldown(t *testing.T) {
	evaluator, err := NewEvaluator(NewDeduplicator(5*time.Minute), WithIDFunc(sequentialIDs()))
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	t0 := time.Unix(1743919923, 0)
	reading := sensors.Reading{
		AirTemp:  sensors.Float(25),
		PH:       sensors.Float(7.1),
		TDS:      sensors.Float(0),
		Humidity: sensors.Float(60),
	}

	first := evaluator.Evaluate(reading, t0)
	if len(first) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(first), first)
	}
	kinds := map[sensors.ParameterKey]alarms.ConditionKind{}
	for _, alert := range first {
		kinds[alert.Parameter] = alert.Kind
	}
	if kinds[sensors.ParamPH] != alarms.KindOutOfRange {
		t.Fatalf("expected ph out_of_range, got %q", kinds[sensors.ParamPH])
	}
	if kinds[sensors.ParamTDS] != alarms.KindSensorError {
		t.Fatalf("expected tds sensor_error, got %q", kinds[sensors.ParamTDS])
	}
	if first[0].ID != "alert-1" {
		t.Fatalf("expected injected id, got %q", first[0].ID)
	}

	if again := evaluator.Evaluate(reading, t0.Add(time.Minute)); len(again) != 0 {
		t.Fatalf("expected suppression, got %d alerts", len(again))
	}
	if later := evaluator.Evaluate(reading, t0.Add(6*time.Minute)); len(later) != 2 {
		t.Fatalf("expected 2 alerts after cooldown, got %d", len(later))
	}
}

func TestEvaluatorSkipsAbsentAndSatisfactory(t *testing.T) {
	evaluator, err := NewEvaluator(NewDeduplicator(0))
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	reading := sensors.Reading{WaterTemp: sensors.Float(20)}
	if got := evaluator.Evaluate(reading, time.Now()); len(got) != 0 {
		t.Fatalf("expected no alerts, got %+v", got)
	}
	if got := evaluator.Evaluate(sensors.Reading{}, time.Now()); len(got) != 0 {
		t.Fatalf("expected no alerts for empty reading, got %+v", got)
	}
}

func TestNewEvaluatorRequiresDeduplicator(t *testing.T) {
	if _, err := NewEvaluator(nil); err == nil {
		t.Fatalf("expected error for nil deduplicator")
	}
}
