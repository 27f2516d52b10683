package application

import (
	"testing"
	"time"

	alarms "hydro-dashboard/internal/alarms/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

func TestDeduplicatorCooldownBoundary(t *testing.T) {
	d := NewDeduplicator(0)
	t0 := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)

	if !d.ShouldFire(sensors.ParamPH, alarms.KindOutOfRange, t0) {
		t.Fatalf("first occurrence must fire")
	}
	if d.ShouldFire(sensors.ParamPH, alarms.KindOutOfRange, t0.Add(299999*time.Millisecond)) {
		t.Fatalf("expected suppression inside cooldown")
	}
	if !d.ShouldFire(sensors.ParamPH, alarms.KindOutOfRange, t0.Add(300001*time.Millisecond)) {
		t.Fatalf("expected fire after cooldown")
	}
}

func TestDeduplicatorFiresAtExactCooldown(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	t0 := time.Unix(1000, 0)
	d.ShouldFire(sensors.ParamTDS, alarms.KindSensorError, t0)
	if !d.ShouldFire(sensors.ParamTDS, alarms.KindSensorError, t0.Add(5*time.Minute)) {
		t.Fatalf("expected fire at exactly the cooldown")
	}
}

func TestDeduplicatorSuppressedCallsDoNotExtendWindow(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	t0 := time.Unix(1000, 0)
	d.ShouldFire(sensors.ParamHumidity, alarms.KindOutOfRange, t0)
	d.ShouldFire(sensors.ParamHumidity, alarms.KindOutOfRange, t0.Add(4*time.Minute))
	if !d.ShouldFire(sensors.ParamHumidity, alarms.KindOutOfRange, t0.Add(5*time.Minute+time.Second)) {
		t.Fatalf("suppressed call must not reset the window")
	}
}

func TestDeduplicatorKeysAreIndependent(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	t0 := time.Unix(1000, 0)
	if !d.ShouldFire(sensors.ParamTDS, alarms.KindOutOfRange, t0) {
		t.Fatalf("expected fire")
	}
	if !d.ShouldFire(sensors.ParamTDS, alarms.KindSensorError, t0) {
		t.Fatalf("different kind must fire independently")
	}
	if !d.ShouldFire(sensors.ParamPH, alarms.KindOutOfRange, t0) {
		t.Fatalf("different parameter must fire independently")
	}
}

func TestDeduplicatorIgnoresUntrackedPairs(t *testing.T) {
	d := NewDeduplicator(5 * time.Minute)
	now := time.Unix(1000, 0)
	if d.ShouldFire(sensors.ParameterKey("co2"), alarms.KindOutOfRange, now) {
		t.Fatalf("unknown parameter must not fire")
	}
	if d.ShouldFire(sensors.ParamPH, alarms.ConditionKind("flood"), now) {
		t.Fatalf("unknown kind must not fire")
	}
	if d.Tracked() != 0 {
		t.Fatalf("expected no tracked pairs, got %d", d.Tracked())
	}

	for i := 0; i < 100; i++ {
		at := now.Add(time.Duration(i) * time.Hour)
		for _, key := range sensors.Keys() {
			for _, kind := range alarms.Kinds() {
				d.ShouldFire(key, kind, at)
			}
		}
	}
	if d.Tracked() != len(sensors.Keys())*len(alarms.Kinds()) {
		t.Fatalf("expected bounded state, got %d pairs", d.Tracked())
	}
}
