package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	alarms "hydro-dashboard/internal/alarms/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = f.values[i].(string)
		case *float64:
			*ptr = f.values[i].(float64)
		case *time.Time:
			*ptr = f.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanAlert(t *testing.T) {
	fired := time.Date(2025, 4, 10, 16, 0, 0, 0, time.FixedZone("PHT", 8*3600))
	row := fakeRow{values: []any{
		"a-1", "ph", "out_of_range", "too_high", 7.2, "pH Level Alert", "Your pH Level (7.2) is high. Tap for more information.", "pH Level", fired,
	}}
	alert, err := scanAlert(row)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if alert.Parameter != sensors.ParamPH || alert.Kind != alarms.KindOutOfRange || alert.Status != sensors.StatusTooHigh {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if alert.Payload.Param != "pH Level" || alert.Payload.Value != 7.2 || alert.FiredAt.Location() != time.UTC {
		t.Fatalf("unexpected payload or time %+v", alert)
	}
	if _, err := scanAlert(fakeRow{err: errors.New("boom")}); err == nil {
		t.Fatalf("expected scan error")
	}
}

func TestAlertRepositoryNilDB(t *testing.T) {
	repo := NewAlertRepository(nil)
	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected nil db error")
	}
	if err := repo.Append(context.Background(), alarms.Alert{ID: "a"}); err == nil {
		t.Fatalf("expected nil db error")
	}
}
