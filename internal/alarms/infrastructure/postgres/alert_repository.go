package postgres

import (
	"context"
	"database/sql"
	"errors"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarms "hydro-dashboard/internal/alarms/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS alert_events (
	id TEXT PRIMARY KEY,
	parameter TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	payload_param TEXT NOT NULL,
	fired_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS alert_events_fired_idx ON alert_events (fired_at DESC)`,
	`CREATE INDEX IF NOT EXISTS alert_events_param_idx ON alert_events (parameter, fired_at DESC)`,
}

// AlertRepository stores fired alerts in Postgres.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// EnsureSchema creates the alert_events table when missing.
func (r *AlertRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts alert. A repeated id is ignored.
func (r *AlertRepository) Append(ctx context.Context, alert alarms.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert.ID == "" {
		return errors.New("alert repo: empty id")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alert_events (
	id, parameter, kind, status, value, title, body, payload_param, fired_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)
ON CONFLICT (id) DO NOTHING`,
		alert.ID,
		string(alert.Parameter),
		string(alert.Kind),
		string(alert.Status),
		alert.Value,
		alert.Title,
		alert.Body,
		alert.Payload.Param,
		alert.FiredAt.UTC(),
	)
	return err
}

// ListRecent lists the newest alerts first.
func (r *AlertRepository) ListRecent(ctx context.Context, q alarmapp.AlertQuery) ([]alarms.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, parameter, kind, status, value, title, body, payload_param, fired_at
FROM alert_events
WHERE ($1 = '' OR parameter = $1) AND fired_at >= $2
ORDER BY fired_at DESC
LIMIT $3`, string(q.Parameter), q.Since.UTC(), q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]alarms.Alert, 0, q.Limit)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (alarms.Alert, error) {
	var alert alarms.Alert
	var parameter, kind, status string
	if err := row.Scan(
		&alert.ID,
		&parameter,
		&kind,
		&status,
		&alert.Value,
		&alert.Title,
		&alert.Body,
		&alert.Payload.Param,
		&alert.FiredAt,
	); err != nil {
		return alarms.Alert{}, err
	}
	alert.Parameter = sensors.ParameterKey(parameter)
	alert.Kind = alarms.ConditionKind(kind)
	alert.Status = sensors.Status(status)
	alert.Payload.Value = alert.Value
	alert.FiredAt = alert.FiredAt.UTC()
	return alert, nil
}
