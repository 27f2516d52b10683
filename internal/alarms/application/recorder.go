package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	alarms "hydro-dashboard/internal/alarms/domain"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

const (
	defaultAlertListLimit = 50
	maxAlertListLimit     = 500
)

// AlertQuery filters the alert history.
type AlertQuery struct {
	Parameter sensors.ParameterKey
	Since     time.Time
	Limit     int
}

// AlertLog stores fired alerts.
type AlertLog interface {
	Append(ctx context.Context, alert alarms.Alert) error
	ListRecent(ctx context.Context, q AlertQuery) ([]alarms.Alert, error)
}

// Recorder is an AlertNotifier that appends every alert to an AlertLog.
type Recorder struct {
	log    AlertLog
	logger *zap.SugaredLogger
}

// NewRecorder constructs a recorder.
func NewRecorder(log AlertLog, logger *zap.SugaredLogger) (*Recorder, error) {
	if log == nil {
		return nil, errors.New("alarms: nil alert log")
	}
	return &Recorder{log: log, logger: hlog.OrNop(logger)}, nil
}

// Notify implements AlertNotifier.
func (r *Recorder) Notify(ctx context.Context, alert alarms.Alert) {
	if err := r.log.Append(ctx, alert); err != nil {
		metrics.IncNotifyError("history")
		r.logger.Warnw("alert history append failed", "alert_id", alert.ID, "error", err)
	}
}

// List returns recent alerts, newest first.
func (r *Recorder) List(ctx context.Context, q AlertQuery) ([]alarms.Alert, error) {
	if q.Parameter != "" && !q.Parameter.Known() {
		return nil, alarms.ErrUnknownParameter
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultAlertListLimit
	case q.Limit > maxAlertListLimit:
		q.Limit = maxAlertListLimit
	}
	return r.log.ListRecent(ctx, q)
}
