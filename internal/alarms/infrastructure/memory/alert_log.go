package memory

import (
	"context"
	"sync"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarms "hydro-dashboard/internal/alarms/domain"
)

// DefaultCapacity bounds the in-memory alert history.
const DefaultCapacity = 500

// AlertLog keeps the most recent alerts in arrival order.
type AlertLog struct {
	mu       sync.Mutex
	capacity int
	alerts   []alarms.Alert
}

// NewAlertLog constructs a log holding at most capacity alerts.
func NewAlertLog(capacity int) *AlertLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AlertLog{capacity: capacity}
}

// Append stores alert, evicting the oldest entry when full.
func (l *AlertLog) Append(_ context.Context, alert alarms.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, alert)
	if over := len(l.alerts) - l.capacity; over > 0 {
		l.alerts = append([]alarms.Alert(nil), l.alerts[over:]...)
	}
	return nil
}

// ListRecent returns matching alerts, newest first.
func (l *AlertLog) ListRecent(_ context.Context, q alarmapp.AlertQuery) ([]alarms.Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]alarms.Alert, 0, q.Limit)
	for i := len(l.alerts) - 1; i >= 0 && (q.Limit <= 0 || len(out) < q.Limit); i-- {
		alert := l.alerts[i]
		if q.Parameter != "" && alert.Parameter != q.Parameter {
			continue
		}
		if alert.FiredAt.Before(q.Since) {
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}
