package notify

import (
	"context"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarms "hydro-dashboard/internal/alarms/domain"
)

// MultiNotifier dispatches alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []alarmapp.AlertNotifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil entries are skipped.
func NewMultiNotifier(notifiers ...alarmapp.AlertNotifier) *MultiNotifier {
	kept := make([]alarmapp.AlertNotifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			kept = append(kept, notifier)
		}
	}
	return &MultiNotifier{notifiers: kept}
}

// Notify forwards alerts to all notifiers in order.
func (m *MultiNotifier) Notify(ctx context.Context, alert alarms.Alert) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		notifier.Notify(ctx, alert)
	}
}

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int {
	if m == nil {
		return 0
	}
	return len(m.notifiers)
}
