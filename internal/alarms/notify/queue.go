package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarms "hydro-dashboard/internal/alarms/domain"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
)

const defaultQueueSize = 64

// Queue hands alerts to a single delivery worker so callers never block on I/O.
// Alerts are delivered in enqueue order; a full queue drops the alert.
type Queue struct {
	next   alarmapp.AlertNotifier
	ch     chan alarms.Alert
	logger *zap.SugaredLogger
	done   chan struct{}
	once   sync.Once
}

// NewQueue constructs a queue in front of next.
func NewQueue(next alarmapp.AlertNotifier, size int, logger *zap.SugaredLogger) (*Queue, error) {
	if next == nil {
		return nil, errors.New("alert queue: nil notifier")
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		next:   next,
		ch:     make(chan alarms.Alert, size),
		logger: hlog.OrNop(logger),
		done:   make(chan struct{}),
	}, nil
}

// Notify enqueues alert without blocking.
func (q *Queue) Notify(_ context.Context, alert alarms.Alert) {
	if q == nil {
		return
	}
	select {
	case <-q.done:
		metrics.IncAlertDropped()
	case q.ch <- alert:
	default:
		metrics.IncAlertDropped()
		q.logger.Warnw("alert queue full, dropping alert", "alert_id", alert.ID, "parameter", alert.Parameter)
	}
}

// Run delivers queued alerts until ctx is done.
func (q *Queue) Run(ctx context.Context) {
	defer q.once.Do(func() { close(q.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-q.ch:
			q.next.Notify(ctx, alert)
		}
	}
}

// Pending returns the number of queued alerts.
func (q *Queue) Pending() int {
	return len(q.ch)
}
