package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	"hydro-dashboard/internal/rtdb"
	sensors "hydro-dashboard/internal/sensors/domain"
)

const (
	DefaultSensorPath  = "sensor"
	DefaultHistoryPath = "history"
	DefaultPumpPath    = "pump_state"
)

// Streamer subscribes to a database node.
type Streamer interface {
	Stream(ctx context.Context, path string, fn func(rtdb.Event) error) error
}

// Clock stamps live readings that carry no timestamp.
type Clock interface {
	Now() time.Time
}

// Feed turns the live sensor node into a stream of decoded readings.
type Feed struct {
	client Streamer
	path   string
	clock  Clock
	logger *zap.SugaredLogger
}

// FeedOption configures the feed.
type FeedOption func(*Feed)

// WithFeedClock overrides the clock.
func WithFeedClock(clock Clock) FeedOption {
	return func(f *Feed) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// WithFeedLogger sets the logger.
func WithFeedLogger(logger *zap.SugaredLogger) FeedOption {
	return func(f *Feed) {
		f.logger = hlog.OrNop(logger)
	}
}

// NewFeed constructs a feed on path (DefaultSensorPath when empty).
func NewFeed(client Streamer, path string, opts ...FeedOption) (*Feed, error) {
	if client == nil {
		return nil, errors.New("sensor feed: nil client")
	}
	if path == "" {
		path = DefaultSensorPath
	}
	f := &Feed{client: client, path: path, clock: systemClock{}, logger: hlog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Subscribe streams the sensor node and calls fn with the decoded record after
// every change. It blocks until the stream ends and returns the cause.
func (f *Feed) Subscribe(ctx context.Context, fn func(sensors.Reading)) error {
	state := make(map[string]json.RawMessage)
	return f.client.Stream(ctx, f.path, func(ev rtdb.Event) error {
		if !apply(state, ev) {
			metrics.IncDecodeIssue("unsupported_path")
			f.logger.Debugw("ignoring nested sensor update", "path", ev.Path, "type", ev.Type)
			return nil
		}
		reading, issues := DecodeReading(state)
		for _, issue := range issues {
			metrics.IncDecodeIssue(issue.Reason)
			f.logger.Debugw("sensor field dropped", "field", issue.Field, "reason", issue.Reason)
		}
		if reading.Empty() {
			return nil
		}
		if reading.Timestamp.IsZero() {
			reading.Timestamp = f.clock.Now().UTC()
		}
		fn(reading)
		return nil
	})
}

// apply folds a put or patch event into the flat record state.
func apply(state map[string]json.RawMessage, ev rtdb.Event) bool {
	segments := strings.Split(strings.Trim(ev.Path, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		segments = nil
	}
	switch len(segments) {
	case 0:
		var fields map[string]json.RawMessage
		if !isNull(ev.Data) {
			if err := json.Unmarshal(ev.Data, &fields); err != nil {
				return false
			}
		}
		if ev.Type == rtdb.EventPut {
			for k := range state {
				delete(state, k)
			}
		}
		for k, v := range fields {
			if isNull(v) {
				delete(state, k)
				continue
			}
			state[k] = v
		}
		return true
	case 1:
		if isNull(ev.Data) {
			delete(state, segments[0])
			return true
		}
		state[segments[0]] = ev.Data
		return true
	default:
		return false
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
