package application

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	alarmapp "hydro-dashboard/internal/alarms/application"
	"hydro-dashboard/internal/analytics/domain/series"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

const (
	DefaultRefreshInterval = 5 * time.Minute
	DefaultBackoffMin      = time.Second
	DefaultBackoffMax      = time.Minute

	readingBuffer = 16
)

// Stream event names.
const (
	EventReading = "reading"
	EventAlert   = "alert"
	EventFeed    = "feed"
)

var (
	// ErrNotReady indicates the event loop has not started.
	ErrNotReady = errors.New("dashboard: not ready")
	// ErrStopped indicates the event loop has exited.
	ErrStopped = errors.New("dashboard: stopped")
	// ErrUnknownParameter indicates a series request for an unmonitored key.
	ErrUnknownParameter = errors.New("dashboard: unknown parameter")
)

// LiveFeed delivers live readings until the subscription ends.
type LiveFeed interface {
	Subscribe(ctx context.Context, fn func(sensors.Reading)) error
}

// HistorySource returns full history snapshots.
type HistorySource interface {
	Fetch(ctx context.Context) (sensors.HistoryLog, error)
}

// Broadcaster pushes named events to connected clients. It must not block.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Feed connection states.
const (
	FeedConnecting   = "connecting"
	FeedConnected    = "connected"
	FeedDisconnected = "disconnected"
)

// FeedStatus is the live subscription state shown to operators.
type FeedStatus struct {
	State      string    `json:"state"`
	LastError  string    `json:"last_error,omitempty"`
	Since      time.Time `json:"since"`
	Reconnects int       `json:"reconnects"`
}

// ReadingView is a reading with its classifications.
type ReadingView struct {
	Reading         sensors.Reading          `json:"reading"`
	Classifications []sensors.Classification `json:"classifications"`
}

// PastValue is the most recent history value of a parameter.
type PastValue struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// State is a copy of the dashboard state.
type State struct {
	Current        *ReadingView                       `json:"current,omitempty"`
	PastValues     map[sensors.ParameterKey]PastValue `json:"past_values,omitempty"`
	Feed           FeedStatus   `json:"feed"`
	HistoryEntries int          `json:"history_entries"`
	HistoryLoaded  bool         `json:"history_loaded"`
	HistoryAt      time.Time    `json:"history_updated_at"`
}

type seriesRequest struct {
	key         sensors.ParameterKey
	granularity series.Granularity
	reply       chan series.Series
}

type feedUpdate struct {
	state string
	err   error
}

// Controller owns all mutable dashboard state on one goroutine.
type Controller struct {
	feed        LiveFeed
	history     HistorySource
	evaluator   *alarmapp.Evaluator
	aggregator  *series.Aggregator
	notifier    alarmapp.AlertNotifier
	broadcaster Broadcaster
	clock       Clock
	logger      *zap.SugaredLogger

	refreshInterval time.Duration
	backoffMin      time.Duration
	backoffMax      time.Duration
	sleep           func(ctx context.Context, d time.Duration) bool

	readings  chan sensors.Reading
	snapshots chan sensors.HistoryLog
	feedEvts  chan feedUpdate
	seriesReq chan seriesRequest
	stateReq  chan chan State

	running atomic.Bool
	stopped chan struct{}

	// Loop-owned.
	latest       *sensors.Reading
	log          sensors.HistoryLog
	pastValues   map[sensors.ParameterKey]PastValue
	historyAt    time.Time
	historyReady bool
	feedStatus   FeedStatus
}

// Option configures the controller.
type Option func(*Controller)

// WithNotifier delivers fired alerts. It must not block.
func WithNotifier(notifier alarmapp.AlertNotifier) Option {
	return func(c *Controller) {
		c.notifier = notifier
	}
}

// WithBroadcaster pushes events to stream clients.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Controller) {
		c.broadcaster = b
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Controller) {
		c.logger = hlog.OrNop(logger)
	}
}

// WithRefreshInterval sets how often history is refetched. Zero disables refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.refreshInterval = d
		}
	}
}

// WithBackoff sets the feed reconnect delay bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Controller) {
		if min > 0 && max >= min {
			c.backoffMin = min
			c.backoffMax = max
		}
	}
}

// NewController constructs a controller.
func NewController(feed LiveFeed, history HistorySource, evaluator *alarmapp.Evaluator, aggregator *series.Aggregator, opts ...Option) (*Controller, error) {
	if feed == nil {
		return nil, errors.New("dashboard: nil feed")
	}
	if history == nil {
		return nil, errors.New("dashboard: nil history source")
	}
	if evaluator == nil {
		return nil, errors.New("dashboard: nil evaluator")
	}
	if aggregator == nil {
		return nil, errors.New("dashboard: nil aggregator")
	}
	c := &Controller{
		feed:            feed,
		history:         history,
		evaluator:       evaluator,
		aggregator:      aggregator,
		clock:           systemClock{},
		logger:          hlog.Nop(),
		refreshInterval: DefaultRefreshInterval,
		backoffMin:      DefaultBackoffMin,
		backoffMax:      DefaultBackoffMax,
		sleep:           sleepContext,
		readings:        make(chan sensors.Reading, readingBuffer),
		snapshots:       make(chan sensors.HistoryLog, 1),
		feedEvts:        make(chan feedUpdate, 4),
		seriesReq:       make(chan seriesRequest),
		stateReq:        make(chan chan State),
		stopped:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.feedStatus = FeedStatus{State: FeedDisconnected, Since: c.clock.Now()}
	return c, nil
}

// Run starts the feed subscription and history refresh, then serves the event
// loop until ctx is done. Run may be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("dashboard: already running")
	}
	defer close(c.stopped)

	go c.runFeed(ctx)
	go c.runHistory(ctx)

	c.logger.Infow("dashboard loop started", "refresh_interval", c.refreshInterval.String())
	for {
		select {
		case <-ctx.Done():
			c.logger.Infow("dashboard loop stopped")
			return ctx.Err()
		case reading := <-c.readings:
			c.acceptReading(ctx, reading)
		case log := <-c.snapshots:
			c.log = log
			c.pastValues = latestValues(log)
			c.historyAt = c.clock.Now()
			c.historyReady = true
		case update := <-c.feedEvts:
			c.applyFeedUpdate(update)
		case req := <-c.seriesReq:
			req.reply <- c.aggregator.Aggregate(c.log, req.key, req.granularity, c.clock.Now())
		case reply := <-c.stateReq:
			reply <- c.snapshotState()
		}
	}
}

// Series aggregates the current history snapshot.
func (c *Controller) Series(ctx context.Context, key sensors.ParameterKey, g series.Granularity) (series.Series, error) {
	if !key.Known() {
		return series.Series{}, ErrUnknownParameter
	}
	if err := g.Validate(); err != nil {
		return series.Series{}, err
	}
	if !c.running.Load() {
		return series.Series{}, ErrNotReady
	}
	req := seriesRequest{key: key, granularity: g, reply: make(chan series.Series, 1)}
	select {
	case c.seriesReq <- req:
	case <-c.stopped:
		return series.Series{}, ErrStopped
	case <-ctx.Done():
		return series.Series{}, ctx.Err()
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-ctx.Done():
		return series.Series{}, ctx.Err()
	}
}

// Current returns a copy of the dashboard state.
func (c *Controller) Current(ctx context.Context) (State, error) {
	if !c.running.Load() {
		return State{}, ErrNotReady
	}
	reply := make(chan State, 1)
	select {
	case c.stateReq <- reply:
	case <-c.stopped:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
	select {
	case state := <-reply:
		return state, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

func (c *Controller) acceptReading(ctx context.Context, reading sensors.Reading) {
	if c.latest != nil && reading.Timestamp.Before(c.latest.Timestamp) {
		metrics.IncReading("stale")
		c.logger.Debugw("stale reading dropped", "timestamp", reading.Timestamp, "latest", c.latest.Timestamp)
		return
	}
	metrics.IncReading("accepted")
	copied := reading
	c.latest = &copied

	view := ReadingView{Reading: reading, Classifications: presentClassifications(reading)}
	c.broadcast(EventReading, view)

	for _, alert := range c.evaluator.Evaluate(reading, c.clock.Now()) {
		c.logger.Infow("alert fired", "parameter", alert.Parameter, "kind", alert.Kind, "value", alert.Value)
		c.broadcast(EventAlert, alert)
		if c.notifier != nil {
			c.notifier.Notify(ctx, alert)
		}
	}
}

func (c *Controller) applyFeedUpdate(update feedUpdate) {
	if update.state == c.feedStatus.State && update.err == nil {
		return
	}
	status := FeedStatus{State: update.state, Since: c.clock.Now(), Reconnects: c.feedStatus.Reconnects}
	switch {
	case update.err != nil:
		status.LastError = update.err.Error()
	case update.state != FeedConnected:
		status.LastError = c.feedStatus.LastError
	}
	if update.state == FeedDisconnected {
		status.Reconnects++
	}
	c.feedStatus = status
	metrics.SetFeedConnected(status.State == FeedConnected)
	c.broadcast(EventFeed, status)
}

func (c *Controller) snapshotState() State {
	state := State{
		Feed:           c.feedStatus,
		HistoryEntries: len(c.log),
		HistoryLoaded:  c.historyReady,
		HistoryAt:      c.historyAt,
	}
	if c.latest != nil {
		state.Current = &ReadingView{Reading: *c.latest, Classifications: presentClassifications(*c.latest)}
	}
	if len(c.pastValues) > 0 {
		state.PastValues = make(map[sensors.ParameterKey]PastValue, len(c.pastValues))
		for key, v := range c.pastValues {
			state.PastValues[key] = v
		}
	}
	return state
}

// latestValues picks, per parameter, the newest history entry carrying it.
func latestValues(log sensors.HistoryLog) map[sensors.ParameterKey]PastValue {
	out := make(map[sensors.ParameterKey]PastValue)
	entries := log.Sorted()
	for i := len(entries) - 1; i >= 0; i-- {
		for _, key := range sensors.Keys() {
			if _, ok := out[key]; ok {
				continue
			}
			if v, ok := entries[i].Reading.Value(key); ok {
				out[key] = PastValue{Value: v, At: time.Unix(entries[i].At, 0).UTC()}
			}
		}
		if len(out) == len(sensors.Keys()) {
			break
		}
	}
	return out
}

func (c *Controller) broadcast(event string, payload any) {
	if c.broadcaster != nil {
		c.broadcaster.Broadcast(event, payload)
	}
}

// runFeed keeps the live subscription open, reconnecting with capped
// exponential backoff. The delay resets after a session that delivered data.
func (c *Controller) runFeed(ctx context.Context) {
	backoff := c.backoffMin
	for {
		c.pushFeed(ctx, feedUpdate{state: FeedConnecting})
		delivered := false
		err := c.feed.Subscribe(ctx, func(reading sensors.Reading) {
			if !delivered {
				delivered = true
				c.pushFeed(ctx, feedUpdate{state: FeedConnected})
			}
			select {
			case c.readings <- reading:
			case <-ctx.Done():
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("feed ended")
		}
		c.pushFeed(ctx, feedUpdate{state: FeedDisconnected, err: err})
		metrics.IncFeedReconnect()
		if delivered {
			backoff = c.backoffMin
		}
		c.logger.Warnw("live feed disconnected", "error", err, "retry_in", backoff.String())
		if !c.sleep(ctx, backoff) {
			return
		}
		backoff *= 2
		if backoff > c.backoffMax {
			backoff = c.backoffMax
		}
	}
}

func (c *Controller) pushFeed(ctx context.Context, update feedUpdate) {
	select {
	case c.feedEvts <- update:
	case <-ctx.Done():
	}
}

// runHistory fetches the history immediately and then on every tick.
func (c *Controller) runHistory(ctx context.Context) {
	c.refreshHistory(ctx)
	if c.refreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshHistory(ctx)
		}
	}
}

func (c *Controller) refreshHistory(ctx context.Context) {
	started := time.Now()
	log, err := c.history.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.ObserveHistoryRefresh(metrics.ResultError, 0, time.Since(started))
		c.logger.Warnw("history refresh failed", "error", err)
		return
	}
	metrics.ObserveHistoryRefresh(metrics.ResultSuccess, len(log), time.Since(started))
	select {
	case c.snapshots <- log:
	case <-ctx.Done():
	}
}

func presentClassifications(reading sensors.Reading) []sensors.Classification {
	out := make([]sensors.Classification, 0, len(sensors.Keys()))
	for _, key := range sensors.Keys() {
		value, ok := reading.Value(key)
		if !ok {
			continue
		}
		out = append(out, sensors.Classify(key, &value))
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
