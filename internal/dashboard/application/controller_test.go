package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarms "hydro-dashboard/internal/alarms/domain"
	"hydro-dashboard/internal/analytics/domain/series"
	sensors "hydro-dashboard/internal/sensors/domain"
)

type session struct {
	readings []sensors.Reading
	err      error
}

type fakeFeed struct {
	mu       sync.Mutex
	sessions []session
	calls    int
}

func (f *fakeFeed) Subscribe(ctx context.Context, fn func(sensors.Reading)) error {
	f.mu.Lock()
	f.calls++
	if len(f.sessions) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	next := f.sessions[0]
	f.sessions = f.sessions[1:]
	f.mu.Unlock()

	for _, r := range next.readings {
		fn(r)
	}
	return next.err
}

type fakeHistory struct {
	log sensors.HistoryLog
	err error
}

func (f fakeHistory) Fetch(context.Context) (sensors.HistoryLog, error) {
	return f.log, f.err
}

type recordedEvent struct {
	name    string
	payload any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingBroadcaster) Broadcast(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, payload: payload})
}

func (r *recordingBroadcaster) named(name string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, ev := range r.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alarms.Alert
}

func (r *recordingNotifier) Notify(_ context.Context, alert alarms.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Unix(series.DefaultEpoch+24*3600, 0).UTC()

func reading(at time.Time, ph float64) sensors.Reading {
	return sensors.Reading{Timestamp: at, PH: sensors.Float(ph)}
}

func newTestController(t *testing.T, feed LiveFeed, history HistorySource, opts ...Option) *Controller {
	t.Helper()
	evaluator, err := alarmapp.NewEvaluator(alarmapp.NewDeduplicator(alarmapp.DefaultCooldown))
	if err != nil {
		t.Fatalf("evaluator: %v", err)
	}
	opts = append([]Option{WithClock(fixedClock{now: testNow}), WithRefreshInterval(0)}, opts...)
	c, err := NewController(feed, history, evaluator, series.NewAggregator(), opts...)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return c
}

func start(t *testing.T, c *Controller) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	eventually(t, func() bool {
		_, err := c.Current(context.Background())
		return err == nil
	})
	return cancel
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestControllerDropsStaleReadings(t *testing.T) {
	feed := &fakeFeed{sessions: []session{{readings: []sensors.Reading{
		reading(testNow.Add(-time.Minute), 6.0),
		reading(testNow.Add(-2*time.Minute), 6.4),
		reading(testNow, 6.1),
	}}}}
	broadcaster := &recordingBroadcaster{}
	c := newTestController(t, feed, fakeHistory{}, WithBroadcaster(broadcaster))
	start(t, c)

	eventually(t, func() bool {
		state, err := c.Current(context.Background())
		return err == nil && state.Current != nil && state.Current.Reading.Timestamp.Equal(testNow)
	})
	if got := len(broadcaster.named(EventReading)); got != 2 {
		t.Fatalf("expected 2 broadcast readings, got %d", got)
	}
	state, _ := c.Current(context.Background())
	if len(state.Current.Classifications) != 1 || state.Current.Classifications[0].Status != sensors.StatusSatisfactory {
		t.Fatalf("unexpected classifications %+v", state.Current.Classifications)
	}
}

func TestControllerAlertsAreDeduplicated(t *testing.T) {
	feed := &fakeFeed{sessions: []session{{readings: []sensors.Reading{
		reading(testNow, 7.0),
		reading(testNow.Add(time.Second), 7.2),
		{Timestamp: testNow.Add(2 * time.Second), PH: sensors.Float(7.3), TDS: sensors.Float(0)},
	}}}}
	broadcaster := &recordingBroadcaster{}
	notifier := &recordingNotifier{}
	c := newTestController(t, feed, fakeHistory{}, WithBroadcaster(broadcaster), WithNotifier(notifier))
	start(t, c)

	eventually(t, func() bool { return len(broadcaster.named(EventReading)) == 3 })
	if notifier.count() != 2 {
		t.Fatalf("expected ph and tds alerts, got %d", notifier.count())
	}
	alertsSent := broadcaster.named(EventAlert)
	if len(alertsSent) != 2 {
		t.Fatalf("expected 2 alert events, got %d", len(alertsSent))
	}
	second := alertsSent[1].payload.(alarms.Alert)
	if second.Parameter != sensors.ParamTDS || second.Kind != alarms.KindSensorError {
		t.Fatalf("unexpected second alert %+v", second)
	}
}

func TestControllerSeriesUsesSnapshot(t *testing.T) {
	now := testNow.Unix()
	history := fakeHistory{log: sensors.HistoryLog{
		now - 1800: reading(time.Unix(now-1800, 0), 6.0),
		now - 7200: reading(time.Unix(now-7200, 0), 6.2),
	}}
	c := newTestController(t, &fakeFeed{}, history)

	if _, err := c.Series(context.Background(), sensors.ParamPH, series.LastHour); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before run, got %v", err)
	}
	start(t, c)
	eventually(t, func() bool {
		state, err := c.Current(context.Background())
		return err == nil && state.HistoryLoaded
	})

	out, err := c.Series(context.Background(), sensors.ParamPH, series.LastHour)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(out.Points) != 1 || out.Points[0].Value != 6.0 {
		t.Fatalf("unexpected points %+v", out.Points)
	}
	out, _ = c.Series(context.Background(), sensors.ParamPH, series.Last24Hours)
	if len(out.Points) != 2 {
		t.Fatalf("expected 2 points in 24h, got %d", len(out.Points))
	}
	if _, err := c.Series(context.Background(), "ec", series.Daily); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	if _, err := c.Series(context.Background(), sensors.ParamPH, series.Rolling(0)); !errors.Is(err, series.ErrInvalidGranularity) {
		t.Fatalf("expected ErrInvalidGranularity, got %v", err)
	}
}

func TestControllerExposesPastValues(t *testing.T) {
	now := testNow.Unix()
	newer := sensors.Reading{Timestamp: time.Unix(now-600, 0), TDS: sensors.Float(700)}
	history := fakeHistory{log: sensors.HistoryLog{
		now - 3600: reading(time.Unix(now-3600, 0), 5.8),
		now - 1800: reading(time.Unix(now-1800, 0), 6.1),
		now - 600:  newer,
	}}
	c := newTestController(t, &fakeFeed{}, history)
	start(t, c)

	var state State
	eventually(t, func() bool {
		var err error
		state, err = c.Current(context.Background())
		return err == nil && state.HistoryLoaded
	})
	ph, ok := state.PastValues[sensors.ParamPH]
	if !ok || ph.Value != 6.1 || ph.At.Unix() != now-1800 {
		t.Fatalf("unexpected past pH %+v", ph)
	}
	if tds := state.PastValues[sensors.ParamTDS]; tds.Value != 700 {
		t.Fatalf("unexpected past TDS %+v", tds)
	}
	if _, ok := state.PastValues[sensors.ParamHumidity]; ok {
		t.Fatalf("expected no past humidity")
	}
}

func TestControllerFeedReconnectBackoff(t *testing.T) {
	boom := errors.New("rtdb: stream closed")
	feed := &fakeFeed{sessions: []session{
		{err: boom},
		{err: boom},
		{readings: []sensors.Reading{reading(testNow, 6.0)}, err: boom},
		{err: boom},
		{readings: []sensors.Reading{reading(testNow.Add(time.Second), 6.0)}},
	}}
	broadcaster := &recordingBroadcaster{}
	c := newTestController(t, feed, fakeHistory{}, WithBroadcaster(broadcaster), WithBackoff(time.Second, 3*time.Second))

	var mu sync.Mutex
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) bool {
		mu.Lock()
		defer mu.Unlock()
		sleeps = append(sleeps, d)
		return true
	}
	start(t, c)

	eventually(t, func() bool {
		state, err := c.Current(context.Background())
		return err == nil && state.Feed.Reconnects == 5 && state.Feed.State == FeedConnecting
	})
	mu.Lock()
	got := append([]time.Duration(nil), sleeps...)
	mu.Unlock()
	want := []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second, time.Second}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	state, _ := c.Current(context.Background())
	if state.Feed.LastError != "feed ended" {
		t.Fatalf("unexpected last error %q", state.Feed.LastError)
	}
	if len(broadcaster.named(EventFeed)) == 0 {
		t.Fatalf("expected feed events")
	}
}

func TestControllerRunOnce(t *testing.T) {
	c := newTestController(t, &fakeFeed{}, fakeHistory{})
	start(t, c)
	if err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected second run to fail")
	}
	if _, err := NewController(nil, fakeHistory{}, nil, nil); err == nil {
		t.Fatalf("expected nil feed error")
	}
}
