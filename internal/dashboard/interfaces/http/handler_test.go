package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"

	"hydro-dashboard/internal/analytics/domain/series"
	dashboard "hydro-dashboard/internal/dashboard/application"
	sensors "hydro-dashboard/internal/sensors/domain"
)

type fakeDashboard struct {
	state     dashboard.State
	series    series.Series
	err       error
	gotKey    sensors.ParameterKey
	gotGranul series.Granularity
}

func (f *fakeDashboard) Current(context.Context) (dashboard.State, error) {
	return f.state, f.err
}

func (f *fakeDashboard) Series(_ context.Context, key sensors.ParameterKey, g series.Granularity) (series.Series, error) {
	f.gotKey = key
	f.gotGranul = g
	return f.series, f.err
}

func newRouter(t *testing.T, d Dashboard) *mux.Router {
	t.Helper()
	h, err := NewHandler(d, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	h.now = func() time.Time { return time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC) }
	router := mux.NewRouter()
	h.Register(router)
	return router
}

func serve(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestParametersListsSpecs(t *testing.T) {
	rec := serve(newRouter(t, &fakeDashboard{}), "/api/v1/parameters")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var specs []sensors.ParameterSpec
	if err := json.Unmarshal(rec.Body.Bytes(), &specs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(specs) != len(sensors.Keys()) {
		t.Fatalf("expected %d specs, got %d", len(sensors.Keys()), len(specs))
	}
}

func TestCurrentNotReady(t *testing.T) {
	rec := serve(newRouter(t, &fakeDashboard{err: dashboard.ErrNotReady}), "/api/v1/readings/current")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	router := newRouter(t, &fakeDashboard{})

	rec := serve(router, "/api/v1/classify?parameter=ph&value=7.1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got sensors.Classification
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != sensors.StatusTooHigh {
		t.Fatalf("expected too_high, got %s", got.Status)
	}

	rec = serve(router, "/api/v1/classify?parameter=ph")
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != sensors.StatusUnknown {
		t.Fatalf("expected unknown for missing value, got %s", got.Status)
	}

	if rec := serve(router, "/api/v1/classify?parameter=ph&value=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad value, got %d", rec.Code)
	}
	rec = serve(router, "/api/v1/classify?parameter=ec&value=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown parameter, got %d", rec.Code)
	}
	got = sensors.Classification{}
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != sensors.StatusUnknown || got.Implication != "Not applicable" {
		t.Fatalf("expected not applicable result, got %+v", got)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	d := &fakeDashboard{series: series.Series{
		Parameter:   sensors.ParamPH,
		Granularity: "daily",
		Points:      []series.Point{{Label: "DAY 1, 2025-04-06", Value: 6.1, Count: 3}},
	}}
	router := newRouter(t, d)

	rec := serve(router, "/api/v1/series?parameter=ph&granularity=daily")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if d.gotKey != sensors.ParamPH || d.gotGranul != series.Daily {
		t.Fatalf("unexpected request %s %+v", d.gotKey, d.gotGranul)
	}

	rec = serve(router, "/api/v1/series?parameter=ph&granularity=daily&format=msgpack")
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var decoded map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	if decoded["parameter"] != "ph" {
		t.Fatalf("expected json tag names in msgpack, got %v", decoded)
	}

	serve(router, "/api/v1/series?parameter=ph")
	if d.gotGranul != series.Last24Hours {
		t.Fatalf("expected default granularity, got %+v", d.gotGranul)
	}

	if rec := serve(router, "/api/v1/series?parameter=ph&granularity=monthly"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad granularity, got %d", rec.Code)
	}
	if rec := serve(router, "/api/v1/series?granularity=daily"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing parameter, got %d", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	d := &fakeDashboard{series: series.Series{
		Parameter:   sensors.ParamTDS,
		Granularity: "daily",
		Points:      []series.Point{{Label: "DAY 1, 2025-04-06", Value: 900, Count: 2}},
	}}
	rec := serve(newRouter(t, d), "/api/v1/exports/series.csv?parameter=tds&granularity=daily")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "tds_daily.csv") {
		t.Fatalf("unexpected disposition %s", cd)
	}
	if !strings.Contains(rec.Body.String(), "DAY 1, 2025-04-06") {
		t.Fatalf("missing point row: %s", rec.Body.String())
	}
	if rec := serve(newRouter(t, d), "/api/v1/exports/series.doc?parameter=tds"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown format, got %d", rec.Code)
	}
}

func TestStreamDeliversBroadcasts(t *testing.T) {
	broker := NewBroker(nil)
	server := httptest.NewServer(NewStreamHandler(broker, time.Hour))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readFrame := func() []string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}

	if frame := readFrame(); frame[0] != "event: ready" {
		t.Fatalf("expected ready frame, got %v", frame)
	}
	broker.Broadcast(dashboard.EventAlert, map[string]string{"parameter": "ph"})
	frame := readFrame()
	if len(frame) != 2 || frame[0] != "event: alert" || frame[1] != `data: {"parameter":"ph"}` {
		t.Fatalf("unexpected frame %v", frame)
	}
	if broker.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", broker.Clients())
	}
}

func TestBrokerDropsForSlowClients(t *testing.T) {
	broker := NewBroker(nil)
	ch := broker.subscribe()
	for i := 0; i < clientBuffer+5; i++ {
		broker.Broadcast(EventCommand, i)
	}
	if len(ch) != clientBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", clientBuffer, len(ch))
	}
	broker.unsubscribe(ch)
	broker.unsubscribe(ch)
	if broker.Clients() != 0 {
		t.Fatalf("expected no clients")
	}
	var nilBroker *Broker
	nilBroker.Broadcast(EventCommand, 1)
}

func TestBrokerBroadcastDuringChurn(t *testing.T) {
	broker := NewBroker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ch := broker.subscribe()
				broker.unsubscribe(ch)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				broker.Broadcast(EventCommand, j)
			}
		}()
	}
	wg.Wait()
	if broker.Clients() != 0 {
		t.Fatalf("expected no clients, got %d", broker.Clients())
	}
}
