package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientGetAddsAuthAndSuffix(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.URL.Query().Get("auth")
		_, _ = w.Write([]byte(`{"ph":6.1,"tds":900}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", "s3cret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	var out map[string]float64
	if err := client.Get(context.Background(), "/sensor", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotPath != "/sensor.json" {
		t.Fatalf("expected /sensor.json, got %s", gotPath)
	}
	if gotAuth != "s3cret" {
		t.Fatalf("expected auth query, got %q", gotAuth)
	}
	if out["ph"] != 6.1 || out["tds"] != 900 {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestClientPatchSendsBody(t *testing.T) {
	var method string
	var body map[string]int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"pump_state":1}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Patch(context.Background(), "pump_state", map[string]int{"pump_state": 1}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if method != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", method)
	}
	if body["pump_state"] != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/locked.json" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid data; couldn't parse JSON object"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "x")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Get(context.Background(), "locked", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	err = client.Put(context.Background(), "bad", map[string]any{"a": 1})
	if err == nil || err.Error() != "rtdb: http 400: Invalid data; couldn't parse JSON object" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := NewClient("", ""); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestStreamDeliversPutAndPatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			"event: put\ndata: {\"path\":\"/\",\"data\":{\"ph\":6.0}}\n\n",
			"event: keep-alive\ndata: null\n\n",
			"event: patch\ndata: {\"path\":\"/\",\"data\":{\"tds\":950}}\n\n",
			"event: put\ndata: {\"path\":\"/ph\",\"data\":6.2}\n\n",
		}
		for _, frame := range frames {
			_, _ = io.WriteString(w, frame)
			flusher.Flush()
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	var events []Event
	err = client.Stream(context.Background(), "sensor", func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != EventPut || events[0].Path != "/" || string(events[0].Data) != `{"ph":6.0}` {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Type != EventPatch {
		t.Fatalf("expected patch, got %s", events[1].Type)
	}
	if events[2].Path != "/ph" || string(events[2].Data) != "6.2" {
		t.Fatalf("unexpected sub-path event %+v", events[2])
	}
}

func TestStreamServerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "event: cancel\ndata: null\n\n")
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	err := client.Stream(context.Background(), "sensor", func(Event) error { return nil })
	if !errors.Is(err, ErrStreamCanceled) {
		t.Fatalf("expected ErrStreamCanceled, got %v", err)
	}
}

func TestStreamStopsOnContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: put\ndata: {\"path\":\"/\",\"data\":null}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Stream(ctx, "sensor", func(Event) error {
			cancel()
			return nil
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop on cancel")
	}
}

func TestStreamHandlerErrorStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "event: put\ndata: {\"path\":\"/\",\"data\":1}\n\n")
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	want := fmt.Errorf("stop")
	err := client.Stream(context.Background(), "sensor", func(Event) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
}
