package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"hydro-dashboard/internal/audit"
	commandsevents "hydro-dashboard/internal/commands/application/events"
	commands "hydro-dashboard/internal/commands/domain"
	"hydro-dashboard/internal/commands/infrastructure/memory"
	sensors "hydro-dashboard/internal/sensors/domain"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeSink struct {
	states []sensors.PumpState
	err    error
}

func (f *fakeSink) SetPumpState(_ context.Context, state sensors.PumpState) error {
	f.states = append(f.states, state)
	return f.err
}

type recordingAudit struct{ entries []audit.Entry }

func (r *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type recordingPublisher struct{ events []any }

func (r *recordingPublisher) Publish(_ context.Context, event any) error {
	r.events = append(r.events, event)
	return nil
}

func newTestService(t *testing.T, sink PumpSink, opts ...Option) (*Service, *memory.CommandRepository) {
	t.Helper()
	repo := memory.NewCommandRepository(10)
	svc, err := NewService(repo, sink, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestIssueSendsOnceAndAcks(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)}
	sink := &fakeSink{}
	auditLog := &recordingAudit{}
	publisher := &recordingPublisher{}
	svc, _ := newTestService(t, sink, WithClock(clock), WithAuditLogger(auditLog), WithPublisher(publisher))

	cmd, err := svc.Issue(context.Background(), IssueRequest{State: "on", Actor: "Ana", Role: "operator", IP: "192.0.2.1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if cmd.Status != commands.StatusAcked || cmd.State != sensors.PumpOn || cmd.Actor != "Ana" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if len(sink.states) != 1 || sink.states[0] != sensors.PumpOn {
		t.Fatalf("expected one ON write, got %v", sink.states)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "pump.set" || auditLog.entries[0].ResourceID != cmd.CommandID {
		t.Fatalf("unexpected audit entries %+v", auditLog.entries)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("expected issued and acked events, got %d", len(publisher.events))
	}
	if _, ok := publisher.events[1].(commandsevents.PumpCommandAcked); !ok {
		t.Fatalf("expected acked event, got %T", publisher.events[1])
	}

	list, err := svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != commands.StatusAcked || list[0].AckedAt.IsZero() {
		t.Fatalf("unexpected history %+v", list)
	}
}

func TestIssueIdempotencyWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)}
	sink := &fakeSink{}
	svc, _ := newTestService(t, sink, WithClock(clock))

	first, err := svc.Issue(context.Background(), IssueRequest{State: "off", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.now = clock.now.Add(9 * time.Minute)
	again, err := svc.Issue(context.Background(), IssueRequest{State: "off", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if again.CommandID != first.CommandID || len(sink.states) != 1 {
		t.Fatalf("expected repeat to reuse command, got %s vs %s, writes %d", again.CommandID, first.CommandID, len(sink.states))
	}

	clock.now = clock.now.Add(2 * time.Minute)
	later, err := svc.Issue(context.Background(), IssueRequest{State: "off", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("after ttl: %v", err)
	}
	if later.CommandID == first.CommandID || len(sink.states) != 2 {
		t.Fatalf("expected a new command after the ttl")
	}
}

func TestIssueReplayOfFailedCommandKeepsFailing(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)}
	sink := &fakeSink{err: errors.New("rtdb: http 503")}
	svc, _ := newTestService(t, sink, WithClock(clock))

	first, err := svc.Issue(context.Background(), IssueRequest{State: "on", IdempotencyKey: "k1"})
	if !errors.Is(err, ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
	clock.now = clock.now.Add(time.Minute)
	again, err := svc.Issue(context.Background(), IssueRequest{State: "on", IdempotencyKey: "k1"})
	if !errors.Is(err, ErrSinkFailed) {
		t.Fatalf("expected replay to fail again, got %v", err)
	}
	if again == nil || again.CommandID != first.CommandID || again.Status != commands.StatusFailed {
		t.Fatalf("expected the failed command back, got %+v", again)
	}
	if len(sink.states) != 1 {
		t.Fatalf("expected a single write, got %d", len(sink.states))
	}
}

func TestIssueWithoutKeyNeverDedupes(t *testing.T) {
	sink := &fakeSink{}
	svc, _ := newTestService(t, sink)
	for i := 0; i < 2; i++ {
		if _, err := svc.Issue(context.Background(), IssueRequest{State: "1"}); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	if len(sink.states) != 2 {
		t.Fatalf("expected two writes, got %d", len(sink.states))
	}
}

func TestIssueSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("rtdb: http 401")}
	publisher := &recordingPublisher{}
	svc, repo := newTestService(t, sink, WithPublisher(publisher))

	cmd, err := svc.Issue(context.Background(), IssueRequest{State: "on"})
	if !errors.Is(err, ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
	if cmd == nil || cmd.Status != commands.StatusFailed || cmd.Error != "rtdb: http 401" {
		t.Fatalf("unexpected command %+v", cmd)
	}
	stored, _ := repo.ListRecent(context.Background(), 1)
	if len(stored) != 1 || stored[0].Status != commands.StatusFailed {
		t.Fatalf("expected failure recorded, got %+v", stored)
	}
	if _, ok := publisher.events[len(publisher.events)-1].(commandsevents.PumpCommandFailed); !ok {
		t.Fatalf("expected failed event")
	}
	if len(sink.states) != 1 {
		t.Fatalf("expected no retry, got %d writes", len(sink.states))
	}
}

func TestIssueRejectsInvalidState(t *testing.T) {
	sink := &fakeSink{}
	svc, _ := newTestService(t, sink)
	if _, err := svc.Issue(context.Background(), IssueRequest{State: "maybe"}); !errors.Is(err, commands.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if len(sink.states) != 0 {
		t.Fatalf("expected no write")
	}
	if _, err := NewService(nil, sink); err == nil {
		t.Fatalf("expected nil repo error")
	}
}
