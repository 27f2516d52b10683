package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

// Getter reads a database node.
type Getter interface {
	Get(ctx context.Context, path string, out any) error
}

// Patcher merges values into a database node.
type Patcher interface {
	Patch(ctx context.Context, path string, body any) error
}

// History fetches full history snapshots.
type History struct {
	client Getter
	path   string
	logger *zap.SugaredLogger
}

// NewHistory constructs a history reader on path (DefaultHistoryPath when empty).
func NewHistory(client Getter, path string, logger *zap.SugaredLogger) (*History, error) {
	if client == nil {
		return nil, errors.New("history reader: nil client")
	}
	if path == "" {
		path = DefaultHistoryPath
	}
	return &History{client: client, path: path, logger: hlog.OrNop(logger)}, nil
}

// Fetch returns the validated snapshot. A missing node yields an empty log.
func (h *History) Fetch(ctx context.Context) (sensors.HistoryLog, error) {
	var raw map[string]json.RawMessage
	if err := h.client.Get(ctx, h.path, &raw); err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	log, issues := DecodeHistory(raw)
	for _, issue := range issues {
		metrics.IncDecodeIssue(issue.Reason)
	}
	if len(issues) > 0 {
		h.logger.Warnw("history entries dropped during decode", "issues", len(issues), "kept", len(log), "first_key", issues[0].Key, "first_reason", issues[0].Reason)
	}
	return log, nil
}

// PumpSink writes pump commands to the pump node.
type PumpSink struct {
	client Patcher
	path   string
}

// NewPumpSink constructs a pump sink on path (DefaultPumpPath when empty).
func NewPumpSink(client Patcher, path string) (*PumpSink, error) {
	if client == nil {
		return nil, errors.New("pump sink: nil client")
	}
	if path == "" {
		path = DefaultPumpPath
	}
	return &PumpSink{client: client, path: path}, nil
}

// SetPumpState writes {"pump_state": 0|1}.
func (p *PumpSink) SetPumpState(ctx context.Context, state sensors.PumpState) error {
	if !state.Valid() {
		return fmt.Errorf("pump sink: invalid state %d", state)
	}
	return p.client.Patch(ctx, p.path, map[string]int{sensors.FieldPumpState: int(state)})
}
