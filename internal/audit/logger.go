package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// LogWriter writes audit entries to the structured log. Used when no
// database is configured.
type LogWriter struct {
	logger *zap.SugaredLogger
}

// NewLogWriter constructs a log-backed audit logger.
func NewLogWriter(logger *zap.SugaredLogger) (*LogWriter, error) {
	if logger == nil {
		return nil, errors.New("audit: nil logger")
	}
	return &LogWriter{logger: logger.Named("audit")}, nil
}

// Log writes entry as one info line.
func (w *LogWriter) Log(_ context.Context, entry Entry) error {
	entry = prepare(entry, time.Now().UTC())
	w.logger.Infow(entry.Action,
		"id", entry.ID,
		"actor", entry.Actor,
		"role", entry.Role,
		"resource_type", entry.ResourceType,
		"resource_id", entry.ResourceID,
		"metadata", string(entry.Metadata),
		"payload_digest", entry.PayloadDigest,
		"ip", entry.IP,
		"user_agent", entry.UserAgent,
		"created_at", entry.CreatedAt,
	)
	return nil
}
