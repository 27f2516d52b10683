package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	commands "hydro-dashboard/internal/commands/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS pump_commands (
	command_id TEXT PRIMARY KEY,
	state SMALLINT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	sent_at TIMESTAMPTZ,
	acked_at TIMESTAMPTZ,
	error TEXT
)`,
	`CREATE INDEX IF NOT EXISTS pump_commands_idem_idx ON pump_commands (idempotency_key, created_at)`,
	`CREATE INDEX IF NOT EXISTS pump_commands_created_idx ON pump_commands (created_at DESC)`,
}

// CommandRepository is a Postgres implementation for pump commands.
type CommandRepository struct {
	db *sql.DB
}

// NewCommandRepository constructs a repository.
func NewCommandRepository(db *sql.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// EnsureSchema creates the pump_commands table when missing.
func (r *CommandRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("command repo: nil db")
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// FindByIdempotencyKey finds a command by idempotency key created at or after since.
func (r *CommandRepository) FindByIdempotencyKey(ctx context.Context, key string, since time.Time) (*commands.PumpCommand, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("command repo: nil db")
	}
	if key == "" {
		return nil, errors.New("command repo: invalid idempotency query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT command_id, state, actor, idempotency_key, status, created_at, sent_at, acked_at, error
FROM pump_commands
WHERE idempotency_key = $1 AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1`, key, since)
	return scanCommand(row)
}

// Create inserts a command.
func (r *CommandRepository) Create(ctx context.Context, cmd *commands.PumpCommand) error {
	if r == nil || r.db == nil {
		return errors.New("command repo: nil db")
	}
	if cmd == nil {
		return errors.New("command repo: nil command")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pump_commands (
	command_id, state, actor, idempotency_key, status, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)`, cmd.CommandID, int(cmd.State), cmd.Actor, cmd.IdempotencyKey, cmd.Status, cmd.CreatedAt)
	return err
}

// MarkSent marks command as sent.
func (r *CommandRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return r.exec(ctx, `
UPDATE pump_commands
SET status = $1, sent_at = $2
WHERE command_id = $3`, commands.StatusSent, sentAt, id)
}

// MarkAcked marks command as acked.
func (r *CommandRepository) MarkAcked(ctx context.Context, id string, ackedAt time.Time) error {
	return r.exec(ctx, `
UPDATE pump_commands
SET status = $1, acked_at = $2
WHERE command_id = $3`, commands.StatusAcked, ackedAt, id)
}

// MarkFailed marks command as failed.
func (r *CommandRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, `
UPDATE pump_commands
SET status = $1, error = $2
WHERE command_id = $3`, commands.StatusFailed, errMsg, id)
}

// ListRecent lists the newest commands first.
func (r *CommandRepository) ListRecent(ctx context.Context, limit int) ([]commands.PumpCommand, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("command repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT command_id, state, actor, idempotency_key, status, created_at, sent_at, acked_at, error
FROM pump_commands
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]commands.PumpCommand, 0, limit)
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *CommandRepository) exec(ctx context.Context, query string, args ...any) error {
	if r == nil || r.db == nil {
		return errors.New("command repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*commands.PumpCommand, error) {
	var cmd commands.PumpCommand
	var state int
	var sentAt sql.NullTime
	var ackedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(
		&cmd.CommandID,
		&state,
		&cmd.Actor,
		&cmd.IdempotencyKey,
		&cmd.Status,
		&cmd.CreatedAt,
		&sentAt,
		&ackedAt,
		&errMsg,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	cmd.State = sensors.PumpState(state)
	if sentAt.Valid {
		cmd.SentAt = sentAt.Time.UTC()
	}
	if ackedAt.Valid {
		cmd.AckedAt = ackedAt.Time.UTC()
	}
	if errMsg.Valid {
		cmd.Error = errMsg.String
	}
	cmd.CreatedAt = cmd.CreatedAt.UTC()
	return &cmd, nil
}
