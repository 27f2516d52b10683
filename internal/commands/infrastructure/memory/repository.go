package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	commands "hydro-dashboard/internal/commands/domain"
)

// DefaultCapacity bounds the in-memory history.
const DefaultCapacity = 1000

// CommandRepository keeps recent pump commands in memory.
type CommandRepository struct {
	mu       sync.Mutex
	capacity int
	order    []string
	byID     map[string]*commands.PumpCommand
}

// NewCommandRepository constructs a repository holding at most capacity commands.
func NewCommandRepository(capacity int) *CommandRepository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CommandRepository{capacity: capacity, byID: make(map[string]*commands.PumpCommand)}
}

// FindByIdempotencyKey returns the newest command with key created at or after since.
func (r *CommandRepository) FindByIdempotencyKey(_ context.Context, key string, since time.Time) (*commands.PumpCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		cmd := r.byID[r.order[i]]
		if cmd.IdempotencyKey == key && !cmd.CreatedAt.Before(since) {
			copied := *cmd
			return &copied, nil
		}
	}
	return nil, nil
}

// Create stores a copy of cmd, evicting the oldest entry when full.
func (r *CommandRepository) Create(_ context.Context, cmd *commands.PumpCommand) error {
	if cmd == nil {
		return errors.New("command repo: nil command")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[cmd.CommandID]; exists {
		return errors.New("command repo: duplicate command id")
	}
	copied := *cmd
	r.byID[cmd.CommandID] = &copied
	r.order = append(r.order, cmd.CommandID)
	if len(r.order) > r.capacity {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

// MarkSent marks command as sent.
func (r *CommandRepository) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	return r.update(id, func(cmd *commands.PumpCommand) {
		cmd.Status = commands.StatusSent
		cmd.SentAt = sentAt
	})
}

// MarkAcked marks command as acked.
func (r *CommandRepository) MarkAcked(_ context.Context, id string, ackedAt time.Time) error {
	return r.update(id, func(cmd *commands.PumpCommand) {
		cmd.Status = commands.StatusAcked
		cmd.AckedAt = ackedAt
	})
}

// MarkFailed marks command as failed.
func (r *CommandRepository) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(cmd *commands.PumpCommand) {
		cmd.Status = commands.StatusFailed
		cmd.Error = errMsg
	})
}

// ListRecent returns up to limit commands, newest first.
func (r *CommandRepository) ListRecent(_ context.Context, limit int) ([]commands.PumpCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]commands.PumpCommand, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.byID[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *CommandRepository) update(id string, fn func(*commands.PumpCommand)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.byID[id]
	if !ok {
		return errors.New("command repo: command not found")
	}
	fn(cmd)
	return nil
}
