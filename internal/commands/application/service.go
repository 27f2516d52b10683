package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hydro-dashboard/internal/audit"
	commandsevents "hydro-dashboard/internal/commands/application/events"
	commands "hydro-dashboard/internal/commands/domain"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

const (
	defaultIdempotencyTTL = 10 * time.Minute
	defaultListLimit      = 50
	maxListLimit          = 500
)

// ErrSinkFailed wraps a rejected pump write.
var ErrSinkFailed = errors.New("commands: pump write failed")

// Repository stores pump commands.
type Repository interface {
	FindByIdempotencyKey(ctx context.Context, key string, since time.Time) (*commands.PumpCommand, error)
	Create(ctx context.Context, cmd *commands.PumpCommand) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkAcked(ctx context.Context, id string, ackedAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	ListRecent(ctx context.Context, limit int) ([]commands.PumpCommand, error)
}

// PumpSink writes the desired pump state to the rig.
type PumpSink interface {
	SetPumpState(ctx context.Context, state sensors.PumpState) error
}

// Publisher receives command lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// IssueRequest represents a pump command request.
type IssueRequest struct {
	State          string `json:"state"`
	IdempotencyKey string `json:"idempotency_key"`
	Actor          string `json:"-"`
	Role           string `json:"-"`
	IP             string `json:"-"`
	UserAgent      string `json:"-"`
}

// Service issues pump commands and lists their history.
type Service struct {
	repo           Repository
	sink           PumpSink
	auditLogger    audit.Logger
	publisher      Publisher
	clock          Clock
	logger         *zap.SugaredLogger
	idempotencyTTL time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithAuditLogger records an audit entry per issued command.
func WithAuditLogger(logger audit.Logger) Option {
	return func(s *Service) {
		s.auditLogger = logger
	}
}

// WithPublisher forwards lifecycle events.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		s.logger = hlog.OrNop(logger)
	}
}

// NewService constructs a command service.
func NewService(repo Repository, sink PumpSink, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("commands: nil repo")
	}
	if sink == nil {
		return nil, errors.New("commands: nil pump sink")
	}
	s := &Service{
		repo:           repo,
		sink:           sink,
		clock:          systemClock{},
		logger:         hlog.Nop(),
		idempotencyTTL: defaultIdempotencyTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue records the command and writes it to the pump once. A repeated
// idempotency key within the TTL returns the earlier command untouched,
// with ErrSinkFailed again when that command failed.
// A rejected write marks the command failed and returns ErrSinkFailed.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*commands.PumpCommand, error) {
	state, err := commands.ParseState(req.State)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	key := req.IdempotencyKey
	if key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, key, now.Add(-s.idempotencyTTL))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Status == commands.StatusFailed {
				return existing, fmt.Errorf("%w: %s", ErrSinkFailed, existing.Error)
			}
			return existing, nil
		}
	} else {
		key = uuid.NewString()
	}

	cmd := &commands.PumpCommand{
		CommandID:      "cmd-" + buildShortID(key+now.Format(time.RFC3339Nano)),
		State:          state,
		Actor:          req.Actor,
		IdempotencyKey: key,
		Status:         commands.StatusCreated,
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, cmd); err != nil {
		return nil, err
	}
	metrics.IncCommandIssued()
	s.publish(ctx, commandsevents.PumpCommandIssued{CommandID: cmd.CommandID, State: state, Actor: req.Actor, OccurredAt: now})
	s.logAudit(ctx, req, cmd)

	sendErr := s.sink.SetPumpState(ctx, state)
	done := s.clock.Now().UTC()
	if sendErr != nil {
		cmd.Status = commands.StatusFailed
		cmd.Error = sendErr.Error()
		if err := s.repo.MarkFailed(ctx, cmd.CommandID, cmd.Error); err != nil {
			s.logger.Warnw("mark command failed", "command_id", cmd.CommandID, "error", err)
		}
		metrics.IncCommandResult(metrics.CommandResultFailed)
		s.publish(ctx, commandsevents.PumpCommandFailed{CommandID: cmd.CommandID, State: state, Error: cmd.Error, OccurredAt: done})
		s.logger.Warnw("pump command rejected", "command_id", cmd.CommandID, "state", state.String(), "error", sendErr)
		return cmd, fmt.Errorf("%w: %v", ErrSinkFailed, sendErr)
	}

	// The store acknowledges the write synchronously, so sent and acked coincide.
	cmd.Status = commands.StatusAcked
	cmd.SentAt = done
	cmd.AckedAt = done
	if err := s.repo.MarkSent(ctx, cmd.CommandID, done); err != nil {
		s.logger.Warnw("mark command sent", "command_id", cmd.CommandID, "error", err)
	}
	if err := s.repo.MarkAcked(ctx, cmd.CommandID, done); err != nil {
		s.logger.Warnw("mark command acked", "command_id", cmd.CommandID, "error", err)
	}
	metrics.IncCommandResult(metrics.CommandResultAcked)
	s.publish(ctx, commandsevents.PumpCommandAcked{CommandID: cmd.CommandID, State: state, OccurredAt: done})
	s.logger.Infow("pump command acked", "command_id", cmd.CommandID, "state", state.String(), "actor", req.Actor)
	return cmd, nil
}

// List returns recent commands, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]commands.PumpCommand, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Debugw("command event not published", "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, req IssueRequest, cmd *commands.PumpCommand) {
	if s.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"state":           cmd.State.String(),
		"idempotency_key": cmd.IdempotencyKey,
	})
	err := s.auditLogger.Log(ctx, audit.Entry{
		Actor:        req.Actor,
		Role:         req.Role,
		Action:       "pump.set",
		ResourceType: "pump_command",
		ResourceID:   cmd.CommandID,
		Metadata:     meta,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		CreatedAt:    cmd.CreatedAt,
	})
	if err != nil {
		s.logger.Warnw("audit write failed", "command_id", cmd.CommandID, "error", err)
	}
}

func buildShortID(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:8])
}
