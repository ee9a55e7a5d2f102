package audit

import (
	"context"
	"errors"
	"time"

	"voice-console/pkg/logger"

	"github.com/google/uuid"
)

// Repository persists audit events. It is append-only: no update or delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records audit events. Recording is best-effort: a failed write is
// logged and never fails the action being audited.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.UserID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIP(ctx)
	}
	return s.repo.Append(ctx, e)
}

// Record appends an event and swallows the error after logging it.
// A nil *Service records nothing.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).WarnContext(ctx, "audit write failed", "type", e.Type, "agent_id", e.AgentID, "err", err)
	}
}
