package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/pkg/logger"
)

// EventQueue abstracts the audit dispatcher. Enqueue reports false when the
// event was dropped.
type EventQueue interface {
	Enqueue(event domain.AuthEvent) bool
}

// AuditService stamps audit events and hands them to the queue so request
// paths never wait on persistence.
type AuditService struct {
	queue EventQueue
	log   zerolog.Logger
	now   func() time.Time
}

func NewAuditService(queue EventQueue, log zerolog.Logger) *AuditService {
	return &AuditService{queue: queue, log: log, now: time.Now}
}

// Record implements ports.AuditRecorder.
func (s *AuditService) Record(_ context.Context, event domain.AuthEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if !s.queue.Enqueue(event) {
		s.log.Warn().
			Str("type", string(event.Type)).
			Str("user", logger.SafeUser(event.Username)).
			Msg("audit event dropped")
	}
}

type auditWriter struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditWriter returns the processor run by the dispatcher workers.
func NewAuditWriter(repo ports.AuditRepository, log zerolog.Logger) ports.AuditProcessor {
	return &auditWriter{repo: repo, log: log}
}

func (w *auditWriter) Process(ctx context.Context, event domain.AuthEvent) error {
	if err := w.repo.InsertEvent(ctx, &event); err != nil {
		return fmt.Errorf("persist audit event: %w", err)
	}
	w.log.Debug().
		Str("type", string(event.Type)).
		Str("user", logger.SafeUser(event.Username)).
		Msg("audit event stored")
	return nil
}
