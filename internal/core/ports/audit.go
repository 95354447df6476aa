package ports

import (
	"context"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}

// AuditRecorder accepts audit events from request paths. Implementations
// must not block the caller on persistence.
type AuditRecorder interface {
	Record(ctx context.Context, event domain.AuthEvent)
}

// AuditProcessor handles a single queued audit event.
type AuditProcessor interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}
