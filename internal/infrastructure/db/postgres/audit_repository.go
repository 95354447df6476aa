package postgres

import (
	"context"
	"fmt"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// AuditRepository appends to the auth_events table.
type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, e *domain.AuthEvent) error {
	query :=
		`INSERT INTO auth_events (id, type, username, peer, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, string(e.Type), e.Username, nullString(e.Peer), nullString(e.Reason), e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
