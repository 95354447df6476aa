package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// InviteRepository implements ports.InviteTokenRepository. Consumption,
// release and deletion are single conditional statements so the row lock
// taken by postgres arbitrates concurrent callers.
type InviteRepository struct {
	db DBTX
}

func NewInviteRepository(db DBTX) *InviteRepository {
	return &InviteRepository{db: db}
}

const inviteColumns = `value, issued_by, issued_at, expires_at, consumed, consumed_by`

func (r *InviteRepository) Create(ctx context.Context, t *domain.InviteToken) error {
	query :=
		`INSERT INTO invite_tokens (value, issued_by, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, t.Value, nullString(t.IssuedBy), t.IssuedAt.UTC(), t.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *InviteRepository) List(ctx context.Context, issuer string) ([]*domain.InviteToken, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if issuer == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM invite_tokens ORDER BY seq`)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM invite_tokens WHERE issued_by = $1 ORDER BY seq`, issuer)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*domain.InviteToken
	for rows.Next() {
		t, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *InviteRepository) Find(ctx context.Context, value string) (*domain.InviteToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invite_tokens WHERE value = $1`, value)
	t, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	return t, err
}

func (r *InviteRepository) Consume(ctx context.Context, value, username string, now time.Time) error {
	query :=
		`UPDATE invite_tokens SET consumed = TRUE, consumed_by = $2
		 WHERE value = $1 AND NOT consumed AND expires_at > $3`

	return r.execOne(ctx, query, value, username, now.UTC())
}

func (r *InviteRepository) Release(ctx context.Context, value, username string) error {
	query :=
		`UPDATE invite_tokens SET consumed = FALSE, consumed_by = NULL
		 WHERE value = $1 AND consumed AND consumed_by = $2`

	return r.execOne(ctx, query, value, username)
}

func (r *InviteRepository) Delete(ctx context.Context, value string) error {
	return r.execOne(ctx, `DELETE FROM invite_tokens WHERE value = $1 AND NOT consumed`, value)
}

// execOne runs a conditional write and maps zero affected rows to
// ErrTokenNotFound.
func (r *InviteRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvite(s scanner) (*domain.InviteToken, error) {
	var (
		t              domain.InviteToken
		issuedBy, used sql.NullString
	)
	if err := s.Scan(&t.Value, &issuedBy, &t.IssuedAt, &t.ExpiresAt, &t.Consumed, &used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.IssuedBy = issuedBy.String
	t.ConsumedBy = used.String
	t.IssuedAt = t.IssuedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return &t, nil
}
