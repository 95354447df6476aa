package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// AccountRepository implements ports.AccountRepository on the accounts table.
type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	query :=
		`INSERT INTO accounts (id, username, password_hash, second_factor_secret, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.PasswordHash, nullString(a.SecondFactorSecret), a.IsAdmin, a.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query :=
		`SELECT id, username, password_hash, second_factor_secret, is_admin, created_at
		 FROM accounts WHERE username = $1`

	var (
		a      domain.Account
		secret sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &secret, &a.IsAdmin, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.SecondFactorSecret = secret.String
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
