package ports

import (
	"context"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// AccountRepository is the durable credential store keyed by username.
type AccountRepository interface {
	// Create inserts a new account. The uniqueness check is part of the same
	// write: an existing username yields domain.ErrUserExists and is never
	// overwritten.
	Create(ctx context.Context, account *domain.Account) error
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	// Delete removes the account or returns domain.ErrUserNotFound.
	Delete(ctx context.Context, username string) error
}
