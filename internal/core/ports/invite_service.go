package ports

import (
	"context"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// InviteService gates self-registration behind single-use tokens.
type InviteService interface {
	Issue(ctx context.Context, issuer string) (*domain.InviteToken, error)
	List(ctx context.Context, issuer string) ([]*domain.InviteToken, error)
	Revoke(ctx context.Context, value string) error
	// Consume atomically claims the token for username. Every failure cause
	// is reported as domain.ErrInvalidRegistrationToken.
	Consume(ctx context.Context, value, username string) error
	// Release returns a token claimed by username to the unconsumed state.
	Release(ctx context.Context, value, username string) error
}
