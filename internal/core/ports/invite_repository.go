package ports

import (
	"context"
	"time"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// InviteTokenRepository persists registration tokens. Every state change is
// a single conditional write so the store arbitrates concurrent callers.
type InviteTokenRepository interface {
	Create(ctx context.Context, token *domain.InviteToken) error
	// List returns the tokens issued by issuer, or every token when issuer is
	// empty, in issuance order.
	List(ctx context.Context, issuer string) ([]*domain.InviteToken, error)
	Find(ctx context.Context, value string) (*domain.InviteToken, error)

	// Consume marks the token consumed by username only where it is still
	// unconsumed and expires after now. When no row matched it returns
	// domain.ErrTokenNotFound; callers use Find to learn why.
	Consume(ctx context.Context, value, username string, now time.Time) error
	// Release undoes a Consume made by username. It matches only a token
	// consumed by that username and returns domain.ErrTokenNotFound otherwise.
	Release(ctx context.Context, value, username string) error
	// Delete removes an unconsumed token. Consumed or unknown tokens yield
	// domain.ErrTokenNotFound.
	Delete(ctx context.Context, value string) error
}
