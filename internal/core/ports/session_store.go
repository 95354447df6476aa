package ports

import (
	"context"
	"time"
)

// RevocationStore remembers session ids that were logged out, and per-user
// cutoffs for deleted accounts, until the affected identities would have
// expired anyway. A zero ttl never expires.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)

	// RevokeUser rejects every identity of username that logged in at or
	// before at.
	RevokeUser(ctx context.Context, username string, at time.Time, ttl time.Duration) error
	// UserRevokedAt returns the cutoff recorded for username, if any.
	UserRevokedAt(ctx context.Context, username string) (time.Time, bool, error)
}
