package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedPrefix     = "session:revoked:"
	revokedUserPrefix = "session:revoked-user:"
)

// RevocationStore keeps logged-out session ids and deleted-account cutoffs
// in Redis so every instance rejects a replayed identity.
// Key formats:
//
//	session:revoked:<session_id>     -> "1"
//	session:revoked-user:<username>  -> unix seconds of the cutoff
type RevocationStore struct {
	client redis.Cmdable
}

// NewRevocationStore wraps the given Redis client.
func NewRevocationStore(client redis.Cmdable) *RevocationStore {
	return &RevocationStore{client: client}
}

// Revoke marks the session revoked for ttl. A zero ttl never expires.
func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session id is on the list.
func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

// RevokeUser records at as the login cutoff for username.
func (s *RevocationStore) RevokeUser(ctx context.Context, username string, at time.Time, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedUserPrefix+username, at.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

// UserRevokedAt returns the cutoff for username, if one is recorded.
func (s *RevocationStore) UserRevokedAt(ctx context.Context, username string) (time.Time, bool, error) {
	sec, err := s.client.Get(ctx, revokedUserPrefix+username).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("user revocation check: %w", err)
	}
	return time.Unix(sec, 0).UTC(), true, nil
}
