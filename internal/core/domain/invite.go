package domain

import "time"

// InviteToken is a single-use, time-bounded registration credential issued by an admin.
type InviteToken struct {
	Value      string    `json:"token"`
	IssuedBy   string    `json:"issued_by,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Consumed   bool      `json:"consumed"`
	ConsumedBy string    `json:"consumed_by,omitempty"`
}

// Usable reports whether the token can still be consumed at now.
func (t *InviteToken) Usable(now time.Time) bool {
	return !t.Consumed && now.Before(t.ExpiresAt)
}

// ConsumeFailure classifies why a token could not be consumed. Callers
// outside the token manager only ever see ErrInvalidRegistrationToken.
func (t *InviteToken) ConsumeFailure(now time.Time) error {
	switch {
	case t.Consumed:
		return ErrTokenUsed
	case !now.Before(t.ExpiresAt):
		return ErrTokenExpired
	default:
		return nil
	}
}
