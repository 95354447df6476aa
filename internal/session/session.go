// Package session signs, checks and renews the client-side session identity.
//
// The identity is an HS256 JWT carried in the "auth" cookie. It embeds the
// login time and the time of the last authenticated request; validity is a
// pure function of those timestamps, the configured deadlines and the
// revocation list.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/core/ports"
)

const (
	CookieName = "auth"

	// MinSecretLength is the minimum HS256 key size accepted.
	MinSecretLength = 64
)

var ErrShortSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

// Reason explains why an identity was rejected.
type Reason string

const (
	ReasonInvalid       Reason = "invalid"
	ReasonLoginDeadline Reason = "login_deadline"
	ReasonVisitDeadline Reason = "visit_deadline"
	ReasonRevoked       Reason = "revoked"
)

// RejectedError is returned by Authenticate for identities that must be
// treated as anonymous. It matches domain.ErrUnauthenticated.
type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string { return "session rejected: " + string(e.Reason) }

func (e *RejectedError) Is(target error) bool { return target == domain.ErrUnauthenticated }

// Config holds the session policy. A zero deadline disables that dimension.
type Config struct {
	Secret        []byte
	LoginDeadline time.Duration
	VisitDeadline time.Duration
	CookieMaxAge  time.Duration
	CookiePath    string
	Secure        bool
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

type claims struct {
	Admin     bool  `json:"adm"`
	LoginAt   int64 `json:"lat"`
	VisitedAt int64 `json:"vat"`
	jwt.RegisteredClaims
}

// Controller implements the Anonymous -> Authenticated -> Anonymous
// lifecycle of a client session.
type Controller struct {
	cfg     Config
	revoked ports.RevocationStore
	parser  *jwt.Parser
}

// NewController validates cfg. A nil store falls back to a process-local
// revocation list.
func NewController(cfg Config, store ports.RevocationStore) (*Controller, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Controller{
		cfg:     cfg,
		revoked: store,
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Now returns the controller's clock reading.
func (c *Controller) Now() time.Time {
	return c.cfg.Now()
}

// Establish starts a session for username at now and returns its signed identity.
func (c *Controller) Establish(username string, admin bool, now time.Time) (*domain.Session, string, error) {
	now = now.Truncate(time.Second)
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Username:  username,
		IsAdmin:   admin,
		LoginAt:   now,
		LastVisit: now,
	}
	token, err := c.sign(sess, now)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Authenticate verifies token and enforces both deadlines at now. Rejected
// identities yield a *RejectedError; store failures are returned as-is.
func (c *Controller) Authenticate(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	var cl claims
	if _, err := c.parser.ParseWithClaims(token, &cl, c.key); err != nil {
		return nil, &RejectedError{Reason: ReasonInvalid}
	}
	if cl.Subject == "" || cl.ID == "" || cl.LoginAt == 0 || cl.VisitedAt == 0 {
		return nil, &RejectedError{Reason: ReasonInvalid}
	}

	sess := &domain.Session{
		ID:        cl.ID,
		Username:  cl.Subject,
		IsAdmin:   cl.Admin,
		LoginAt:   time.Unix(cl.LoginAt, 0).UTC(),
		LastVisit: time.Unix(cl.VisitedAt, 0).UTC(),
	}

	if c.cfg.LoginDeadline > 0 && now.Sub(sess.LoginAt) > c.cfg.LoginDeadline {
		return nil, &RejectedError{Reason: ReasonLoginDeadline}
	}
	if c.cfg.VisitDeadline > 0 && now.Sub(sess.LastVisit) > c.cfg.VisitDeadline {
		return nil, &RejectedError{Reason: ReasonVisitDeadline}
	}

	revoked, err := c.revoked.IsRevoked(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, &RejectedError{Reason: ReasonRevoked}
	}

	cutoff, ok, err := c.revoked.UserRevokedAt(ctx, sess.Username)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if ok && !sess.LoginAt.After(cutoff) {
		return nil, &RejectedError{Reason: ReasonRevoked}
	}
	return sess, nil
}

// Renew records activity at now and returns the re-signed identity.
func (c *Controller) Renew(sess *domain.Session, now time.Time) (string, error) {
	sess.LastVisit = now.Truncate(time.Second).UTC()
	return c.sign(sess, now)
}

// Revoke rejects every identity carrying the id of sess until it would have
// expired on its own. Without deadlines the entry never expires.
func (c *Controller) Revoke(ctx context.Context, sess *domain.Session) error {
	ttl, ok := c.remaining(sess, c.Now())
	if !ok {
		return nil
	}
	if err := c.revoked.Revoke(ctx, sess.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeUser rejects every identity of username that logged in up to now,
// whichever device holds it. Identities established afterwards are
// unaffected.
func (c *Controller) RevokeUser(ctx context.Context, username string) error {
	now := c.Now().Truncate(time.Second).UTC()
	if err := c.revoked.RevokeUser(ctx, username, now, c.longestLife()); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

// longestLife bounds how long an identity that can no longer be renewed
// stays acceptable. Zero means no bound.
func (c *Controller) longestLife() time.Duration {
	var life time.Duration
	for _, d := range []time.Duration{c.cfg.LoginDeadline, c.cfg.VisitDeadline} {
		if d > 0 && (life == 0 || d < life) {
			life = d
		}
	}
	if life == 0 {
		return 0
	}
	return life + time.Second
}

// remaining is the longest time any identity of sess could still be accepted.
// The visit deadline is measured from now because a renewed identity may
// carry a later visit time than sess.
func (c *Controller) remaining(sess *domain.Session, now time.Time) (time.Duration, bool) {
	if c.cfg.LoginDeadline <= 0 && c.cfg.VisitDeadline <= 0 {
		return 0, true
	}
	var ttl time.Duration
	if c.cfg.VisitDeadline > 0 {
		ttl = c.cfg.VisitDeadline
	}
	if c.cfg.LoginDeadline > 0 {
		left := sess.LoginAt.Add(c.cfg.LoginDeadline).Sub(now)
		if left <= 0 {
			return 0, false
		}
		if ttl == 0 || left < ttl {
			ttl = left
		}
	}
	// Round up so the entry never lapses before the identity does.
	return ttl + time.Second, true
}

// Cookie wraps a signed identity.
func (c *Controller) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     c.cfg.CookiePath,
		MaxAge:   int(c.cfg.CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredCookie instructs the client to drop its identity.
func (c *Controller) ExpiredCookie() *http.Cookie {
	ck := c.Cookie("")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	return ck
}

func (c *Controller) sign(sess *domain.Session, now time.Time) (string, error) {
	cl := claims{
		Admin:     sess.IsAdmin,
		LoginAt:   sess.LoginAt.Unix(),
		VisitedAt: sess.LastVisit.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sess.Username,
			ID:       sess.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (c *Controller) key(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, errors.New("unexpected signing method")
	}
	return c.cfg.Secret, nil
}
