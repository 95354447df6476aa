package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/pkg/logger"
)

const (
	minTokenSize     = 8
	defaultTokenSize = 16
	defaultTokenTTL  = 24 * time.Hour
)

// InviteConfig is the issuance policy. With Enabled false registration is
// switched off entirely and every operation reports ErrRegistrationDisabled.
type InviteConfig struct {
	Enabled   bool
	TokenSize int
	TokenTTL  time.Duration
}

// InviteService issues, lists, revokes and consumes registration tokens.
type InviteService struct {
	repo  ports.InviteTokenRepository
	audit ports.AuditRecorder
	cfg   InviteConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewInviteService(repo ports.InviteTokenRepository, audit ports.AuditRecorder, cfg InviteConfig, log zerolog.Logger) *InviteService {
	if cfg.TokenSize < minTokenSize {
		cfg.TokenSize = defaultTokenSize
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &InviteService{
		repo:  repo,
		audit: audit,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Issue creates a fresh unconsumed token that expires TokenTTL from now.
func (s *InviteService) Issue(ctx context.Context, issuer string) (*domain.InviteToken, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrRegistrationDisabled
	}

	value, err := newTokenValue(s.cfg.TokenSize)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := s.now().UTC()
	token := &domain.InviteToken{
		Value:     value,
		IssuedBy:  issuer,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventTokenIssued, Username: issuer})
	s.log.Info().
		Str("issuer", logger.SafeUser(issuer)).
		Time("expires_at", token.ExpiresAt).
		Msg("invite token issued")

	return token, nil
}

// List returns the tokens issued by issuer, or all tokens when issuer is empty.
func (s *InviteService) List(ctx context.Context, issuer string) ([]*domain.InviteToken, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrRegistrationDisabled
	}
	tokens, err := s.repo.List(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// Revoke deletes an unconsumed token. Consumed tokens are kept as history and
// yield ErrTokenConsumed.
func (s *InviteService) Revoke(ctx context.Context, value string) error {
	if !s.cfg.Enabled {
		return domain.ErrRegistrationDisabled
	}

	err := s.repo.Delete(ctx, value)
	if err == nil {
		s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventTokenRevoked})
		return nil
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	token, findErr := s.repo.Find(ctx, value)
	switch {
	case errors.Is(findErr, domain.ErrTokenNotFound):
		return domain.ErrTokenNotFound
	case findErr != nil:
		return fmt.Errorf("revoke token: %w", findErr)
	case token.Consumed:
		return domain.ErrTokenConsumed
	default:
		// Deleted by a concurrent revoke between the two calls.
		return domain.ErrTokenNotFound
	}
}

// Consume claims the token for username with a single conditional update.
// Under concurrent callers exactly one succeeds. The precise failure reason is
// logged and audited, callers only see ErrInvalidRegistrationToken.
func (s *InviteService) Consume(ctx context.Context, value, username string) error {
	if !s.cfg.Enabled {
		return domain.ErrRegistrationDisabled
	}
	if value == "" {
		return domain.ErrInvalidRegistrationToken
	}

	now := s.now().UTC()
	err := s.repo.Consume(ctx, value, username, now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return fmt.Errorf("consume token: %w", err)
	}

	reason := s.classify(ctx, value, now)
	s.log.Warn().
		Str("user", logger.SafeUser(username)).
		Str("reason", reason.Error()).
		Msg("registration token rejected")

	return domain.ErrInvalidRegistrationToken
}

// Release returns a token consumed by username to the unconsumed state. It is
// the compensating step when account creation fails after consumption.
func (s *InviteService) Release(ctx context.Context, value, username string) error {
	if !s.cfg.Enabled {
		return domain.ErrRegistrationDisabled
	}
	if err := s.repo.Release(ctx, value, username); err != nil {
		return fmt.Errorf("release token: %w", err)
	}
	s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventTokenReleased, Username: username})
	return nil
}

// classify reads the token back after a failed conditional update.
func (s *InviteService) classify(ctx context.Context, value string, now time.Time) error {
	token, err := s.repo.Find(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return domain.ErrTokenNotFound
		}
		return fmt.Errorf("lookup failed: %w", err)
	}
	if reason := token.ConsumeFailure(now); reason != nil {
		return reason
	}
	// Usable again, so a Release landed after our update. Treat as used.
	return domain.ErrTokenUsed
}

func newTokenValue(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
