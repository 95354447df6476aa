package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/core/ports"
	"github.com/tinygate/tinygate/internal/credential"
	"github.com/tinygate/tinygate/internal/secret"
	"github.com/tinygate/tinygate/pkg/logger"
)

// SecretVerifier is the subset of credential.Verifier the lifecycle needs.
// Every method taking a *secret.Secret wipes it.
type SecretVerifier interface {
	Hash(password *secret.Secret) (string, error)
	CheckPassword(password *secret.Secret, hash string) bool
	BurnDecoy(password *secret.Secret)
	SecondFactor() credential.SecondFactor
	CheckCode(sharedSecret, code string, now time.Time) bool
}

// SessionRevoker invalidates issued session identities.
type SessionRevoker interface {
	Revoke(ctx context.Context, sess *domain.Session) error
	RevokeUser(ctx context.Context, username string) error
}

// AccountConfig carries the lifecycle policy.
type AccountConfig struct {
	Policy              credential.Policy
	CaseFold            bool
	RegistrationEnabled bool
}

// AccountService composes the credential store, the token manager, the
// verifier and the session controller into the user-facing operations.
type AccountService struct {
	accounts ports.AccountRepository
	invites  ports.InviteService
	verifier SecretVerifier
	sessions SessionRevoker
	audit    ports.AuditRecorder
	cfg      AccountConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAccountService(
	accounts ports.AccountRepository,
	invites ports.InviteService,
	verifier SecretVerifier,
	sessions SessionRevoker,
	audit ports.AuditRecorder,
	cfg AccountConfig,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		invites:  invites,
		verifier: verifier,
		sessions: sessions,
		audit:    audit,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Register creates an account from an invite token. The token is consumed
// before any expensive work; if a later step fails it is released again so
// the user can retry with the same token, unless the account may already
// exist.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	defer in.Password.Wipe()

	if !s.cfg.RegistrationEnabled {
		return nil, domain.ErrRegistrationDisabled
	}

	username := s.normalize(in.Username)
	if err := s.cfg.Policy.Check(username, in.Password.Len()); err != nil {
		s.registrationFailed(ctx, username, in.Peer, err)
		return nil, err
	}
	if in.Token == "" {
		err := fmt.Errorf("%w: token is required", domain.ErrBadInput)
		s.registrationFailed(ctx, username, in.Peer, err)
		return nil, err
	}

	if err := s.invites.Consume(ctx, in.Token, username); err != nil {
		s.registrationFailed(ctx, username, in.Peer, err)
		return nil, err
	}

	result, err := s.prepare(username, in.Password, false)
	if err != nil {
		s.releaseToken(ctx, in.Token, username)
		s.registrationFailed(ctx, username, in.Peer, err)
		return nil, err
	}
	if err := s.store(ctx, result.Account); err != nil {
		s.settleToken(ctx, in.Token, username, err)
		s.registrationFailed(ctx, username, in.Peer, err)
		return nil, err
	}

	s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventRegistered, Username: username, Peer: in.Peer})
	s.log.Warn().
		Str("peer", in.Peer).
		Str("user", logger.SafeUser(username)).
		Msg("client registered")

	return result, nil
}

// Login verifies the credentials of an existing account. Unknown users pay
// for a full verification against the decoy hash, and every mismatch is
// reported as ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, in ports.LoginInput) (*domain.Account, error) {
	defer in.Password.Wipe()

	username := s.normalize(in.Username)
	if username == "" || in.Password.Empty() {
		return nil, fmt.Errorf("%w: user and password are required", domain.ErrBadInput)
	}

	account, err := s.accounts.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.verifier.BurnDecoy(in.Password)
		s.loginFailed(ctx, username, in.Peer, "unknown user")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.verifier.CheckPassword(in.Password, account.PasswordHash) {
		s.loginFailed(ctx, username, in.Peer, "wrong password")
		return nil, domain.ErrInvalidCredentials
	}
	if account.HasSecondFactor() && !s.verifier.CheckCode(account.SecondFactorSecret, in.Code, s.now()) {
		s.loginFailed(ctx, username, in.Peer, "wrong code")
		return nil, domain.ErrInvalidCredentials
	}

	s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventLoginSucceeded, Username: username, Peer: in.Peer})
	s.log.Warn().
		Str("peer", in.Peer).
		Str("user", logger.SafeUser(username)).
		Msg("client logged in")

	return account, nil
}

// Logout invalidates sess. A nil session is already anonymous.
func (s *AccountService) Logout(ctx context.Context, sess *domain.Session, peer string) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sess); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().
		Str("peer", peer).
		Str("user", logger.SafeUser(sess.Username)).
		Msg("client logged out")
	return nil
}

// DeleteAccount invalidates every identity of the session's user and then
// removes the account. A repeated call reports ErrUserNotFound.
func (s *AccountService) DeleteAccount(ctx context.Context, sess *domain.Session, peer string) error {
	if sess == nil {
		return domain.ErrUnauthenticated
	}
	if err := s.sessions.RevokeUser(ctx, sess.Username); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := s.accounts.Delete(ctx, sess.Username); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn().
				Str("peer", peer).
				Str("user", logger.SafeUser(sess.Username)).
				Msg("delete requested for missing account")
			return err
		}
		return fmt.Errorf("delete account: %w", err)
	}

	s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventAccountDeleted, Username: sess.Username, Peer: peer})
	s.log.Warn().
		Str("peer", peer).
		Str("user", logger.SafeUser(sess.Username)).
		Msg("account deleted")
	return nil
}

// CreateUser adds an account without a token. It backs the operator CLI.
func (s *AccountService) CreateUser(ctx context.Context, in ports.CreateUserInput) (*ports.RegisterResult, error) {
	defer in.Password.Wipe()

	username := s.normalize(in.Username)
	if err := s.cfg.Policy.Check(username, in.Password.Len()); err != nil {
		return nil, err
	}

	result, err := s.prepare(username, in.Password, in.IsAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, result.Account); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuthEvent{Type: domain.EventAccountCreated, Username: username, Peer: "cli"})
	s.log.Info().
		Str("user", logger.SafeUser(username)).
		Bool("admin", in.IsAdmin).
		Msg("account created")
	return result, nil
}

// prepare hashes the password and enrolls the second factor when one is
// configured. Nothing is written.
func (s *AccountService) prepare(username string, password *secret.Secret, admin bool) (*ports.RegisterResult, error) {
	hash, err := s.verifier.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      admin,
		CreatedAt:    s.now().UTC(),
	}

	var enrollment *credential.Enrollment
	if sf := s.verifier.SecondFactor(); sf != nil {
		enrollment, err = sf.Provision(username)
		if err != nil {
			return nil, fmt.Errorf("provision second factor: %w", err)
		}
		account.SecondFactorSecret = enrollment.Secret()
	}

	return &ports.RegisterResult{Account: account, Enrollment: enrollment}, nil
}

func (s *AccountService) store(ctx context.Context, account *domain.Account) error {
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// settleToken decides the fate of a consumed token after the account write
// failed. The write may have committed before the error surfaced, so the
// token goes back only when the account is known to be absent.
func (s *AccountService) settleToken(ctx context.Context, token, username string, cause error) {
	if errors.Is(cause, domain.ErrUserExists) {
		s.releaseToken(ctx, token, username)
		return
	}

	_, err := s.accounts.FindByUsername(context.WithoutCancel(ctx), username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.releaseToken(ctx, token, username)
		return
	}
	s.log.Error().
		Err(cause).
		AnErr("lookup_err", err).
		Str("user", logger.SafeUser(username)).
		Msg("account write outcome unknown, registration token stays consumed")
}

// releaseToken runs even if the request context is already cancelled.
func (s *AccountService) releaseToken(ctx context.Context, token, username string) {
	if err := s.invites.Release(context.WithoutCancel(ctx), token, username); err != nil {
		s.log.Error().
			Err(err).
			Str("user", logger.SafeUser(username)).
			Msg("failed to release registration token")
	}
}

func (s *AccountService) registrationFailed(ctx context.Context, username, peer string, cause error) {
	s.audit.Record(ctx, domain.AuthEvent{
		Type:     domain.EventRegistrationFailed,
		Username: username,
		Peer:     peer,
		Reason:   cause.Error(),
	})
	s.log.Warn().
		Err(cause).
		Str("peer", peer).
		Str("user", logger.SafeUser(username)).
		Msg("client failed to register")
}

func (s *AccountService) loginFailed(ctx context.Context, username, peer, reason string) {
	s.audit.Record(ctx, domain.AuthEvent{
		Type:     domain.EventLoginFailed,
		Username: username,
		Peer:     peer,
		Reason:   reason,
	})
	s.log.Warn().
		Str("peer", peer).
		Str("user", logger.SafeUser(username)).
		Msg("client failed to login")
}

func (s *AccountService) normalize(username string) string {
	if s.cfg.CaseFold {
		return strings.ToLower(username)
	}
	return username
}
