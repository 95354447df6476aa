package ports

import (
	"context"

	"github.com/tinygate/tinygate/internal/core/domain"
	"github.com/tinygate/tinygate/internal/credential"
	"github.com/tinygate/tinygate/internal/secret"
)

// RegisterInput is the DTO passed from the transport layer to Register.
// Password ownership moves to the service, which wipes it.
type RegisterInput struct {
	Username string
	Password *secret.Secret
	Token    string
	Peer     string
}

// RegisterResult carries the new account and, when a second factor was
// provisioned, the enrollment to hand back to the user.
type RegisterResult struct {
	Account    *domain.Account
	Enrollment *credential.Enrollment
}

// LoginInput is the DTO for Login. Code is optional.
type LoginInput struct {
	Username string
	Password *secret.Secret
	Code     string
	Peer     string
}

// CreateUserInput is used by the operator CLI; no token is required.
type CreateUserInput struct {
	Username string
	Password *secret.Secret
	IsAdmin  bool
}

// AccountService implements the user-facing account operations.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, in LoginInput) (*domain.Account, error)
	// Logout invalidates sess so a replay of its identity is rejected.
	Logout(ctx context.Context, sess *domain.Session, peer string) error
	// DeleteAccount invalidates sess first and then removes its account.
	DeleteAccount(ctx context.Context, sess *domain.Session, peer string) error
	CreateUser(ctx context.Context, in CreateUserInput) (*RegisterResult, error)
}
