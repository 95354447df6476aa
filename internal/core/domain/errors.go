package domain

import "errors"

// Input errors. Safe to describe to the caller.
var ErrBadInput = errors.New("bad credentials")

// Authentication errors. Always rendered identically regardless of cause.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidRegistrationToken = errors.New("invalid registration credentials")
	ErrUnauthenticated          = errors.New("not authenticated")
	ErrForbidden                = errors.New("access forbidden")
)

// Registration is switched off by configuration.
var ErrRegistrationDisabled = errors.New("registration disabled")

// Account store errors.
var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// Invite token errors. ErrTokenNotFound, ErrTokenExpired and ErrTokenUsed are
// collapsed into ErrInvalidRegistrationToken before reaching a client.
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenUsed     = errors.New("token already used")
	ErrTokenConsumed = errors.New("consumed tokens cannot be revoked")
)
