package credential

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/tinygate/tinygate/internal/secret"
)

const decoyPasswordSize = 32

// Verifier composes the password hasher with the optional second factor.
type Verifier struct {
	hasher       *Hasher
	secondFactor SecondFactor
	decoyHash    string
}

// NewVerifier builds a Verifier. secondFactor may be nil when the feature is
// disabled. A decoy hash with the hasher's cost parameters is derived up
// front so unknown-user logins cost the same as wrong-password logins.
func NewVerifier(hasher *Hasher, secondFactor SecondFactor) (*Verifier, error) {
	raw := make([]byte, decoyPasswordSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate decoy password: %w", err)
	}
	decoy, err := hasher.Hash(secret.New(raw))
	if err != nil {
		return nil, fmt.Errorf("derive decoy hash: %w", err)
	}
	return &Verifier{hasher: hasher, secondFactor: secondFactor, decoyHash: decoy}, nil
}

// Hash derives a storable hash and wipes password.
func (v *Verifier) Hash(password *secret.Secret) (string, error) {
	return v.hasher.Hash(password)
}

// CheckPassword wipes password and reports whether it matches hash.
func (v *Verifier) CheckPassword(password *secret.Secret, hash string) bool {
	return v.hasher.Compare(password, hash)
}

// BurnDecoy performs a full verification against the decoy hash and
// discards the result. It wipes password.
func (v *Verifier) BurnDecoy(password *secret.Secret) {
	_ = v.hasher.Compare(password, v.decoyHash)
}

// SecondFactor returns the configured strategy or nil.
func (v *Verifier) SecondFactor() SecondFactor {
	return v.secondFactor
}

// CheckCode verifies a one-time code. Without a configured strategy every
// code is rejected.
func (v *Verifier) CheckCode(sharedSecret, code string, now time.Time) bool {
	if v.secondFactor == nil {
		return false
	}
	return v.secondFactor.Verify(sharedSecret, code, now)
}
