package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinygate/tinygate/internal/secret"
)

const argon2Prefix = "$argon2id$"

var ErrMalformedHash = errors.New("malformed password hash")

// Params are the argon2id cost parameters written into every new hash.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the RFC 9106 second recommended option.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher derives and verifies password hashes.
type Hasher struct {
	params Params
}

func NewHasher(params Params) *Hasher {
	if params.SaltLength == 0 {
		params.SaltLength = DefaultParams.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultParams.KeyLength
	}
	if params.Parallelism == 0 {
		params.Parallelism = 1
	}
	return &Hasher{params: params}
}

// Hash derives an encoded argon2id hash with a fresh random salt.
// The password is wiped before returning.
func (h *Hasher) Hash(password *secret.Secret) (string, error) {
	defer password.Wipe()

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(password.Bytes(), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	defer clear(key)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare reports whether password matches encoded. Unknown or malformed
// encodings never match. The password is wiped before returning.
func (h *Hasher) Compare(password *secret.Secret, encoded string) bool {
	defer password.Wipe()

	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		ok, err := compareArgon2(password.Bytes(), encoded)
		return err == nil && ok
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), password.Bytes()) == nil
	default:
		return false
	}
}

func compareArgon2(password []byte, encoded string) (bool, error) {
	p, salt, want, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	defer clear(got)

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func decodeArgon2(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, ErrMalformedHash
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if p.Iterations == 0 || p.Parallelism == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
