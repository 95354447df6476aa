package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinygate/tinygate/internal/secret"
)

// testParams keeps argon2 cheap enough for unit tests.
var testParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1}

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash(secret.FromString("correct horse"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Compare(secret.FromString("correct horse"), encoded))
	assert.False(t, h.Compare(secret.FromString("correct horsf"), encoded))
	assert.False(t, h.Compare(secret.FromString(""), encoded))
}

func TestHasher_SaltIsUniquePerCall(t *testing.T) {
	h := NewHasher(testParams)

	a, err := h.Hash(secret.FromString("same-password"))
	require.NoError(t, err)
	b, err := h.Hash(secret.FromString("same-password"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHasher_VerifyUsesEmbeddedParams(t *testing.T) {
	encoded, err := NewHasher(testParams).Hash(secret.FromString("portable"))
	require.NoError(t, err)

	other := NewHasher(Params{Memory: 2048, Iterations: 2, Parallelism: 1})
	assert.True(t, other.Compare(secret.FromString("portable"), encoded))
}

func TestHasher_WipesPassword(t *testing.T) {
	h := NewHasher(testParams)
	buf := []byte("wipe-me-please")
	encoded, err := h.Hash(secret.New(buf))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, len(buf)), buf)

	buf2 := []byte("wipe-me-please")
	h.Compare(secret.New(buf2), encoded)
	assert.Equal(t, make([]byte, len(buf2)), buf2)
}

func TestHasher_MalformedHashesNeverMatch(t *testing.T) {
	h := NewHasher(testParams)

	cases := []string{
		"",
		"plaintext",
		"$argon2id$",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	}
	for _, encoded := range cases {
		assert.False(t, h.Compare(secret.FromString("password"), encoded), encoded)
	}
}

func TestHasher_AcceptsLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewHasher(testParams)
	assert.True(t, h.Compare(secret.FromString("legacy-pass"), string(legacy)))
	assert.False(t, h.Compare(secret.FromString("legacy-pasz"), string(legacy)))
}
