package secret

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWipe_ZeroesBackingBuffer(t *testing.T) {
	buf := []byte("hunter22")
	s := New(buf)

	s.Wipe()

	assert.Equal(t, make([]byte, 8), buf)
	assert.Nil(t, s.Bytes())
	assert.True(t, s.Empty())
}

func TestWipe_NilAndRepeated(t *testing.T) {
	var s *Secret
	assert.NotPanics(t, func() { s.Wipe() })

	s2 := FromString("abc")
	s2.Wipe()
	assert.NotPanics(t, func() { s2.Wipe() })
}

func TestEqual(t *testing.T) {
	a := FromString("same")
	b := FromString("same")
	c := FromString("diff")
	defer a.Wipe()
	defer b.Wipe()
	defer c.Wipe()

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestUnmarshalJSON(t *testing.T) {
	var body struct {
		Password *Secret `json:"password"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"password":"plain-text"}`), &body))
	assert.Equal(t, "plain-text", string(body.Password.Bytes()))
	body.Password.Wipe()

	require.NoError(t, json.Unmarshal([]byte(`{"password":"with \"quotes\""}`), &body))
	assert.Equal(t, `with "quotes"`, string(body.Password.Bytes()))
	body.Password.Wipe()

	assert.Error(t, json.Unmarshal([]byte(`{"password":12}`), &body))
}

func TestRedaction(t *testing.T) {
	s := FromString("top-secret")
	defer s.Wipe()

	out, err := json.Marshal(struct {
		P *Secret `json:"p"`
	}{P: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"[redacted]"}`, string(out))
	assert.Equal(t, "[redacted]", s.String())
}
