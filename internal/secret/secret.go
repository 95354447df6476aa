// Package secret provides a scoped holder for plaintext secret material.
//
// A Secret owns its backing buffer. Whoever receives a *Secret is responsible
// for calling Wipe on every exit path; Wipe overwrites the buffer with zeros
// and is safe to call more than once or on a nil receiver.
package secret

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
)

// Secret is a byte buffer that is zeroed when disposed.
type Secret struct {
	b []byte
}

// New takes ownership of b. The caller must not keep using b afterwards.
func New(b []byte) *Secret {
	return &Secret{b: b}
}

// FromString copies s into a wipeable buffer. The string itself is immutable
// and cannot be cleared, so callers should prefer New with a byte slice.
func FromString(s string) *Secret {
	b := make([]byte, len(s))
	copy(b, s)
	return &Secret{b: b}
}

// Bytes exposes the backing buffer. The slice is invalid after Wipe.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len returns the length of the secret in bytes.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Empty reports whether the secret holds no bytes.
func (s *Secret) Empty() bool {
	return s.Len() == 0
}

// Equal compares two secrets in constant time with respect to their contents.
func (s *Secret) Equal(other *Secret) bool {
	return subtle.ConstantTimeCompare(s.Bytes(), other.Bytes()) == 1
}

// Wipe zeroes the backing buffer and releases it.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	clear(s.b)
	s.b = nil
}

// String never reveals the content.
func (s *Secret) String() string {
	return "[redacted]"
}

// MarshalJSON never reveals the content.
func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}

// UnmarshalJSON decodes a JSON string. Plain strings are copied straight from
// the request bytes so no intermediate Go string is allocated; strings with
// escape sequences fall back to the standard decoder.
func (s *Secret) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		s.Wipe()
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' && bytes.IndexByte(data, '\\') < 0 {
		b := make([]byte, len(data)-2)
		copy(b, data[1:len(data)-1])
		s.Wipe()
		s.b = b
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	s.Wipe()
	s.b = []byte(str)
	return nil
}
