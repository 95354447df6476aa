package credential

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/tinygate/tinygate/internal/core/domain"
)

// Policy bounds credential lengths. Usernames are measured in runes,
// passwords in bytes.
type Policy struct {
	UsernameMin int
	UsernameMax int
	PasswordMin int
	PasswordMax int
}

// Check validates username and a password of passwordLen bytes. Every
// violation wraps domain.ErrBadInput with a message safe to show the caller.
func (p Policy) Check(username string, passwordLen int) error {
	if err := p.CheckUsername(username); err != nil {
		return err
	}
	return p.CheckPasswordLength(passwordLen)
}

func (p Policy) CheckUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrBadInput)
	}
	n := utf8.RuneCountInString(username)
	if n < p.UsernameMin || n > p.UsernameMax {
		return fmt.Errorf("%w: username must be between %d and %d characters", domain.ErrBadInput, p.UsernameMin, p.UsernameMax)
	}
	for _, r := range username {
		if r == utf8.RuneError || unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: username contains invalid characters", domain.ErrBadInput)
		}
	}
	return nil
}

func (p Policy) CheckPasswordLength(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: password is required", domain.ErrBadInput)
	}
	if n < p.PasswordMin || n > p.PasswordMax {
		return fmt.Errorf("%w: password must be between %d and %d bytes", domain.ErrBadInput, p.PasswordMin, p.PasswordMax)
	}
	return nil
}
