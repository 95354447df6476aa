// Package cli implements the interactive operator commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinygate/tinygate/internal/core/ports"
)

// ErrPasswordMismatch aborts account creation when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

const qrPrompt = "Directory to write the second factor QR code (png), leave empty to print the URL instead: "

// AccountCreator creates accounts without an invite token.
type AccountCreator interface {
	CreateUser(ctx context.Context, in ports.CreateUserInput) (*ports.RegisterResult, error)
}

// CreateUser prompts for a new account and stores it. Both password
// buffers are wiped before returning.
func CreateUser(ctx context.Context, p Prompter, accounts AccountCreator, out io.Writer) error {
	user, err := p.Line("User: ")
	if err != nil {
		return fmt.Errorf("read user: %w", err)
	}

	password, err := p.Password("Password: ")
	if err != nil {
		return err
	}
	defer password.Wipe()

	confirm, err := p.Password("Confirm password: ")
	if err != nil {
		return err
	}
	match := password.Equal(confirm)
	confirm.Wipe()
	if !match {
		return ErrPasswordMismatch
	}
	passLen := password.Len()

	answer, err := p.Line("Make user admin? [y/n] ")
	if err != nil {
		return fmt.Errorf("read admin flag: %w", err)
	}
	isAdmin := strings.EqualFold(answer, "y")

	res, err := accounts.CreateUser(ctx, ports.CreateUserInput{
		Username: user,
		Password: password,
		IsAdmin:  isAdmin,
	})
	if err != nil {
		return err
	}

	kind := "user"
	if isAdmin {
		kind = "admin"
	}
	fmt.Fprintf(out, "Successfully added %s %s with password length %d\n", kind, res.Account.Username, passLen)

	if res.Enrollment == nil {
		return nil
	}
	dir, err := p.Line(qrPrompt)
	if err != nil {
		return fmt.Errorf("read qr path: %w", err)
	}
	if dir == "" {
		fmt.Fprintln(out, res.Enrollment.URL())
		return nil
	}

	png, err := res.Enrollment.QRCodePNG()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, res.Account.Username+"-totp-qr.png")
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return fmt.Errorf("write qr code image: %w", err)
	}
	fmt.Fprintf(out, "QR code image written to %s\n", path)
	return nil
}
