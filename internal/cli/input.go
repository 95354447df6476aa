package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/tinygate/tinygate/internal/secret"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Prompter asks the operator for input.
type Prompter interface {
	// Line prints prompt and returns the trimmed answer.
	Line(prompt string) (string, error)
	// Password prints prompt and reads a value without echo.
	Password(prompt string) (*secret.Secret, error)
}

// Terminal reads answers from in and masked passwords from the terminal fd.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func NewTerminal(in io.Reader, out io.Writer, fd int) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, fd: fd}
}

// Line returns a partial last line on EOF.
func (t *Terminal) Line(prompt string) (string, error) {
	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) Password(prompt string) (*secret.Secret, error) {
	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		clear(pw)
		return nil, fmt.Errorf("read password: %w", err)
	}
	return secret.New(pw), nil
}
