package credential

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSkew       = 1
	totpDigits     = otp.DigitsSix
	totpSecretSize = 20
	qrCodeSize     = 256
)

// SecondFactor provisions and checks one-time codes.
type SecondFactor interface {
	// Provision creates a fresh shared secret for username.
	Provision(username string) (*Enrollment, error)
	// Verify checks code against secret at now. Malformed codes, codes outside
	// the tolerance window and undecodable secrets all report false.
	Verify(secret, code string, now time.Time) bool
}

// Enrollment is a freshly provisioned second-factor secret together with the
// means to hand it to the user.
type Enrollment struct {
	key *otp.Key
}

// Secret is the base32 shared secret to persist on the account.
func (e *Enrollment) Secret() string { return e.key.Secret() }

// URL is the otpauth:// provisioning URL.
func (e *Enrollment) URL() string { return e.key.URL() }

// QRCodePNG renders the provisioning URL as a PNG image.
func (e *Enrollment) QRCodePNG() ([]byte, error) {
	img, err := e.key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}

// QRCodeBase64 renders the QR code PNG as standard base64.
func (e *Enrollment) QRCodeBase64() (string, error) {
	b, err := e.QRCodePNG()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// TOTP is the RFC 6238 second factor: SHA1, six digits, thirty second steps,
// one step of clock skew tolerated on either side.
type TOTP struct {
	issuer string
}

func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer}
}

func (t *TOTP) Provision(username string) (*Enrollment, error) {
	raw := make([]byte, totpSecretSize)
	defer clear(raw)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: username,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
		Secret:      raw,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return &Enrollment{key: key}, nil
}

func (t *TOTP) Verify(secret, code string, now time.Time) bool {
	if !wellFormedCode(code) || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func wellFormedCode(code string) bool {
	if len(code) != totpDigits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
