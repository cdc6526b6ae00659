package auth

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPVerifier checks the second factor presented to the run API.
type TOTPVerifier struct {
	secret string
	now    func() time.Time
}

// NewTOTPVerifier normalizes secret (spaces removed, upper-cased) and
// rejects it unless it is valid base32.
func NewTOTPVerifier(secret string) (*TOTPVerifier, error) {
	clean := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	if clean == "" {
		return nil, fmt.Errorf("totp secret cannot be empty")
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(clean, "=")); err != nil {
		return nil, fmt.Errorf("totp secret is not valid base32: %w", err)
	}
	return &TOTPVerifier{secret: clean, now: time.Now}, nil
}

// Code returns the passcode valid at t.
func (v *TOTPVerifier) Code(t time.Time) (string, error) {
	passcode, err := totp.GenerateCodeCustom(v.secret, t.UTC(), validateOpts)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return passcode, nil
}

// Verify reports whether passcode is valid now, allowing one period of
// clock skew either way.
func (v *TOTPVerifier) Verify(passcode string) (bool, error) {
	if passcode == "" {
		return false, fmt.Errorf("passcode cannot be empty")
	}
	valid, err := totp.ValidateCustom(passcode, v.secret, v.now().UTC(), validateOpts)
	if err != nil {
		return false, fmt.Errorf("failed to validate totp code: %w", err)
	}
	return valid, nil
}
