// Package auth generates the one-time codes a login fixture with a TOTP
// secret needs after the password step.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var ErrEmptySecret = errors.New("totp secret cannot be empty")

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
}

// GenerateTOTP returns the code for secret at the current time.
func GenerateTOTP(secret string) (string, error) {
	return GenerateTOTPAt(secret, time.Now())
}

func GenerateTOTPAt(secret string, at time.Time) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	passcode, err := totp.GenerateCodeCustom(normalizeSecret(secret), at.UTC(), validateOpts)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return passcode, nil
}

// ValidateTOTP checks passcode against secret, allowing one period of skew.
func ValidateTOTP(passcode, secret string) (bool, error) {
	if secret == "" {
		return false, ErrEmptySecret
	}
	if passcode == "" {
		return false, fmt.Errorf("passcode cannot be empty")
	}
	valid, err := totp.ValidateCustom(passcode, normalizeSecret(secret), time.Now().UTC(), validateOpts)
	if err != nil {
		return false, fmt.Errorf("failed to validate totp code: %w", err)
	}
	return valid, nil
}
