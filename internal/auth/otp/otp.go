// Package otp generates and verifies second-factor codes: RFC 6238 TOTP for
// authenticator apps, and short-lived delivered codes for email and SMS.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	otplib "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var ErrInvalidOrExpiredCode = errors.New("otp: invalid or expired code")

// Delivered codes use the base32 alphabet so they survive being read aloud
// or typed from an SMS (no ambiguous 0/O or 1/I).
const (
	deliveredCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	deliveredCodeLength   = 6

	// DeliveredCodeTTL is how long an emailed or texted code stays valid.
	DeliveredCodeTTL = 5 * time.Minute
)

// NewTOTPKey provisions a fresh TOTP secret for a user. The returned key
// exposes both the base32 secret and the otpauth:// URL for QR enrollment.
func NewTOTPKey(issuer, account string) (*otplib.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      30,
		Digits:      otplib.DigitsSix,
		Algorithm:   otplib.AlgorithmSHA1,
	})
}

// VerifyTOTP checks a 6-digit authenticator code against the user's secret.
// One period of clock skew is tolerated in each direction.
func VerifyTOTP(code, secret string, now time.Time) error {
	valid, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otplib.DigitsSix,
		Algorithm: otplib.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return ErrInvalidOrExpiredCode
	}
	return nil
}

// GenerateDeliveredCode produces a 6-character code for email or SMS delivery.
func GenerateDeliveredCode() (string, error) {
	buf := make([]byte, deliveredCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = deliveredCodeAlphabet[int(b)%len(deliveredCodeAlphabet)]
	}
	return string(buf), nil
}

// VerifyDeliveredCode checks a submitted code against the stored one. The
// comparison is constant-time and case-insensitive; a code presented at its
// exact expiry instant is still accepted.
func VerifyDeliveredCode(submitted, stored string, expiresAt, now time.Time) error {
	if stored == "" || now.After(expiresAt) {
		return ErrInvalidOrExpiredCode
	}
	a := []byte(strings.ToUpper(strings.TrimSpace(submitted)))
	b := []byte(strings.ToUpper(stored))
	if len(a) != len(b) || subtle.ConstantTimeCompare(a, b) != 1 {
		return ErrInvalidOrExpiredCode
	}
	return nil
}
