// Package crypto provides cryptographic utilities for Stockwarden.
package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTP code bounds. Codes are uniformly distributed in [OTPMin, OTPMax].
const (
	OTPMin = 100000
	OTPMax = 999999
)

var otpSpan = big.NewInt(OTPMax - OTPMin + 1)

// GenerateOTP returns a 6-digit numeric one-time password from a CSPRNG.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+OTPMin), nil
}

// GenerateSecret returns length random bytes, for signing keys in development setups.
func GenerateSecret(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
