// Package otp generates and validates the 6-digit one-time codes used for
// account verification and password reset.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Digits is the fixed code length.
const Digits = 6

var codeSpace = big.NewInt(1_000_000)

var (
	// ErrNoActiveChallenge is returned when no code is stored for the user.
	ErrNoActiveChallenge = errors.New("no active verification code")
	// ErrInvalidCode is returned when the submitted code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrExpiredCode is returned when the stored code is past its expiry.
	ErrExpiredCode = errors.New("verification code expired")
)

// Generator produces codes with a fixed time-to-live.
type Generator struct {
	ttl time.Duration
}

// NewGenerator creates a generator issuing codes valid for ttl.
func NewGenerator(ttl time.Duration) *Generator {
	return &Generator{ttl: ttl}
}

// Generate returns a uniformly random 6-digit code and its expiry. The code
// is drawn from [0, 1000000) and zero-padded, so leading-zero codes occur at
// their natural frequency.
func (g *Generator) Generate() (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), time.Now().Add(g.ttl), nil
}

// TTL returns the configured code lifetime.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// WellFormed reports whether s is exactly six ASCII digits.
func WellFormed(s string) bool {
	if len(s) != Digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Validate checks a submitted code against the stored challenge. Both sides
// are compared as whitespace-trimmed strings; no numeric coercion. The check
// order mirrors the lifecycle: absent challenge, then mismatch, then expiry.
func Validate(submitted string, stored *string, expiry *time.Time, now time.Time) error {
	if stored == nil || expiry == nil {
		return ErrNoActiveChallenge
	}
	if strings.TrimSpace(submitted) != strings.TrimSpace(*stored) {
		return ErrInvalidCode
	}
	if !now.Before(*expiry) {
		return ErrExpiredCode
	}
	return nil
}
