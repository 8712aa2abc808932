package auth

import (
	"context"
	"time"

	"messmate/internal/cache"
	"messmate/internal/errors"
)

const (
	resendKeyPrefix = "otp:resend:"
	verifyKeyPrefix = "otp:verify:"
)

// RateLimiter enforces fixed-window throttles on OTP issuance and
// verification, keyed per email. Redis unavailability fails open: the
// limiter is a backstop behind the client-side attempt cap, and losing it
// must not lock users out of account recovery.
type RateLimiter struct {
	cache *cache.Client

	resendWindow time.Duration
	verifyWindow time.Duration
	maxVerify    int
}

// NewRateLimiter builds a limiter allowing one code issuance per
// resendWindow and maxVerify validation attempts per verifyWindow.
func NewRateLimiter(c *cache.Client, resendWindow, verifyWindow time.Duration, maxVerify int) *RateLimiter {
	return &RateLimiter{
		cache:        c,
		resendWindow: resendWindow,
		verifyWindow: verifyWindow,
		maxVerify:    maxVerify,
	}
}

// AllowSend permits one code issuance per cooldown window for the email.
func (l *RateLimiter) AllowSend(ctx context.Context, email string) error {
	count, err := l.cache.Incr(ctx, resendKeyPrefix+email, l.resendWindow)
	if err != nil {
		return nil
	}
	if count > 1 {
		return errors.ErrRateLimited
	}
	return nil
}

// AllowVerify permits maxVerify validation attempts per window for the email.
func (l *RateLimiter) AllowVerify(ctx context.Context, email string) error {
	count, err := l.cache.Incr(ctx, verifyKeyPrefix+email, l.verifyWindow)
	if err != nil {
		return nil
	}
	if count > int64(l.maxVerify) {
		return errors.ErrRateLimited
	}
	return nil
}

// ResetVerify clears the attempt window after a successful validation.
func (l *RateLimiter) ResetVerify(ctx context.Context, email string) {
	_ = l.cache.Delete(ctx, verifyKeyPrefix+email)
}
