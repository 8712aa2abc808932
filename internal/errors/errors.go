package errors

import (
	"errors"
	"net/http"

	"messmate/internal/otp"
)

var (
	// ErrUserNotFound is returned when no account exists for the email or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when registering an already known email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified is returned when an unverified account hits a gated flow.
	ErrNotVerified = errors.New("account not verified")
	// ErrAlreadyVerified is returned when verifying a verified account.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrDeactivated is returned when the account has been deactivated.
	ErrDeactivated = errors.New("account has been deactivated")
	// ErrDeliveryFailed is returned when the OTP email could not be sent and
	// the caller has no other path to the code.
	ErrDeliveryFailed = errors.New("failed to send verification email")
	// ErrRateLimited is returned when a throttle window is exhausted.
	ErrRateLimited = errors.New("too many requests")
	// ErrSamePassword is returned when the new password equals the old one.
	ErrSamePassword = errors.New("new password must differ from the old password")
	// ErrNoToken is returned by the auth middleware when no bearer token is present.
	ErrNoToken = errors.New("access denied, no token provided")
	// ErrTokenExpired is returned for a structurally valid but expired token.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid is returned for a malformed or badly signed token.
	ErrTokenInvalid = errors.New("invalid token")
)

// Body is the error half of the response envelope.
type Body struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// MapError translates a domain error into an HTTP status and envelope body.
// Anything unrecognized collapses to SERVER_001 so internal detail never
// crosses the boundary.
func MapError(err error) (int, Body) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, Body{Code: "USER_001", Message: "User not found"}
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusConflict, Body{Code: "DUPLICATE_001", Message: "Email already registered"}
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, Body{Code: "AUTH_001", Message: "Invalid credentials"}
	case errors.Is(err, ErrNotVerified):
		return http.StatusForbidden, Body{Code: "AUTH_002", Message: "Account not verified"}
	case errors.Is(err, otp.ErrInvalidCode), errors.Is(err, otp.ErrNoActiveChallenge):
		return http.StatusBadRequest, Body{Code: "AUTH_003", Message: "Invalid OTP"}
	case errors.Is(err, otp.ErrExpiredCode):
		return http.StatusBadRequest, Body{Code: "AUTH_003", Message: "OTP expired"}
	case errors.Is(err, ErrNoToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized, Body{Code: "AUTH_004", Message: err.Error()}
	case errors.Is(err, ErrDeactivated):
		return http.StatusForbidden, Body{Code: "AUTH_005", Message: "Account has been deactivated"}
	case errors.Is(err, ErrAlreadyVerified):
		return http.StatusBadRequest, Body{Code: "VERIFICATION_001", Message: "Account already verified"}
	case errors.Is(err, ErrDeliveryFailed):
		return http.StatusInternalServerError, Body{Code: "EMAIL_003", Message: "Failed to send OTP email"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, Body{Code: "RATE_LIMIT_001", Message: "Too many requests. Please try again later."}
	case errors.Is(err, ErrSamePassword):
		return http.StatusBadRequest, Body{Code: "VALIDATION_001", Message: err.Error()}
	default:
		return http.StatusInternalServerError, Body{Code: "SERVER_001", Message: "Internal server error"}
	}
}
