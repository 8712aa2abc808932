// Package client is the Go consumer of the auth API: a thin HTTP client, the
// screen-flow state machine, a durable session store and the OTP entry model.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"messmate/internal/errors"
	"messmate/internal/model"
)

// Error codes the client synthesizes for transport-level failures, kept
// distinct from server codes so screens can offer "check your connection"
// instead of "check your input".
const (
	CodeNetworkTimeout = "NETWORK_TIMEOUT"
	CodeNetworkError   = "NETWORK_ERROR"
)

// APIError is the single error shape screens consume. Every failure, server
// or transport, is normalized into one before leaving this package.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Session is the authenticated state persisted across reloads.
type Session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Client calls the auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *errors.Body    `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{Code: CodeNetworkError, Message: err.Error()}
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Code: CodeNetworkError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if nerr, ok := err.(net.Error); (ok && nerr.Timeout()) || ctx.Err() == context.DeadlineExceeded {
			return &APIError{Code: CodeNetworkTimeout, Message: "request timed out"}
		}
		return &APIError{Code: CodeNetworkError, Message: err.Error()}
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return &APIError{Code: CodeNetworkError, Message: "malformed server response"}
	}

	if !env.Success {
		apiErr := &APIError{Code: "SERVER_001", Message: "Unexpected server error"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Code: CodeNetworkError, Message: "malformed server response"}
		}
	}
	return nil
}

// RegisterParams carries a registration request.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Register creates an account and triggers code delivery.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	var data struct {
		User *model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", params, &data); err != nil {
		return nil, err
	}
	return data.User, nil
}

type emailOTPBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Verify submits the six-digit code for account verification.
func (c *Client) Verify(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/verify", "", emailOTPBody{Email: email, OTP: code}, nil)
}

// ResendOTP requests a fresh verification code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.do(ctx, http.MethodPost, "/api/auth/resend-otp", "", body, nil)
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var data struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &data); err != nil {
		return nil, err
	}
	session := &Session{Token: data.Token}
	if data.User != nil {
		session.User = *data.User
	}
	return session, nil
}

// ForgotPassword requests a password reset code.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.do(ctx, http.MethodPost, "/api/auth/forgot-password", "", body, nil)
}

// VerifyPasswordResetOTP checks the reset code without consuming it.
func (c *Client) VerifyPasswordResetOTP(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/verify-password-reset-otp", "", emailOTPBody{Email: email, OTP: code}, nil)
}

// ResetPassword sets a new password, authorized by the reset code.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	body := struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}{Email: email, OTP: code, NewPassword: newPassword}
	return c.do(ctx, http.MethodPost, "/api/auth/reset-password", "", body, nil)
}

// Me fetches the profile behind the token.
func (c *Client) Me(ctx context.Context, token string) (*model.User, error) {
	var data struct {
		User *model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &data); err != nil {
		return nil, err
	}
	return data.User, nil
}
