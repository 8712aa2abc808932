package router

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"messmate/internal/auth"
	"messmate/internal/config"
	"messmate/internal/errors"
	"messmate/internal/handler"
	"messmate/internal/service"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	authService service.AuthService,
	authHandler *handler.AuthHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/verify", authHandler.VerifyOTP)
	api.POST("/auth/resend-otp", authHandler.ResendOTP)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.POST("/auth/verify-password-reset-otp", authHandler.VerifyPasswordResetOTP)
	api.POST("/auth/reset-password", authHandler.ResetPassword)

	// Secured routes (require JWT authentication and an active account)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
		ErrorHandler: jwtErrorHandler,
	}), handler.ActiveUser(authService))

	secured.GET("/auth/me", authHandler.Me)
	secured.PUT("/auth/me", authHandler.UpdateMe)
	secured.POST("/auth/logout", authHandler.Logout)
}

// jwtErrorHandler maps middleware failures onto the shared envelope, keeping
// "session expired" distinguishable from "missing or malformed token".
func jwtErrorHandler(c echo.Context, err error) error {
	mapped := errors.ErrTokenInvalid
	switch {
	case stderrors.Is(err, echojwt.ErrJWTMissing):
		mapped = errors.ErrNoToken
	case stderrors.Is(err, jwt.ErrTokenExpired):
		mapped = errors.ErrTokenExpired
	}

	status, body := errors.MapError(mapped)
	return c.JSON(status, handler.Response{
		Success: false,
		Error:   &body,
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
