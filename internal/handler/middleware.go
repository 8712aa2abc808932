package handler

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"messmate/internal/auth"
	"messmate/internal/errors"
	"messmate/internal/model"
	"messmate/internal/service"
)

const currentUserKey = "current_user"

// CurrentClaims extracts the verified token claims stored by the JWT
// middleware.
func CurrentClaims(c echo.Context) (*auth.Claims, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil, errors.ErrNoToken
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, errors.ErrTokenInvalid
	}
	return claims, nil
}

// CurrentUser returns the account loaded by ActiveUser.
func CurrentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(currentUserKey).(*model.User)
	if !ok {
		return nil, errors.ErrTokenInvalid
	}
	return user, nil
}

// ActiveUser runs after the JWT middleware. It loads the account behind the
// token and rejects deactivated ones, so a valid token cannot outlive a
// deactivation.
func ActiveUser(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := CurrentClaims(c)
			if err != nil {
				return respondError(c, err)
			}

			user, err := authService.Profile(c.Request().Context(), claims.UserID)
			if err != nil {
				return respondError(c, err)
			}
			if !user.IsActive {
				return respondError(c, errors.ErrDeactivated)
			}

			c.Set(currentUserKey, user)
			return next(c)
		}
	}
}
