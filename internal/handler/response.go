package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"messmate/internal/errors"
)

// Response is the envelope every endpoint returns. Success responses carry
// Message and optionally Data; failures carry Error.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *errors.Body `json:"error,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(c echo.Context, err error) error {
	status, body := errors.MapError(err)
	return c.JSON(status, Response{
		Success: false,
		Error:   &body,
	})
}

func respondBadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &errors.Body{Code: "VALIDATION_001", Message: message},
	})
}

// respondValidation flattens validator errors into a field-to-message map so
// clients can attach messages to individual inputs.
func respondValidation(c echo.Context, err error) error {
	details := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = validationMessage(fe)
		}
	}
	return c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &errors.Body{
			Code:    "VALIDATION_001",
			Message: "Validation failed",
			Details: details,
		},
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
