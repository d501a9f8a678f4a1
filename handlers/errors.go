package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/token"
	"github.com/memberhub-io/memberhub/services/totp"
	"github.com/memberhub-io/memberhub/services/user"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps service errors onto the wire taxonomy. Token failures
// are reported precisely (they leak nothing about account existence);
// credential failures stay generic; anything unrecognized is logged with
// detail and surfaced as an opaque internal error.
func writeError(c echo.Context, logger *logging.Service, err error) error {
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid credentials", Code: "invalid_credentials"})
	case errors.Is(err, user.ErrEmailTaken):
		return c.JSON(http.StatusConflict, errorResponse{Error: "email is already registered", Code: "duplicate_email"})
	case errors.Is(err, user.ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid email address", Code: "validation"})
	case errors.Is(err, user.ErrAlreadyVerified):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "email is already verified", Code: "already_verified"})
	case errors.Is(err, token.ErrTokenExpired):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "code has expired", Code: "token_expired"})
	case errors.Is(err, token.ErrAttemptsExceeded):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "too many attempts", Code: "attempts_exceeded"})
	case errors.Is(err, token.ErrTokenInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid code", Code: "token_invalid"})
	case errors.Is(err, session.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "unauthorized"})
	case errors.Is(err, session.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "session not found", Code: "not_found"})
	case errors.Is(err, totp.ErrInvalidCode), errors.Is(err, totp.ErrCodeAlreadyUsed):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid code", Code: "token_invalid"})
	case errors.Is(err, totp.ErrAlreadyEnrolled):
		return c.JSON(http.StatusConflict, errorResponse{Error: "authenticator already enrolled", Code: "already_enrolled"})
	case errors.Is(err, totp.ErrEnrolmentNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no authenticator enrolled", Code: "not_found"})
	case isValidationError(err):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"})
	default:
		if logger != nil {
			logger.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

// Password-policy failures come back as plain formatted errors from the
// user service; they are safe to echo to the caller.
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "password must") || strings.Contains(msg, "passwords do not match")
}
