package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/memberhub-io/memberhub/middleware/sessionauth"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/totp"
	"github.com/memberhub-io/memberhub/services/user"
)

// AccountHandler serves the authenticated surface: profile, session
// management and second-factor settings.
type AccountHandler struct {
	users    *user.Service
	sessions *session.Service
	totp     *totp.Service
	logger   *logging.Service
}

func NewAccountHandler(users *user.Service, sessions *session.Service, totpService *totp.Service, logger *logging.Service) *AccountHandler {
	return &AccountHandler{
		users:    users,
		sessions: sessions,
		totp:     totpService,
		logger:   logger,
	}
}

func (h *AccountHandler) Me(c echo.Context) error {
	u := sessionauth.CurrentUser(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Code: "unauthorized"})
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AccountHandler) ListSessions(c echo.Context) error {
	u := sessionauth.CurrentUser(c)
	sessions, err := h.sessions.List(u.ID, sessionauth.CurrentToken(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

// RevokeSession deactivates one session. Revoking the session backing
// this very request is allowed; the response flags it so the client
// knows to discard its token.
func (h *AccountHandler) RevokeSession(c echo.Context) error {
	u := sessionauth.CurrentUser(c)

	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid session id", Code: "validation"})
	}

	current, err := h.sessions.Revoke(u.ID, uint(sessionID), sessionauth.CurrentToken(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"revoked":         true,
		"current_revoked": current,
	})
}

func (h *AccountHandler) RevokeOtherSessions(c echo.Context) error {
	u := sessionauth.CurrentUser(c)

	if err := h.sessions.RevokeAll(u.ID, sessionauth.CurrentToken(c)); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"revoked": true})
}

type twoFactorToggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AccountHandler) SetTwoFactor(c echo.Context) error {
	u := sessionauth.CurrentUser(c)

	var req twoFactorToggleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}

	if err := h.users.SetTwoFactor(u.ID, req.Enabled); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"two_factor_enabled": req.Enabled})
}

func (h *AccountHandler) EnrolAuthenticator(c echo.Context) error {
	u := sessionauth.CurrentUser(c)

	enrolment, err := h.totp.Enrol(u.ID, u.Email)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"secret":           enrolment.Secret,
		"provisioning_uri": h.totp.ProvisioningURI(enrolment, u.Email),
	})
}

type confirmAuthenticatorRequest struct {
	Code string `json:"code"`
}

func (h *AccountHandler) ConfirmAuthenticator(c echo.Context) error {
	u := sessionauth.CurrentUser(c)

	var req confirmAuthenticatorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}

	if err := h.totp.Confirm(u.ID, req.Code); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"confirmed": true})
}

func (h *AccountHandler) DisableAuthenticator(c echo.Context) error {
	u := sessionauth.CurrentUser(c)

	if err := h.totp.Disable(u.ID); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"disabled": true})
}
