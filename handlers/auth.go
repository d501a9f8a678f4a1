package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/memberhub-io/memberhub/services/auth"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/user"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *logging.Service
}

func NewAuthHandler(authService *auth.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

// requestMetadata captures what the transport knows about the client.
// The forwarded header takes precedence; when absent the session service
// falls back to public-IP discovery.
func requestMetadata(c echo.Context) session.Metadata {
	forwarded := c.Request().Header.Get("X-Forwarded-For")
	if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
		forwarded = forwarded[:idx]
	}

	return session.Metadata{
		UserAgent:   c.Request().UserAgent(),
		ForwardedIP: strings.TrimSpace(forwarded),
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "email and password are required", Code: "validation"})
	}

	u, err := h.auth.Register(req.Email, req.Password, user.Profile{Name: req.Name, Phone: req.Phone})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"user_id": u.ID,
		"email":   u.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password, requestMetadata(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	if result.TwoFactorRequired {
		return c.JSON(http.StatusAccepted, map[string]any{
			"two_factor_required": true,
			"user_id":             result.UserID,
		})
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"token":   result.Token,
		"session": result.Session,
	})
}

type twoFactorRequest struct {
	UserID uint   `json:"user_id"`
	Code   string `json:"code"`
}

func (h *AuthHandler) CompleteTwoFactor(c echo.Context) error {
	var req twoFactorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}
	if req.UserID == 0 || req.Code == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "user_id and code are required", Code: "validation"})
	}

	result, err := h.auth.CompleteTwoFactor(c.Request().Context(), req.UserID, req.Code, requestMetadata(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"token":   result.Token,
		"session": result.Session,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}

	if err := h.auth.VerifyEmail(req.Email, req.Code); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"verified": true})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}

	if err := h.auth.ResendVerification(req.Email); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "if the address is registered, a verification code has been sent",
	})
}

// ForgotPassword always answers the same way. The auth service swallows
// every internal branch so the response cannot be used to probe for
// registered addresses.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}

	h.auth.RequestPasswordReset(req.Email)

	return c.JSON(http.StatusOK, map[string]any{
		"message": "if the address is registered, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request", Code: "validation"})
	}
	if req.NewPassword != req.ConfirmPassword {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "passwords do not match", Code: "validation"})
	}

	if err := h.auth.ResetPassword(req.Token, req.NewPassword); err != nil {
		return writeError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"message": "password has been reset"})
}
