package handlers

import (
	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/middleware/ratelimit"
	"github.com/memberhub-io/memberhub/middleware/sessionauth"
	"github.com/memberhub-io/memberhub/server"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/user"
	"go.uber.org/fx"
)

// RegisterRoutes wires the public auth surface and the authenticated
// account surface. Credential and OTP endpoints share one fixed-window
// limiter keyed on client IP.
func RegisterRoutes(
	srv *server.Server,
	cfg *config.Config,
	authHandler *AuthHandler,
	accountHandler *AccountHandler,
	sessions *session.Service,
	users *user.Service,
) {
	limiter := ratelimit.Middleware(&ratelimit.Config{
		Rate:   cfg.RateLimit.Rate,
		Period: cfg.RateLimit.Period,
	})

	api := srv.Group("/api")

	authGroup := api.Group("/auth", limiter)
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/two-factor", authHandler.CompleteTwoFactor)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)
	authGroup.POST("/resend-verification", authHandler.ResendVerification)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/reset-password", authHandler.ResetPassword)

	account := api.Group("", sessionauth.Middleware(sessions, users))
	account.GET("/me", accountHandler.Me)
	account.POST("/me/two-factor", accountHandler.SetTwoFactor)
	account.POST("/me/authenticator", accountHandler.EnrolAuthenticator)
	account.POST("/me/authenticator/confirm", accountHandler.ConfirmAuthenticator)
	account.DELETE("/me/authenticator", accountHandler.DisableAuthenticator)
	account.GET("/sessions", accountHandler.ListSessions)
	account.DELETE("/sessions/:id", accountHandler.RevokeSession)
	account.DELETE("/sessions", accountHandler.RevokeOtherSessions)
}

var Module = fx.Options(
	fx.Provide(NewAuthHandler),
	fx.Provide(NewAccountHandler),
	fx.Invoke(RegisterRoutes),
)
