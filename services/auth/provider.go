package auth

import (
	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/memberhub-io/memberhub/services/mail"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/token"
	"github.com/memberhub-io/memberhub/services/totp"
	"github.com/memberhub-io/memberhub/services/user"
	"go.uber.org/fx"
)

func NewProvider(
	cfg *config.Config,
	users *user.Service,
	tokens *token.Service,
	sessions *session.Service,
	totpService *totp.Service,
	mailService *mail.Service,
	logger *logging.Service,
) *Service {
	return NewService(cfg, users, tokens, sessions, totpService, mailService, logger)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
