package app

import (
	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/database"
	"github.com/memberhub-io/memberhub/handlers"
	"github.com/memberhub-io/memberhub/server"
	"github.com/memberhub-io/memberhub/services/auth"
	"github.com/memberhub-io/memberhub/services/geoip"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/memberhub-io/memberhub/services/mail"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/token"
	"github.com/memberhub-io/memberhub/services/totp"
	"github.com/memberhub-io/memberhub/services/user"
	"go.uber.org/fx"
)

// New assembles the application graph. Models registered here are the
// ones database.ProvideDatabase auto-migrates on boot.
func New(cfg *config.Config) *fx.App {
	return fx.New(
		config.NewProvider(cfg),
		logging.Module,
		fx.Provide(func() *database.ModelsOption {
			return database.WithModels(
				&user.User{},
				&token.SecretToken{},
				&session.Session{},
				&totp.Enrolment{},
				&totp.UsedCode{},
			)
		}),
		database.Module,
		mail.Module,
		geoip.Module,
		user.Module,
		token.Module,
		session.Module,
		totp.Module,
		auth.Module,
		server.NewProvider(),
		handlers.Module,
	)
}
