package session

import (
	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/geoip"
	"github.com/memberhub-io/memberhub/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(cfg *config.Config, db *gorm.DB, resolver *geoip.Service, logger *logging.Service) *Service {
	return NewService(&cfg.Session, db, resolver, logger)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
