package geoip

import (
	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"go.uber.org/fx"
)

func NewProvider(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(&cfg.GeoIP, logger)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
