package auth

import (
	"github.com/smallbiznis/orgstore/internal/auth/repository"
	"github.com/smallbiznis/orgstore/internal/auth/service"
	"github.com/smallbiznis/orgstore/internal/auth/token"
	"github.com/smallbiznis/orgstore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newTokenService(cfg config.Config, log *zap.Logger) (*token.Service, error) {
	if cfg.AuthJWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET not set, using an ephemeral signing key")
	}
	return token.New(cfg.AuthJWTSecret, cfg.AuthTokenTTL)
}

// Module wires the admin repository, the token capability and the auth gate.
var Module = fx.Module("auth",
	fx.Provide(repository.NewRepository),
	fx.Provide(newTokenService),
	fx.Provide(service.New),
)
