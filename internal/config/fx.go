package config

import (
	"github.com/smallbiznis/orgstore/pkg/db"
	"go.uber.org/fx"
)

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(func(cfg Config) db.Config { return cfg.DB() }),
)
