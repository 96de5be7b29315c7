package db

import "go.uber.org/fx"

// Module wires the shared gorm connection. A db.Config must be provided by the
// application config module.
var Module = fx.Module("db",
	fx.Provide(New),
)
