package partition

import "go.uber.org/fx"

// Module wires the partition store.
var Module = fx.Module("partition",
	fx.Provide(NewStore),
)
