package disconnection

import "go.uber.org/fx"

// Module provides the disconnection workflow service to Fx.
var Module = fx.Provide(NewService)
