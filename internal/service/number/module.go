package number

import "go.uber.org/fx"

// Module provides the number allocation service to Fx.
var Module = fx.Provide(NewService)
