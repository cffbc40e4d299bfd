package invoice

import "go.uber.org/fx"

// Module provides the invoice engine to Fx.
var Module = fx.Provide(NewService)
