package wallet

import "go.uber.org/fx"

// Module provides the wallet ledger service to Fx.
var Module = fx.Provide(NewService)
