package wallet

import "go.uber.org/fx"

// Module provides the wallet repository to Fx, both concretely and as Store.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) Store { return r },
)
