package pricing

import "go.uber.org/fx"

// Module provides the pricing repository to Fx, both concretely and as Store.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) Store { return r },
)
