package invoice

import "go.uber.org/fx"

// Module provides the invoice repository to Fx, both concretely and as Store.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) Store { return r },
)
