package pricing

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/service/catalog"
)

// Module provides the order pricing snapshot service to Fx.
var Module = fx.Provide(
	NewService,
	func(s *catalog.Service) ProductLookup { return s },
)
