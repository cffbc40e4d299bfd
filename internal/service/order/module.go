package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/service/catalog"
	"github.com/Additional-Code/dialtone/internal/service/pricing"
	"github.com/Additional-Code/dialtone/internal/service/wallet"
)

// Module provides the order service to Fx.
var Module = fx.Provide(
	NewService,
	func(s *catalog.Service) Catalog { return s },
	func(s *pricing.Service) Pricing { return s },
	func(s *wallet.Service) Wallet { return s },
)
