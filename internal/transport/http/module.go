package http

import (
	"go.uber.org/fx"

	catalogtransport "github.com/Additional-Code/dialtone/internal/transport/http/catalog"
	disconnectiontransport "github.com/Additional-Code/dialtone/internal/transport/http/disconnection"
	invoicetransport "github.com/Additional-Code/dialtone/internal/transport/http/invoice"
	numbertransport "github.com/Additional-Code/dialtone/internal/transport/http/number"
	ordertransport "github.com/Additional-Code/dialtone/internal/transport/http/order"
	wallettransport "github.com/Additional-Code/dialtone/internal/transport/http/wallet"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	catalogtransport.Module,
	ordertransport.Module,
	numbertransport.Module,
	disconnectiontransport.Module,
	invoicetransport.Module,
	wallettransport.Module,
)
