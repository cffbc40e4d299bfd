package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/dialtone/internal/cache"
	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/logger"
	"github.com/Additional-Code/dialtone/internal/messaging"
	"github.com/Additional-Code/dialtone/internal/observability"
	repositorycatalog "github.com/Additional-Code/dialtone/internal/repository/catalog"
	repositorydisconnection "github.com/Additional-Code/dialtone/internal/repository/disconnection"
	repositoryinvoice "github.com/Additional-Code/dialtone/internal/repository/invoice"
	repositorynumber "github.com/Additional-Code/dialtone/internal/repository/number"
	repositoryorder "github.com/Additional-Code/dialtone/internal/repository/order"
	repositorypricing "github.com/Additional-Code/dialtone/internal/repository/pricing"
	repositorywallet "github.com/Additional-Code/dialtone/internal/repository/wallet"
	grpcserver "github.com/Additional-Code/dialtone/internal/server/grpc"
	httpserver "github.com/Additional-Code/dialtone/internal/server/http"
	servicecatalog "github.com/Additional-Code/dialtone/internal/service/catalog"
	servicedisconnection "github.com/Additional-Code/dialtone/internal/service/disconnection"
	serviceinvoice "github.com/Additional-Code/dialtone/internal/service/invoice"
	servicenumber "github.com/Additional-Code/dialtone/internal/service/number"
	serviceorder "github.com/Additional-Code/dialtone/internal/service/order"
	servicepricing "github.com/Additional-Code/dialtone/internal/service/pricing"
	servicewallet "github.com/Additional-Code/dialtone/internal/service/wallet"
	transporthttp "github.com/Additional-Code/dialtone/internal/transport/http"
	"github.com/Additional-Code/dialtone/internal/worker"
	workerorder "github.com/Additional-Code/dialtone/internal/worker/order"
	workerwallet "github.com/Additional-Code/dialtone/internal/worker/wallet"
)

// Infra provides configuration, logging and the storage/messaging clients.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	clock.Module,
	database.Module,
	cache.Module,
	lock.Module,
	messaging.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	repositorycatalog.Module,
	repositoryorder.Module,
	repositorypricing.Module,
	repositorynumber.Module,
	repositorydisconnection.Module,
	repositoryinvoice.Module,
	repositorywallet.Module,
	servicecatalog.Module,
	servicepricing.Module,
	servicewallet.Module,
	serviceorder.Module,
	servicenumber.Module,
	servicedisconnection.Module,
	serviceinvoice.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// GRPC adds the gRPC listener with health reporting.
var GRPC = grpcserver.Module

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
	workerwallet.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
