package testutil

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/cache"
	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/lock"
)

// Env bundles the in-memory collaborators a service test wires together.
type Env struct {
	Orders         *OrderStore
	Catalog        *CatalogStore
	Pricing        *PricingStore
	Numbers        *NumberStore
	Disconnections *DisconnectionStore
	Invoices       *InvoiceStore
	Wallet         *WalletStore

	Tx        Transactor
	Locker    lock.Locker
	Clock     *clock.Fake
	Publisher *Publisher
	Cache     *cache.Memory
	Config    config.Config
	Logger    *zap.Logger
}

// NewEnv returns an empty environment pinned at Epoch.
func NewEnv(t testing.TB) *Env {
	cfg := Config()
	return &Env{
		Orders:         NewOrderStore(),
		Catalog:        NewCatalogStore(),
		Pricing:        NewPricingStore(),
		Numbers:        NewNumberStore(),
		Disconnections: NewDisconnectionStore(),
		Invoices:       NewInvoiceStore(),
		Wallet:         NewWalletStore(),
		Locker:         lock.NewLocal(cfg.Lock.WaitTimeout),
		Clock:          clock.NewFake(Epoch),
		Publisher:      &Publisher{},
		Cache:          NewCache(),
		Config:         cfg,
		Logger:         Logger(t),
	}
}

// Advance moves the environment clock forward.
func (e *Env) Advance(d time.Duration) {
	e.Clock.Advance(d)
}
