package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/dialtone/internal/cache"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/messaging"
)

// Transactor runs fn directly, marking ctx as inside a unit of work.
type Transactor struct{}

func (Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if database.InTx(ctx) {
		return fn(ctx)
	}
	return fn(database.MarkUnitOfWork(ctx))
}

// Publisher records published events instead of sending them.
type Publisher struct {
	mu     sync.Mutex
	events []messaging.Event
	keys   []string
}

func (p *Publisher) Publish(_ context.Context, key, value []byte, _ ...messaging.Header) error {
	var ev messaging.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	p.keys = append(p.keys, string(key))
	return nil
}

func (p *Publisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *Publisher) Topic() string { return "dialtone.test" }

// Types returns the published event types in order.
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// Events returns a copy of the published events.
func (p *Publisher) Events() []messaging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messaging.Event(nil), p.events...)
}

// NewCache returns an empty in-process cache.
func NewCache() *cache.Memory {
	return cache.NewMemory()
}

// Logger returns a zap logger that writes through t.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// Config returns the configuration the service tests run with.
func Config() config.Config {
	return config.Config{
		Cache: config.Cache{Driver: "noop", DefaultTTL: time.Minute},
		Lock:  config.Lock{Driver: "local", WaitTimeout: 2 * time.Second},
		Billing: config.Billing{
			InvoiceNetDays:        15,
			AutoInvoiceOnDelivery: true,
			WalletStartingBalance: decimal.Zero,
			LowBalanceThreshold:   decimal.NewFromInt(10),
		},
	}
}

// Epoch is the fixed instant service tests start from.
var Epoch = time.Date(2026, time.September, 14, 9, 30, 0, 0, time.UTC)
