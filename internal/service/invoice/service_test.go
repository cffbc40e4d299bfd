package invoice_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/lock"
	"github.com/Additional-Code/dialtone/internal/service/invoice"
	"github.com/Additional-Code/dialtone/internal/testutil"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

func setup(t *testing.T) (*testutil.Env, *invoice.Service) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := invoice.NewService(invoice.Params{
		Store: env.Invoices, Orders: env.Orders, Pricing: env.Pricing, Transactor: env.Tx,
		Locker: env.Locker, Clock: env.Clock, Publisher: env.Publisher, Config: env.Config, Logger: env.Logger,
	})
	return env, svc
}

func deliveredOrder(t *testing.T, env *testutil.Env, quantity int, mrc string) *entity.Order {
	t.Helper()
	ctx := context.Background()
	o := &entity.Order{CustomerID: 8, ProductID: 1, CountryID: 1, Quantity: quantity, Status: entity.OrderStatusDelivered}
	require.NoError(t, env.Orders.Create(ctx, o))
	if mrc != "" {
		require.NoError(t, env.Pricing.Save(ctx, &entity.OrderPricing{
			OrderID:     o.ID,
			PricingType: entity.PricingCurrent,
			Rates: entity.Rates{
				entity.RateNRC: decimal.NewFromInt(50),
				entity.RateMRC: decimal.RequireFromString(mrc),
			},
		}))
	}
	return o
}

func TestGenerateDerivesAmountsAndDates(t *testing.T) {
	env, svc := setup(t)
	o := deliveredOrder(t, env, 2, "10")

	inv, err := svc.Generate(context.Background(), o.ID, "2026-02")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^INV-202602-[0-9A-Z]{26}$`), inv.InvoiceNumber)
	assert.Equal(t, "10", inv.MRCAmount.String())
	assert.True(t, inv.UsageAmount.IsZero())
	assert.Equal(t, "20", inv.Amount.String())
	assert.Equal(t, entity.InvoicePending, inv.Status)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), inv.FromDate)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), inv.ToDate)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Equal(t, o.CustomerID, inv.CustomerID)
}

func TestUpdateUsageRederivesAmount(t *testing.T) {
	env, svc := setup(t)
	o := deliveredOrder(t, env, 2, "10")
	ctx := context.Background()

	inv, err := svc.Generate(ctx, o.ID, "2026-09")
	require.NoError(t, err)

	updated, err := svc.UpdateUsage(ctx, inv.ID, decimal.RequireFromString("12.3456"))
	require.NoError(t, err)
	assert.Equal(t, "32.3456", updated.Amount.String())

	stored, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(entity.InvoiceAmount(stored.MRCAmount, stored.Quantity, stored.UsageAmount)))

	updated, err = svc.UpdateUsage(ctx, inv.ID, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "20", updated.Amount.String())

	_, err = svc.UpdateUsage(ctx, inv.ID, decimal.NewFromInt(-1))
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func TestGenerateGuards(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()

	noPricing := deliveredOrder(t, env, 1, "")
	_, err := svc.Generate(ctx, noPricing.ID, "2026-09")
	assert.True(t, errorbank.Is(err, errorbank.KindPricingUnavailable))

	open := &entity.Order{CustomerID: 8, ProductID: 1, CountryID: 1, Quantity: 1, Status: entity.OrderStatusAmountPaid}
	require.NoError(t, env.Orders.Create(ctx, open))
	_, err = svc.Generate(ctx, open.ID, "2026-09")
	assert.True(t, errorbank.Is(err, errorbank.KindInvalidTransition))

	ok := deliveredOrder(t, env, 1, "3")
	_, err = svc.Generate(ctx, ok.ID, "September")
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	_, err = svc.Generate(ctx, ok.ID, "2026-09")
	require.NoError(t, err)
	_, err = svc.Generate(ctx, ok.ID, "2026-09")
	assert.True(t, errorbank.Is(err, errorbank.KindConflict))
}

func TestGenerateForPeriodSkipsInvoicedOrders(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()

	first := deliveredOrder(t, env, 1, "4")
	deliveredOrder(t, env, 3, "5")
	missing := deliveredOrder(t, env, 1, "")

	_, err := svc.Generate(ctx, first.ID, "2026-10")
	require.NoError(t, err)

	summary, err := svc.GenerateForPeriod(ctx, "2026-10")
	require.NoError(t, err)
	assert.Len(t, summary.Generated, 1)
	assert.Equal(t, 1, summary.Skipped)
	assert.Contains(t, summary.Failed, missing.ID)

	again, err := svc.GenerateForPeriod(ctx, "2026-10")
	require.NoError(t, err)
	assert.Empty(t, again.Generated)
	assert.Equal(t, 2, again.Skipped)
}

// busyOrderLocker times out on one order's key and grants every other key.
type busyOrderLocker struct {
	busy string
}

func (l busyOrderLocker) Acquire(_ context.Context, key string) (func(), error) {
	if key == l.busy {
		return nil, lock.ErrTimeout
	}
	return func() {}, nil
}

func TestGenerateForPeriodReportsBusyOrdersAsFailed(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	free := deliveredOrder(t, env, 1, "4")
	busy := deliveredOrder(t, env, 1, "5")

	svc := invoice.NewService(invoice.Params{
		Store: env.Invoices, Orders: env.Orders, Pricing: env.Pricing, Transactor: env.Tx,
		Locker: busyOrderLocker{busy: lock.Key("order", busy.ID)}, Clock: env.Clock,
		Publisher: env.Publisher, Config: env.Config, Logger: env.Logger,
	})

	summary, err := svc.GenerateForPeriod(ctx, "2026-10")
	require.NoError(t, err)
	require.Len(t, summary.Generated, 1)
	assert.Equal(t, free.ID, summary.Generated[0].OrderID)
	assert.Zero(t, summary.Skipped)
	assert.Contains(t, summary.Failed, busy.ID)

	_, err = svc.Generate(ctx, free.ID, "2026-10")
	assert.ErrorIs(t, err, invoice.ErrAlreadyInvoiced)
}
