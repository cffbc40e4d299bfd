package pricing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/service/catalog"
	"github.com/Additional-Code/dialtone/internal/service/pricing"
	"github.com/Additional-Code/dialtone/internal/testutil"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

func setup(t *testing.T) (*testutil.Env, *pricing.Service) {
	t.Helper()
	env := testutil.NewEnv(t)
	env.Catalog.AddProduct(1, entity.ProductTwoWaySMS)
	cat := catalog.NewService(catalog.Params{Store: env.Catalog, Cache: env.Cache, Config: env.Config, Logger: env.Logger})
	svc := pricing.NewService(pricing.Params{
		Store: env.Pricing, Orders: env.Orders, Products: cat,
		Transactor: env.Tx, Locker: env.Locker, Clock: env.Clock, Logger: env.Logger,
	})
	return env, svc
}

func newOrder(t *testing.T, env *testutil.Env, status entity.OrderStatus) *entity.Order {
	t.Helper()
	o := &entity.Order{CustomerID: 9, ProductID: 1, CountryID: 1, Quantity: 1, Status: status, PricingState: entity.PricingStatePending}
	require.NoError(t, env.Orders.Create(context.Background(), o))
	return o
}

func TestUpsertKeepsOnlyRelevantPositiveFields(t *testing.T) {
	env, svc := setup(t)
	o := newOrder(t, env, entity.OrderStatusInProgress)

	row, err := svc.Upsert(context.Background(), pricing.UpsertInput{
		OrderID:     o.ID,
		PricingType: entity.PricingDesired,
		Fields: map[string]string{
			"nrc": "$10.00",
			"mrc": " $1,200.5 ",
			"arc": "",
			"mo":  "n/a",
			"mt":  "0",
			"ppm": "3.00",
		},
		Terms: entity.Terms{ContractTerm: "12 months"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"mrc", "nrc"}, row.Rates.Fields())
	assert.True(t, row.Rates[entity.RateMRC].Equal(decimal.RequireFromString("1200.5")))
	assert.Equal(t, "12 months", row.ContractTerm)
	assert.Empty(t, row.BillingPulse)

	stored, err := env.Orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PricingStateRecorded, stored.PricingState)
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	env, svc := setup(t)
	o := newOrder(t, env, entity.OrderStatusInProgress)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, pricing.UpsertInput{OrderID: o.ID, PricingType: entity.PricingDesired, Fields: map[string]string{"nrc": "1", "mrc": "2"}})
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, pricing.UpsertInput{OrderID: o.ID, PricingType: entity.PricingDesired, Fields: map[string]string{"mo": "0.05"}})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	pair, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, pair.Desired)
	assert.Nil(t, pair.Current)
	assert.Equal(t, []string{"mo"}, pair.Desired.Rates.Fields())
}

func TestUpsertRejectedOutsideInProgress(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()

	for _, status := range []entity.OrderStatus{entity.OrderStatusConfirmed, entity.OrderStatusDelivered, entity.OrderStatusCancelled} {
		o := newOrder(t, env, status)
		for _, kind := range []entity.PricingType{entity.PricingDesired, entity.PricingCurrent} {
			_, err := svc.Upsert(ctx, pricing.UpsertInput{OrderID: o.ID, PricingType: kind, Fields: map[string]string{"mrc": "1"}})
			assert.True(t, errorbank.Is(err, errorbank.KindInvalidTransition), "%s/%s: %v", status, kind, err)
		}
		pair, err := svc.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Nil(t, pair.Current)
		assert.Nil(t, pair.Desired)
	}
}

func TestUpsertValidatesInput(t *testing.T) {
	env, svc := setup(t)
	o := newOrder(t, env, entity.OrderStatusInProgress)

	_, err := svc.Upsert(context.Background(), pricing.UpsertInput{OrderID: o.ID, PricingType: "vendor"})
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	_, err = svc.Upsert(context.Background(), pricing.UpsertInput{OrderID: 404, PricingType: entity.PricingDesired})
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))
}

func TestFreezeMergesPlanOverrideAndDesired(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	o := newOrder(t, env, entity.OrderStatusInProgress)
	product, err := env.Catalog.GetProduct(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, pricing.UpsertInput{OrderID: o.ID, PricingType: entity.PricingDesired,
		Fields: map[string]string{"nrc": "9", "mrc": "9", "mo": "0.02"},
		Terms:  entity.Terms{EstimatedLeadTime: "5 days"}})
	require.NoError(t, err)

	plan := &entity.PricePlan{
		Rates: entity.Rates{
			entity.RateNRC: decimal.NewFromInt(4),
			entity.RateMRC: decimal.NewFromInt(3),
			entity.RatePPM: decimal.NewFromInt(1),
		},
		Terms: entity.Terms{BillingPulse: "1/1"},
	}
	current, err := svc.Freeze(ctx, o, product, plan, map[string]string{"mrc": "2.75"})
	require.NoError(t, err)

	assert.Equal(t, []string{"mo", "mrc", "nrc"}, current.Rates.Fields())
	assert.Equal(t, "4", current.Rates[entity.RateNRC].String())
	assert.Equal(t, "2.75", current.Rates[entity.RateMRC].String())
	assert.Equal(t, "0.02", current.Rates[entity.RateMO].String())
	assert.Equal(t, "1/1", current.BillingPulse)
	assert.Equal(t, "5 days", current.EstimatedLeadTime)
}

func TestFreezeWithoutPlanOrOverride(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	o := newOrder(t, env, entity.OrderStatusInProgress)
	product, err := env.Catalog.GetProduct(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Freeze(ctx, o, product, nil, map[string]string{"ppm": "1"})
	assert.True(t, errorbank.Is(err, errorbank.KindPricingUnavailable))

	_, err = svc.Get(ctx, o.ID)
	require.NoError(t, err)
	_, err = env.Pricing.Get(ctx, o.ID, entity.PricingCurrent)
	assert.Error(t, err)
}
