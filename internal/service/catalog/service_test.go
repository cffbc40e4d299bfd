package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/service/catalog"
	"github.com/Additional-Code/dialtone/internal/testutil"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

func TestResolvePrefersAreaCodeThenCountry(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Catalog.AddProduct(1, entity.ProductDID)
	env.Catalog.AddPlan(entity.PricePlan{ProductID: 1, CountryID: 1, Rates: entity.Rates{entity.RateMRC: decimal.NewFromInt(1)}})
	env.Catalog.AddPlan(entity.PricePlan{ProductID: 1, CountryID: 1, AreaCode: "212", Rates: entity.Rates{entity.RateMRC: decimal.NewFromInt(3)}})
	svc := catalog.NewService(catalog.Params{Store: env.Catalog, Cache: env.Cache, Config: env.Config, Logger: env.Logger})
	ctx := context.Background()

	plan, err := svc.Resolve(ctx, 1, 1, "212")
	require.NoError(t, err)
	assert.Equal(t, "3", plan.Rates[entity.RateMRC].String())

	plan, err = svc.Resolve(ctx, 1, 1, " 415 ")
	require.NoError(t, err)
	assert.Equal(t, "", plan.AreaCode)
	assert.True(t, env.Cache.Has("catalog:plan:1:1:415"))

	_, err = svc.Resolve(ctx, 1, 2, "")
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	_, err = svc.Resolve(ctx, 0, 1, "")
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func TestResolveServesFromCache(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Catalog.AddPlan(entity.PricePlan{ProductID: 5, CountryID: 7, Rates: entity.Rates{entity.RateNRC: decimal.RequireFromString("9.99")}})
	svc := catalog.NewService(catalog.Params{Store: env.Catalog, Cache: env.Cache, Config: env.Config, Logger: env.Logger})
	ctx := context.Background()

	require.NoError(t, env.Cache.Set(ctx, "catalog:plan:5:7:", []byte(`{"id":42,"product_id":5,"country_id":7,"rates":{"nrc":"1.25"}}`), 0))

	plan, err := svc.Resolve(ctx, 5, 7, "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), plan.ID)
	assert.Equal(t, "1.25", plan.Rates[entity.RateNRC].String())
}

func TestProduct(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Catalog.AddProduct(2, entity.ProductFreephone)
	svc := catalog.NewService(catalog.Params{Store: env.Catalog, Cache: env.Cache, Config: env.Config, Logger: env.Logger})

	p, err := svc.Product(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, entity.ProductFreephone, p.Code)

	_, err = svc.Product(context.Background(), 3)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	products, err := svc.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
