package seeder_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/migration"
	"github.com/Additional-Code/dialtone/internal/seeder"
	"github.com/Additional-Code/dialtone/internal/testutil"
)

func TestCatalogSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	conns := testutil.SQLite(t)

	var cfg config.Config
	cfg.Database.Driver = "sqlite"
	mig, err := migration.New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(ctx))

	s := seeder.New(conns, clock.NewFake(testutil.Epoch), zap.NewNop())
	require.NoError(t, s.Catalog(ctx))
	require.NoError(t, s.Catalog(ctx))

	products, err := conns.Reader.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, products)

	plans, err := conns.Reader.NewSelect().Model((*entity.PricePlan)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, plans)

	var did entity.Product
	require.NoError(t, conns.Reader.NewSelect().Model(&did).Where("code = ?", entity.ProductDID).Scan(ctx))
	var plan entity.PricePlan
	require.NoError(t, conns.Reader.NewSelect().Model(&plan).
		Where("product_id = ? AND area_code = ?", did.ID, "20").Scan(ctx))
	mrc, ok := plan.Rates.Get(entity.RateMRC)
	require.True(t, ok)
	assert.Equal(t, "3.25", mrc.StringFixed(2))
}
