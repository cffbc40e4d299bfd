package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/testutil"
)

func TestModelMigrationsOnSQLite(t *testing.T) {
	ctx := context.Background()
	conns := testutil.SQLite(t)

	var cfg config.Config
	cfg.Database.Driver = "sqlite"
	m, err := New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, m.goose)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "second run is a no-op")

	product := &entity.Product{Code: entity.ProductDID, Name: "DID"}
	_, err = conns.Writer.NewInsert().Model(product).Exec(ctx)
	require.NoError(t, err)
	assert.NotZero(t, product.ID)

	assert.Error(t, m.Down(ctx, 1, false))
	require.NoError(t, m.Down(ctx, 0, true))

	_, err = conns.Writer.NewSelect().Model((*entity.Product)(nil)).Count(ctx)
	assert.Error(t, err)
}

func TestGooseDialect(t *testing.T) {
	d, err := gooseDialect("pg")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d)

	_, err = gooseDialect("oracle")
	assert.Error(t, err)
}
