package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
	"github.com/Additional-Code/dialtone/internal/testutil"
)

func newRepo(t *testing.T) *orderrepo.Repository {
	t.Helper()
	conns := testutil.SQLite(t)
	_, err := conns.Writer.NewCreateTable().Model((*entity.Order)(nil)).Exec(context.Background())
	require.NoError(t, err)
	return orderrepo.NewRepository(conns)
}

func sampleOrder(customer int64) *entity.Order {
	now := time.Date(2026, 9, 14, 9, 30, 0, 0, time.UTC)
	return &entity.Order{
		CustomerID:   customer,
		ProductID:    1,
		CountryID:    44,
		Quantity:     2,
		Status:       entity.OrderStatusInProgress,
		TotalAmount:  decimal.Zero,
		PricingState: entity.PricingStateAbsent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUpdateStateIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	order := sampleOrder(7)
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)

	order.Status = entity.OrderStatusAmountPaid
	err := repo.UpdateState(ctx, order, entity.OrderStatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrStaleState)

	order.Status = entity.OrderStatusConfirmed
	order.TotalAmount = decimal.RequireFromString("12.5")
	require.NoError(t, repo.UpdateState(ctx, order, entity.OrderStatusInProgress))

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, stored.Status)
	assert.True(t, decimal.RequireFromString("12.5").Equal(stored.TotalAmount))
}

func TestGetByIDMissing(t *testing.T) {
	_, err := newRepo(t).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListFiltersByCustomerNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for _, customer := range []int64{7, 8, 7} {
		require.NoError(t, repo.Create(ctx, sampleOrder(customer)))
	}

	orders, err := repo.List(ctx, orderrepo.Filter{CustomerID: 7})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Greater(t, orders[0].ID, orders[1].ID)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	conns := testutil.SQLite(t)
	_, err := conns.Writer.NewCreateTable().Model((*entity.Order)(nil)).Exec(ctx)
	require.NoError(t, err)
	repo := orderrepo.NewRepository(conns)

	boom := errors.New("boom")
	err = conns.RunInTx(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, sampleOrder(7)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	orders, err := repo.List(ctx, orderrepo.Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
