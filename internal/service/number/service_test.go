package number_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/service/number"
	"github.com/Additional-Code/dialtone/internal/testutil"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

func setup(t *testing.T) (*testutil.Env, *number.Service) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := number.NewService(number.Params{
		Store: env.Numbers, Orders: env.Orders, Transactor: env.Tx,
		Locker: env.Locker, Clock: env.Clock, Logger: env.Logger,
	})
	return env, svc
}

func seedOrder(t *testing.T, env *testutil.Env, status entity.OrderStatus) *entity.Order {
	t.Helper()
	o := &entity.Order{CustomerID: 3, ProductID: 1, CountryID: 44, AreaCode: "20", Quantity: 2, Status: status}
	require.NoError(t, env.Orders.Create(context.Background(), o))
	return o
}

func TestAllocateCopiesOrderAttributes(t *testing.T) {
	env, svc := setup(t)
	o := seedOrder(t, env, entity.OrderStatusAmountPaid)

	n, err := svc.Allocate(context.Background(), o.ID, " +44 20-7946 0018 ")
	require.NoError(t, err)

	assert.Equal(t, "+442079460018", n.Number)
	assert.Equal(t, entity.NumberActive, n.Status)
	assert.Nil(t, n.CustomerID)
	assert.Equal(t, o.CountryID, n.CountryID)
	assert.Equal(t, o.ProductID, n.ProductID)
	assert.Equal(t, "20", n.AreaCode)
}

func TestAllocateRequiresAmountPaid(t *testing.T) {
	env, svc := setup(t)
	for _, status := range []entity.OrderStatus{
		entity.OrderStatusInProgress, entity.OrderStatusConfirmed, entity.OrderStatusDelivered, entity.OrderStatusCancelled,
	} {
		o := seedOrder(t, env, status)
		_, err := svc.Allocate(context.Background(), o.ID, "+15550100")
		assert.True(t, errorbank.Is(err, errorbank.KindInvalidTransition), string(status))
	}
}

func TestAllocateRejectsDuplicatesAndBlanks(t *testing.T) {
	env, svc := setup(t)
	o := seedOrder(t, env, entity.OrderStatusAmountPaid)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, o.ID, "+1 555 0100")
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, o.ID, "+1-555-0100")
	assert.True(t, errorbank.Is(err, errorbank.KindConflict))

	_, err = svc.Allocate(ctx, o.ID, "  ")
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))
}

func TestReleaseOnlyBeforeDelivery(t *testing.T) {
	env, svc := setup(t)
	ctx := context.Background()
	o := seedOrder(t, env, entity.OrderStatusAmountPaid)

	kept, err := svc.Allocate(ctx, o.ID, "+15550101")
	require.NoError(t, err)
	dropped, err := svc.Allocate(ctx, o.ID, "+15550102")
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, dropped.ID))
	_, err = svc.Get(ctx, dropped.ID)
	assert.True(t, errorbank.Is(err, errorbank.KindNotFound))

	stored, err := env.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	stored.Status = entity.OrderStatusDelivered
	require.NoError(t, env.Orders.UpdateState(ctx, stored, entity.OrderStatusAmountPaid))

	err = svc.Release(ctx, kept.ID)
	assert.True(t, errorbank.Is(err, errorbank.KindInvalidTransition))

	numbers, err := svc.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, numbers, 1)
	assert.Equal(t, kept.ID, numbers[0].ID)
}
