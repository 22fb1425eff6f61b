package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
)

func failOrder(t *testing.T, e env, id uint) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Order{}).Where("id = ?", id).Update("status", models.StatusFailed).Error)
}

func TestRepositionRunsOnce(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	order, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(item(e.fx.Hammer, 4), item(e.fx.Drill, 1)))
	require.NoError(t, err)
	failOrder(t, e, order.ID)

	moved, err := e.svc.Inventory.Reposition(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 5, e.bulk(t, e.fx.Hammer))
	assert.Equal(t, 3, e.bulk(t, e.fx.Drill))

	moved, err = e.svc.Inventory.Reposition(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, 5, e.bulk(t, e.fx.Hammer))

	var back int64
	e.db.Model(&models.StockHistory{}).
		Where("order_id = ? AND reason = ?", order.ID, models.ReasonReposition).
		Count(&back)
	assert.Equal(t, int64(2), back)
}

func TestRepositionUnknownOrder(t *testing.T) {
	e := setup(t)
	_, err := e.svc.Inventory.Reposition(context.Background(), 777)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRepositionOrRetrySchedulesRetryOnFailure(t *testing.T) {
	e := setup(t)
	var retried []uint
	e.svc.Inventory.SetRetry(func(_ context.Context, id uint) error {
		retried = append(retried, id)
		return nil
	})

	e.svc.Inventory.RepositionOrRetry(context.Background(), 4040)
	assert.Equal(t, []uint{4040}, retried)
}

func TestSweepRestoresPendingOrders(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		o, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(item(e.fx.Hammer, 1)))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	failOrder(t, e, ids[0])
	require.NoError(t, e.db.Model(&models.Order{}).Where("id = ?", ids[1]).Update("status", models.StatusCancelled).Error)
	require.Equal(t, 2, e.bulk(t, e.fx.Hammer))

	n, err := e.svc.Inventory.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, e.bulk(t, e.fx.Hammer), "the in-process order keeps its stock")

	n, err = e.svc.Inventory.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdjustScopedToStaffWarehouse(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	clerk := services.Actor{UserID: e.fx.Clerk.ID, Role: models.RoleWarehouse, WarehouseID: e.fx.Bulk.ID}

	inv, err := e.svc.Inventory.Adjust(ctx, clerk, services.AdjustInput{
		ProductID: e.fx.Drill.ID, WarehouseID: e.fx.Bulk.ID, Delta: 7, Reason: "recount",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, inv.Quantity)

	_, err = e.svc.Inventory.Adjust(ctx, clerk, services.AdjustInput{
		ProductID: e.fx.Hammer.ID, WarehouseID: e.fx.Floor.ID, Delta: 1, Reason: "recount",
	})
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = e.svc.Inventory.Adjust(ctx, e.customer(), services.AdjustInput{
		ProductID: e.fx.Hammer.ID, WarehouseID: e.fx.Bulk.ID, Delta: 1, Reason: "x",
	})
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestAdjustCannotGoNegative(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Inventory.Adjust(context.Background(), e.admin(), services.AdjustInput{
		ProductID: e.fx.Drill.ID, WarehouseID: e.fx.Bulk.ID, Delta: -4, Reason: "broken",
	})

	var se *services.StockError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, 3, se.Available)
	assert.Equal(t, 3, e.bulk(t, e.fx.Drill))
}

func TestAdjustCreatesMissingRow(t *testing.T) {
	e := setup(t)

	inv, err := e.svc.Inventory.Adjust(context.Background(), e.admin(), services.AdjustInput{
		ProductID: e.fx.Drill.ID, WarehouseID: e.fx.Floor.ID, Delta: 2, Reason: "transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Quantity)
	assert.Equal(t, 2, e.floor(t, e.fx.Drill))
}
