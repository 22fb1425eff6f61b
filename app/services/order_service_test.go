package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
)

func TestCreateOrderTakesStockFromBulkWarehouse(t *testing.T) {
	e := setup(t)

	order, err := e.svc.Orders.Create(context.Background(), e.customer(),
		e.pickup(item(e.fx.Hammer, 2), item(e.fx.Drill, 1)))
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProcess, order.Status)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(40)), "total %s", order.Total)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, e.fx.Customer.Email, order.ContactEmail)

	assert.Equal(t, 3, e.bulk(t, e.fx.Hammer))
	assert.Equal(t, 2, e.bulk(t, e.fx.Drill))
	assert.Equal(t, 10, e.floor(t, e.fx.Hammer), "store floor is never touched")

	var history []models.StockHistory
	require.NoError(t, e.db.Where("order_id = ?", order.ID).Find(&history).Error)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, models.ReasonOrder, h.Reason)
		assert.Negative(t, h.Delta)
	}
}

func TestCreateOrderExactStockSucceeds(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Orders.Create(context.Background(), e.customer(), e.pickup(item(e.fx.Hammer, 5)))
	require.NoError(t, err)
	assert.Zero(t, e.bulk(t, e.fx.Hammer))
}

func TestCreateOrderOverStockFails(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Orders.Create(context.Background(), e.customer(), e.pickup(item(e.fx.Hammer, 6)))

	var se *services.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, e.fx.Hammer.ID, se.ProductID)
	assert.Equal(t, 5, se.Available)
	assert.Equal(t, 6, se.Requested)
	assert.Zero(t, se.Index)
	assert.Equal(t, 5, e.bulk(t, e.fx.Hammer))
}

func TestCreateOrderRollsBackEverything(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Orders.Create(context.Background(), e.customer(),
		e.pickup(item(e.fx.Hammer, 1), item(e.fx.Drill, 4)))

	var se *services.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)

	var orders, lines int64
	e.db.Model(&models.Order{}).Count(&orders)
	e.db.Model(&models.OrderLine{}).Count(&lines)
	assert.Zero(t, orders)
	assert.Zero(t, lines)
	assert.Equal(t, 5, e.bulk(t, e.fx.Hammer))
	assert.Equal(t, 3, e.bulk(t, e.fx.Drill))
}

func TestCreateOrderMergesRepeatedProducts(t *testing.T) {
	e := setup(t)

	order, err := e.svc.Orders.Create(context.Background(), e.customer(),
		e.pickup(item(e.fx.Hammer, 2), item(e.fx.Hammer, 3)))
	require.NoError(t, err)

	require.Len(t, order.Lines, 1)
	assert.Equal(t, 5, order.Lines[0].Quantity)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(50)))
	assert.Zero(t, e.bulk(t, e.fx.Hammer))
}

func TestCreateOrderNeedsOneFulfilmentWarehouse(t *testing.T) {
	e := setup(t)
	extra := models.Warehouse{Name: "Bulk 2", BranchID: e.fx.Branch.ID, Type: models.WarehouseBulk}
	require.NoError(t, e.db.Create(&extra).Error)

	_, err := e.svc.Orders.Create(context.Background(), e.customer(), e.pickup(item(e.fx.Hammer, 1)))

	var ce *services.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Found)
	assert.Equal(t, e.fx.Branch.ID, ce.BranchID)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Orders.Create(context.Background(), e.customer(),
		e.pickup(item(e.fx.Hammer, 1), services.OrderItem{ProductID: 9999, Quantity: 1}))

	var ie *services.ItemError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Index)
	assert.ErrorIs(t, err, services.ErrUnknownProduct)
	assert.Equal(t, 5, e.bulk(t, e.fx.Hammer))
}

func TestCreateOrderRequiresCustomerProfile(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Orders.Create(context.Background(), e.admin(), e.pickup(item(e.fx.Hammer, 1)))
	assert.ErrorIs(t, err, services.ErrCustomerProfile)
}

func TestCreateOrderUnknownBranch(t *testing.T) {
	e := setup(t)
	in := e.pickup(item(e.fx.Hammer, 1))
	in.BranchID = 4242

	_, err := e.svc.Orders.Create(context.Background(), e.customer(), in)
	assert.ErrorIs(t, err, services.ErrUnknownBranch)
}

func TestRecomputeTotalFollowsLines(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	order, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(item(e.fx.Hammer, 1)))
	require.NoError(t, err)

	line := models.OrderLine{OrderID: order.ID, ProductID: e.fx.Drill.ID, Quantity: 2, UnitPrice: e.fx.Drill.Price}
	require.NoError(t, e.db.Create(&line).Error)

	total, err := e.svc.Orders.RecomputeTotal(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(50)), "total %s", total)
	assert.True(t, e.reload(t, order.ID).Total.Equal(decimal.NewFromInt(50)))

	_, err = e.svc.Orders.RecomputeTotal(ctx, 9999)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestAddAndRemoveLineMoveStock(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	order, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(item(e.fx.Hammer, 1)))
	require.NoError(t, err)

	order, err = e.svc.Orders.AddLine(ctx, e.admin(), order.ID, item(e.fx.Drill, 2))
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, e.bulk(t, e.fx.Drill))

	order, err = e.svc.Orders.RemoveLine(ctx, e.admin(), order.ID, order.Lines[1].ID)
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 3, e.bulk(t, e.fx.Drill))
}

func TestTransitionOnlyFromPaid(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	order, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(item(e.fx.Hammer, 1)))
	require.NoError(t, err)

	_, err = e.svc.Orders.Transition(ctx, e.admin(), order.ID, models.StatusPreparing)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	require.NoError(t, e.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.StatusPaid).Error)
	clerk := services.Actor{UserID: e.fx.Clerk.ID, Role: models.RoleWarehouse}

	got, err := e.svc.Orders.Transition(ctx, clerk, order.ID, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, got.Status)

	proc, err := e.svc.Orders.Processing(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, proc.WarehouseUserID)
	assert.Equal(t, e.fx.Clerk.ID, *proc.WarehouseUserID)
	assert.Nil(t, proc.SellerID)
}

func TestGetHidesOtherCustomersOrders(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	order, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(item(e.fx.Hammer, 1)))
	require.NoError(t, err)

	stranger := services.Actor{UserID: e.fx.Admin.ID + 100, Role: models.RoleCustomer}
	_, err = e.svc.Orders.Get(ctx, stranger, order.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	got, err := e.svc.Orders.Get(ctx, e.admin(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}
