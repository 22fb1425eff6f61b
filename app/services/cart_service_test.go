package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
)

func (e env) checkout() services.CheckoutInput {
	return services.CheckoutInput{
		BranchID:      e.fx.Branch.ID,
		DeliveryType:  models.DeliveryShipping,
		PaymentMethod: models.PaymentWebpay,
	}
}

func TestCartAccumulatesAndChecksOut(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	me := e.customer()

	_, err := e.svc.Cart.Add(ctx, me, item(e.fx.Hammer, 1))
	require.NoError(t, err)
	_, err = e.svc.Cart.Add(ctx, me, item(e.fx.Hammer, 2))
	require.NoError(t, err)
	cart, err := e.svc.Cart.Add(ctx, me, item(e.fx.Drill, 1))
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	order, err := e.svc.Cart.Checkout(ctx, me, e.checkout())
	require.NoError(t, err)
	assert.Len(t, order.Lines, 2)
	assert.Equal(t, "Calle 1", order.ShippingAddress, "shipping falls back to the profile address")
	assert.Equal(t, 2, e.bulk(t, e.fx.Hammer))

	cart, err = e.svc.Cart.Get(ctx, me)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCheckoutKeepsCartWhenOrderFails(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	me := e.customer()

	_, err := e.svc.Cart.Add(ctx, me, item(e.fx.Drill, 9))
	require.NoError(t, err)

	_, err = e.svc.Cart.Checkout(ctx, me, e.checkout())
	var se *services.StockError
	require.ErrorAs(t, err, &se)

	cart, err := e.svc.Cart.Get(ctx, me)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestCartEdits(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	me := e.customer()

	_, err := e.svc.Cart.Checkout(ctx, me, e.checkout())
	assert.ErrorIs(t, err, services.ErrEmptyOrder)

	_, err = e.svc.Cart.Add(ctx, me, services.OrderItem{ProductID: 999, Quantity: 1})
	assert.ErrorIs(t, err, services.ErrUnknownProduct)

	_, err = e.svc.Cart.Add(ctx, me, item(e.fx.Hammer, 1))
	require.NoError(t, err)

	cart, err := e.svc.Cart.SetQuantity(ctx, me, e.fx.Hammer.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	cart, err = e.svc.Cart.SetQuantity(ctx, me, e.fx.Hammer.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = e.svc.Cart.Remove(ctx, me, e.fx.Hammer.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = e.svc.Cart.Get(ctx, e.admin())
	assert.ErrorIs(t, err, services.ErrCustomerProfile)
}
