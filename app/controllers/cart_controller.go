package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type CartController struct {
	service *services.CartService
}

func NewCartController(s *services.CartService) *CartController {
	return &CartController{service: s}
}

func (cc *CartController) Show(c *ctx.Context) {
	cart, err := cc.service.Get(c.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(cart)
}

func (cc *CartController) Add(c *ctx.Context) {
	var in services.OrderItem
	if !c.BindJSON(&in) {
		return
	}
	cart, err := cc.service.Add(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(cart)
}

func (cc *CartController) SetQuantity(c *ctx.Context) {
	productID, ok := c.ParamUint("product")
	if !ok {
		return
	}
	var in services.QuantityInput
	if !c.BindJSON(&in) {
		return
	}
	cart, err := cc.service.SetQuantity(c.Context(), actor(c), productID, in.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(cart)
}

func (cc *CartController) Remove(c *ctx.Context) {
	productID, ok := c.ParamUint("product")
	if !ok {
		return
	}
	cart, err := cc.service.Remove(c.Context(), actor(c), productID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(cart)
}

func (cc *CartController) Clear(c *ctx.Context) {
	if err := cc.service.Clear(c.Context(), actor(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (cc *CartController) Checkout(c *ctx.Context) {
	var in services.CheckoutInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := cc.service.Checkout(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(order)
}
