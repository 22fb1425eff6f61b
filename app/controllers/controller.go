// Package controllers adapts HTTP requests to the services. Handlers take
// a *ctx.Context, bind and validate input, call one service method and
// write the JSON envelope.
package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

func actor(c *ctx.Context) services.Actor {
	return services.ActorFromClaims(c.Claims())
}

// fail maps a service error onto the response envelope.
func fail(c *ctx.Context, err error) {
	var (
		se *services.StockError
		ie *services.ItemError
		ce *services.ConfigError
		ge *services.GatewayError
	)
	switch {
	case errors.As(err, &se):
		c.Fail(http.StatusBadRequest, "insufficient_stock", se.Error(), se)
	case errors.As(err, &ie):
		c.Fail(http.StatusBadRequest, "unknown_product", ie.Error(), map[string]any{
			"index": ie.Index, "product_id": ie.ProductID,
		})
	case errors.As(err, &ce):
		c.Fail(http.StatusConflict, "configuration_error", ce.Error(), map[string]any{
			"branch_id": ce.BranchID, "warehouse_type": ce.Type, "found": ce.Found,
		})
	case errors.As(err, &ge):
		c.Fail(gatewayStatus(ge.Kind), "gateway_"+string(ge.Kind), ge.Error(), nil)

	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrRateNotFound):
		c.NotFound(err.Error())
	case errors.Is(err, services.ErrForbidden):
		c.Forbidden()
	case errors.Is(err, services.ErrInactiveUser):
		c.Forbidden(err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenRevoked):
		c.Unauthorized(err.Error())
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInUse),
		errors.Is(err, services.ErrOrderNotEditable),
		errors.Is(err, services.ErrInvalidTransition):
		c.Error(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCustomerProfile),
		errors.Is(err, services.ErrUnknownBranch),
		errors.Is(err, services.ErrUnknownProduct),
		errors.Is(err, services.ErrEmptyOrder),
		errors.Is(err, services.ErrInvalidInput):
		c.Error(http.StatusBadRequest, err.Error())

	default:
		logger.WithCtx(c.Context()).Error("controllers: unhandled error",
			"method", c.R.Method, "path", c.R.URL.Path, "error", err)
		c.Error(http.StatusInternalServerError, "Internal server error")
	}
}

func gatewayStatus(k services.GatewayKind) int {
	switch k {
	case services.GatewayTimeout:
		return http.StatusGatewayTimeout
	case services.GatewayUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
