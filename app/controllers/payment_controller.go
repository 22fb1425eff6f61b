package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

type PaymentController struct {
	service *services.PaymentService
}

func NewPaymentController(s *services.PaymentService) *PaymentController {
	return &PaymentController{service: s}
}

func (pc *PaymentController) StartWebpay(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	res, err := pc.service.StartWebpay(c.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(res)
}

// Return is the gateway callback. The buyer's browser always ends on the
// storefront result page, even when confirmation failed.
func (pc *PaymentController) Return(c *ctx.Context) {
	res, err := pc.service.HandleReturn(c.Context(), services.ReturnParams{
		TokenWS:   c.PostForm("token_ws"),
		TBKToken:  c.PostForm("TBK_TOKEN"),
		TBKOrder:  c.PostForm("TBK_ORDEN_COMPRA"),
		TBKSesion: c.PostForm("TBK_ID_SESION"),
	})
	if err != nil {
		logger.WithCtx(c.Context()).Warn("payment: return failed", "error", err)
		if res.Outcome == "" {
			res.Outcome = services.OutcomeError
		}
	}
	code := http.StatusFound
	if c.R.Method == http.MethodPost {
		code = http.StatusSeeOther
	}
	c.Redirect(code, services.ResultURL(res))
}

func (pc *PaymentController) Transactions(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := pc.service.Transactions(c.Context(), actor(c), services.TransactionFilter{
		OrderID: c.QueryUint("order_id"),
		Status:  c.Query("status"),
	}, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (pc *PaymentController) AccountingEntries(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := pc.service.AccountingEntries(c.Context(), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (pc *PaymentController) IntegrationLogs(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := pc.service.IntegrationLogs(c.Context(), services.IntegrationFilter{
		Service: c.Query("service"),
		OrderID: c.QueryUint("order_id"),
		Failed:  c.Query("failed") == "true" || c.Query("failed") == "1",
	}, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}
