package controllers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type CurrencyController struct {
	service *services.CurrencyService
}

func NewCurrencyController(s *services.CurrencyService) *CurrencyController {
	return &CurrencyController{service: s}
}

func (cc *CurrencyController) Index(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := cc.service.List(c.Context(), services.RateFilter{
		From: c.Query("from"),
		To:   c.Query("to"),
	}, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (cc *CurrencyController) Store(c *ctx.Context) {
	var in services.CreateRateInput
	if !c.BindJSON(&in) {
		return
	}
	r, err := cc.service.Create(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(r)
}

// Convert handles GET /currency/convert?amount=&from=&to=&date=.
// from defaults to the base currency; date to today.
func (cc *CurrencyController) Convert(c *ctx.Context) {
	errs := map[string]string{}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		errs["amount"] = "amount must be a number"
	}
	to := c.Query("to")
	if to == "" {
		errs["to"] = "to is required"
	}
	var on time.Time
	if d := c.Query("date"); d != "" {
		if on, err = time.Parse("2006-01-02", d); err != nil {
			errs["date"] = "date must be YYYY-MM-DD"
		}
	}
	if len(errs) > 0 {
		c.ValidationError(errs)
		return
	}

	from := c.DefaultQuery("from", config.BaseCurrency())
	conv, err := cc.service.Convert(c.Context(), amount, from, to, on)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(conv)
}

// Sync pulls today's indicators. Partial failures still report what was
// stored.
func (cc *CurrencyController) Sync(c *ctx.Context) {
	n, err := cc.service.Sync(c.Context())
	if err != nil && n == 0 {
		fail(c, err)
		return
	}
	out := map[string]any{"stored": n}
	if err != nil {
		out["errors"] = err.Error()
	}
	c.Success(out)
}
