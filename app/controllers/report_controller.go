package controllers

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

type ReportController struct {
	service *services.ReportService
}

func NewReportController(s *services.ReportService) *ReportController {
	return &ReportController{service: s}
}

// salesRange reads ?start_date= and ?end_date= (YYYY-MM-DD). It writes a 422 and
// returns false on a malformed date.
func salesRange(c *ctx.Context) (services.SalesRange, bool) {
	var (
		r    services.SalesRange
		errs = map[string]string{}
	)
	for key, dst := range map[string]**time.Time{"start_date": &r.Start, "end_date": &r.End} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs[key] = key + " must be YYYY-MM-DD"
			continue
		}
		*dst = &t
	}
	if len(errs) > 0 {
		c.ValidationError(errs)
		return r, false
	}
	return r, true
}

// MonthlySales answers JSON, or a CSV download with ?format=csv.
func (rc *ReportController) MonthlySales(c *ctx.Context) {
	r, ok := salesRange(c)
	if !ok {
		return
	}
	rows, err := rc.service.MonthlySales(c.Context(), r)
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("format") != "csv" {
		c.Success(rows)
		return
	}
	c.SetHeader("Content-Type", "text/csv; charset=utf-8")
	c.SetHeader("Content-Disposition", `attachment; filename="monthly-sales.csv"`)
	c.Status(http.StatusOK)
	if err := services.WriteCSV(c.W, rows); err != nil {
		logger.WithCtx(c.Context()).Error("report: write csv", "error", err)
	}
}

func (rc *ReportController) Export(c *ctx.Context) {
	r, ok := salesRange(c)
	if !ok {
		return
	}
	exp, err := rc.service.ExportMonthlySales(c.Context(), r)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(exp)
}
