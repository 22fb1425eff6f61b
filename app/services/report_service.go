package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/collection"
	"github.com/shashiranjanraj/ferremas/pkg/storage"
)

// salesStatuses are the order statuses that count as sold.
var salesStatuses = []string{
	models.StatusPaid, models.StatusPreparing, models.StatusDispatched, models.StatusDelivered,
}

type ReportService struct {
	db   *gorm.DB
	disk storage.Disk
}

func NewReportService(db *gorm.DB, disk storage.Disk) *ReportService {
	return &ReportService{db: db, disk: disk}
}

type MonthlySales struct {
	Month  string          `json:"month"`
	Total  decimal.Decimal `json:"total"`
	Orders int             `json:"orders"`
}

type saleRow struct {
	CreatedAt time.Time
	Total     decimal.Decimal
}

type SalesRange struct {
	Start *time.Time
	End   *time.Time
}

// MonthlySales totals sold orders per calendar month, oldest first. End is
// inclusive of the whole day.
func (s *ReportService) MonthlySales(ctx context.Context, r SalesRange) ([]MonthlySales, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("created_at, total").
		Where("status IN ?", salesStatuses)
	if r.Start != nil {
		q = q.Where("created_at >= ?", *r.Start)
	}
	if r.End != nil {
		q = q.Where("created_at < ?", r.End.AddDate(0, 0, 1))
	}

	var rows []saleRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	byMonth := collection.GroupBy(rows, func(r saleRow) string { return r.CreatedAt.Format("2006-01") })
	out := make([]MonthlySales, 0, len(byMonth))
	for month, sales := range byMonth {
		out = append(out, MonthlySales{
			Month:  month,
			Total:  collection.Reduce(sales, decimal.Zero, func(sum decimal.Decimal, r saleRow) decimal.Decimal { return sum.Add(r.Total) }),
			Orders: len(sales),
		})
	}
	return collection.SortBy(out, func(a, b MonthlySales) bool { return a.Month < b.Month }), nil
}

// WriteCSV writes the report with a header row.
func WriteCSV(w io.Writer, rows []MonthlySales) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"month", "total", "orders"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Month, r.Total.StringFixed(2), strconv.Itoa(r.Orders)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type Export struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ExportMonthlySales stores the CSV on the configured disk.
func (s *ReportService) ExportMonthlySales(ctx context.Context, r SalesRange) (*Export, error) {
	if s.disk == nil {
		return nil, fmt.Errorf("report: no storage disk configured")
	}
	rows, err := s.MonthlySales(ctx, r)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("reports/monthly-sales-%s.csv", time.Now().Format("20060102-150405"))
	stored, err := s.disk.Put(ctx, name, &buf, "text/csv")
	if err != nil {
		return nil, fmt.Errorf("report: store export: %w", err)
	}
	return &Export{Path: stored, URL: s.disk.URL(stored)}, nil
}
