package services_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/storage"
)

// soldOn places an order, forces its status and backdates it.
func soldOn(t *testing.T, e env, status string, at time.Time, items ...services.OrderItem) {
	t.Helper()
	o, err := e.svc.Orders.Create(context.Background(), e.customer(), e.pickup(items...))
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&models.Order{}).Where("id = ?", o.ID).
		Updates(map[string]any{"status": status, "created_at": at}).Error)
}

func TestMonthlySalesCountsSoldOrdersOnly(t *testing.T) {
	e := setup(t)
	aug := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	sep := time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)

	soldOn(t, e, models.StatusPaid, aug, item(e.fx.Hammer, 1))
	soldOn(t, e, models.StatusDelivered, aug, item(e.fx.Drill, 1))
	soldOn(t, e, models.StatusPreparing, sep, item(e.fx.Hammer, 2))
	soldOn(t, e, models.StatusFailed, sep, item(e.fx.Drill, 1))

	rows, err := e.svc.Reports.MonthlySales(context.Background(), services.SalesRange{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08", rows[0].Month)
	assert.Equal(t, 2, rows[0].Orders)
	assert.True(t, rows[0].Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "2026-09", rows[1].Month)
	assert.Equal(t, 1, rows[1].Orders)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows, err = e.svc.Reports.MonthlySales(context.Background(), services.SalesRange{Start: &start})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-09", rows[0].Month)

	end := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	rows, err = e.svc.Reports.MonthlySales(context.Background(), services.SalesRange{End: &end})
	require.NoError(t, err)
	require.Len(t, rows, 1, "end date covers the whole day")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, services.WriteCSV(&buf, []services.MonthlySales{
		{Month: "2026-08", Total: decimal.NewFromFloat(30.5), Orders: 2},
	}))
	assert.Equal(t, "month,total,orders\n2026-08,30.50,2\n", buf.String())
}

func TestExportStoresCSVOnDisk(t *testing.T) {
	e := setup(t)
	disk, err := storage.NewLocal(t.TempDir(), "http://localhost/storage/")
	require.NoError(t, err)
	reports := services.NewReportService(e.db, disk)
	soldOn(t, e, models.StatusPaid, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), item(e.fx.Hammer, 1))

	exp, err := reports.ExportMonthlySales(context.Background(), services.SalesRange{})
	require.NoError(t, err)
	assert.Contains(t, exp.URL, "http://localhost/storage/reports/monthly-sales-")

	rc, err := disk.Get(context.Background(), exp.Path)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2026-08,10.00,1")

	_, err = e.svc.Reports.ExportMonthlySales(context.Background(), services.SalesRange{})
	assert.Error(t, err, "no disk configured")
}

func TestPromotionsActiveWindow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := e.svc.Promotions.Create(ctx, services.PromotionInput{
		Description: "Semana del martillo", DiscountPercent: decimal.NewFromInt(15),
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(24 * time.Hour), ProductIDs: []uint{e.fx.Hammer.ID},
	})
	require.NoError(t, err)
	_, err = e.svc.Promotions.Create(ctx, services.PromotionInput{
		Description: "Vencida", DiscountPercent: decimal.NewFromInt(5),
		StartsAt: now.Add(-48 * time.Hour), EndsAt: now.Add(-24 * time.Hour), ProductIDs: []uint{e.fx.Hammer.ID},
	})
	require.NoError(t, err)

	active, err := e.svc.Promotions.ActiveForProduct(ctx, e.fx.Hammer.ID, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Semana del martillo", active[0].Description)

	active, err = e.svc.Promotions.ActiveForProduct(ctx, e.fx.Drill.ID, now)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = e.svc.Promotions.Create(ctx, services.PromotionInput{
		Description: "Al revés", DiscountPercent: decimal.NewFromInt(5), StartsAt: now, EndsAt: now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestBroadcastReachesEveryCustomer(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := e.svc.Notifications.Broadcast(ctx, e.admin(), services.BroadcastInput{Title: "Cyber", Body: "Descuentos"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recipients)

	n, err := e.svc.Notifications.UnreadCount(ctx, e.customer())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mine, _, err := e.svc.Notifications.Mine(ctx, e.customer(), true, 1, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = e.svc.Notifications.MarkRead(ctx, e.admin(), mine[0].ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	read, err := e.svc.Notifications.MarkRead(ctx, e.customer(), mine[0].ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	n, err = e.svc.Notifications.UnreadCount(ctx, e.customer())
	require.NoError(t, err)
	assert.Zero(t, n)
}
