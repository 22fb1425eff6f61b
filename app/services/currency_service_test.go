package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/app/integrations/mindicador"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/database/testdb"
	"github.com/shashiranjanraj/ferremas/pkg/testkit"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRateSameCurrencyIsOne(t *testing.T) {
	svc := services.NewCurrencyService(testdb.New(t), nil)

	r, err := svc.Rate(context.Background(), "clp", "CLP", time.Time{})
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))
}

func TestRateUsesLatestStoredRateAndItsInverse(t *testing.T) {
	db := testdb.New(t)
	svc := services.NewCurrencyService(db, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, services.CreateRateInput{From: "USD", To: "CLP", ValidOn: "2026-10-01", Rate: dec("900")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, services.CreateRateInput{From: "USD", To: "CLP", ValidOn: "2026-10-10", Rate: dec("950")})
	require.NoError(t, err)

	on := time.Date(2026, 10, 5, 12, 0, 0, 0, time.UTC)
	r, err := svc.Rate(ctx, "USD", "CLP", on)
	require.NoError(t, err)
	assert.True(t, r.Equal(dec("900")), "rate %s", r)

	r, err = svc.Rate(ctx, "USD", "CLP", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, r.Equal(dec("950")), "rate %s", r)

	inv, err := svc.Rate(ctx, "CLP", "USD", on)
	require.NoError(t, err)
	assert.True(t, inv.Equal(dec("0.001111")), "inverse %s", inv)

	conv, err := svc.Convert(ctx, dec("10"), "USD", "CLP", on)
	require.NoError(t, err)
	assert.True(t, conv.Amount.Equal(dec("9000")))
	assert.Equal(t, "CLP", conv.Currency)

	_, err = svc.Rate(ctx, "USD", "CLP", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, services.ErrRateNotFound)
}

func TestCreateRateRejectsDuplicatesAndSamePair(t *testing.T) {
	svc := services.NewCurrencyService(testdb.New(t), nil)
	ctx := context.Background()
	in := services.CreateRateInput{From: "EUR", To: "CLP", ValidOn: "2026-10-01", Rate: dec("1000")}

	_, err := svc.Create(ctx, in)
	require.NoError(t, err)
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = svc.Create(ctx, services.CreateRateInput{From: "CLP", To: "clp", ValidOn: "2026-10-01", Rate: dec("1")})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestRateFallsBackToIndicatorFeed(t *testing.T) {
	mt := testkit.NewMockTransport()
	stub := mt.On("GET", "https://mindicador.test/api/dolar/").ReplyJSON(200, map[string]any{
		"codigo":        "dolar",
		"unidad_medida": "Pesos",
		"serie":         []map[string]any{{"fecha": "2026-10-16T03:00:00.000Z", "valor": 943.12}},
	})
	testkit.Install(t, mt)

	db := testdb.New(t)
	svc := services.NewCurrencyService(db, &mindicador.Client{BaseURL: "https://mindicador.test/api", Timeout: time.Second})
	on := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	r, err := svc.Rate(context.Background(), "USD", "CLP", on)
	require.NoError(t, err)
	assert.True(t, r.Equal(dec("943.12")), "rate %s", r)
	assert.Equal(t, 1, stub.Times())
	assert.Equal(t, "/api/dolar/16-10-2026", mt.Calls()[0].URL.Path)

	var stored models.ExchangeRate
	require.NoError(t, db.Where("from_currency = ? AND to_currency = ?", "USD", "CLP").First(&stored).Error)
	assert.Equal(t, "mindicador", stored.Source)

	// the stored row answers the next lookup
	_, err = svc.Rate(context.Background(), "USD", "CLP", on)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.Times())
}

func TestSyncKeepsGoingPastFailures(t *testing.T) {
	mt := testkit.NewMockTransport()
	mt.On("GET", "https://mindicador.test/api/dolar").ReplyJSON(200, map[string]any{
		"serie": []map[string]any{{"fecha": "2026-10-16T03:00:00.000Z", "valor": 943}},
	})
	mt.On("GET", "https://mindicador.test/api/euro").ReplyJSON(200, map[string]any{
		"serie": []map[string]any{{"fecha": "2026-10-16T03:00:00.000Z", "valor": 1020}},
	})
	mt.On("GET", "https://mindicador.test/api/uf").Reply(404, `{"message":"not found"}`)
	testkit.Install(t, mt)

	db := testdb.New(t)
	svc := services.NewCurrencyService(db, &mindicador.Client{BaseURL: "https://mindicador.test/api", Timeout: time.Second})

	n, err := svc.Sync(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, n)

	var count int64
	db.Model(&models.ExchangeRate{}).Count(&count)
	assert.Equal(t, int64(2), count)
}
