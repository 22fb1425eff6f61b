// Package mindicador reads Chilean economic indicators (dollar, euro, UF)
// from the public mindicador.cl API. Values are expressed in CLP.
package mindicador

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/ferremas/config"
	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
	"github.com/shashiranjanraj/ferremas/pkg/metrics"
)

// ErrNoData is returned when the indicator has no value for the date.
var ErrNoData = errors.New("mindicador: no data")

// Indicators maps ISO currency codes to indicator names.
var Indicators = map[string]string{
	"USD": "dolar",
	"EUR": "euro",
	"CLF": "uf",
}

// CurrencyOf returns the currency code of an indicator name.
func CurrencyOf(indicator string) (string, bool) {
	for code, name := range Indicators {
		if name == indicator {
			return code, true
		}
	}
	return "", false
}

type Client struct {
	BaseURL string
	Timeout time.Duration
}

func FromConfig() *Client {
	return &Client{BaseURL: config.MindicadorURL(), Timeout: config.GatewayTimeout()}
}

// Point is one value of an indicator.
type Point struct {
	Date  time.Time       `json:"fecha"`
	Value decimal.Decimal `json:"valor"`
}

type series struct {
	Code  string  `json:"codigo"`
	Unit  string  `json:"unidad_medida"`
	Serie []Point `json:"serie"`
}

// Value returns the CLP value of indicator on the given day, or the latest
// published value when on is zero.
func (c *Client) Value(ctx context.Context, indicator string, on time.Time) (Point, error) {
	endpoint := c.BaseURL + "/" + strings.ToLower(indicator)
	if !on.IsZero() {
		endpoint += "/" + on.Format("02-01-2006")
	}

	start := time.Now()
	resp, err := fhttp.Get(endpoint).
		WithContext(ctx).
		Timeout(c.Timeout).
		Retry(2, 300*time.Millisecond).
		Send()
	if err != nil {
		metrics.ObserveGateway("mindicador", indicator, "error", time.Since(start))
		return Point{}, fmt.Errorf("mindicador: %s: %w", indicator, err)
	}
	if err := resp.Throw(); err != nil {
		metrics.ObserveGateway("mindicador", indicator, "http_error", time.Since(start))
		return Point{}, fmt.Errorf("mindicador: %s: %w", indicator, err)
	}

	var s series
	if err := resp.JSON(&s); err != nil {
		metrics.ObserveGateway("mindicador", indicator, "bad_body", time.Since(start))
		return Point{}, fmt.Errorf("mindicador: %s: %w", indicator, err)
	}
	metrics.ObserveGateway("mindicador", indicator, "ok", time.Since(start))

	if len(s.Serie) == 0 || !s.Serie[0].Value.IsPositive() {
		return Point{}, fmt.Errorf("%w for %s", ErrNoData, indicator)
	}
	return s.Serie[0], nil
}
