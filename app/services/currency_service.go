package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/ferremas/app/integrations/mindicador"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/cache"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

const (
	rateCachePrefix = "rates:"
	rateCacheTTL    = time.Hour
	sourceManual    = "manual"
	sourceFeed      = "mindicador"
)

// RateSource supplies the base-currency value of an indicator.
type RateSource interface {
	Value(ctx context.Context, indicator string, on time.Time) (mindicador.Point, error)
}

type CurrencyService struct {
	db     *gorm.DB
	source RateSource
}

func NewCurrencyService(db *gorm.DB, source RateSource) *CurrencyService {
	return &CurrencyService{db: db, source: source}
}

// day truncates t to its calendar date in UTC, the form rates are stored in.
func day(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rateKey(from, to string, on time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", rateCachePrefix, from, to, on.Format("2006-01-02"))
}

// Rate returns how many units of to one unit of from is worth on the given
// date. Lookup order: same currency, the latest direct rate on or before
// the date, the inverse of the latest opposite rate, then the indicator
// feed for pairs against the base currency.
func (s *CurrencyService) Rate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	on = day(on)

	key := rateKey(from, to, on)
	var cached decimal.Decimal
	if cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	rate, err := s.lookup(ctx, from, to, on)
	if err != nil {
		return decimal.Zero, err
	}
	_ = cache.Set(ctx, key, rate, rateCacheTTL)
	return rate, nil
}

func (s *CurrencyService) lookup(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	db := s.db.WithContext(ctx)

	if r, ok, err := latestRate(db, from, to, on); err != nil || ok {
		return r, err
	}
	if r, ok, err := latestRate(db, to, from, on); err != nil {
		return decimal.Zero, err
	} else if ok {
		return decimal.NewFromInt(1).DivRound(r, 6), nil
	}

	base := config.BaseCurrency()
	switch {
	case to == base:
		return s.fetch(ctx, from, on)
	case from == base:
		r, err := s.fetch(ctx, to, on)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(1).DivRound(r, 6), nil
	}
	return decimal.Zero, ErrRateNotFound
}

func latestRate(db *gorm.DB, from, to string, on time.Time) (decimal.Decimal, bool, error) {
	var r models.ExchangeRate
	err := db.Where("from_currency = ? AND to_currency = ? AND valid_on <= ?", from, to, on).
		Order("valid_on DESC, id DESC").
		First(&r).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return decimal.Zero, false, nil
	case err != nil:
		return decimal.Zero, false, err
	}
	return r.Rate, true, nil
}

// fetch asks the feed for the base-currency value of currency and stores it.
func (s *CurrencyService) fetch(ctx context.Context, currency string, on time.Time) (decimal.Decimal, error) {
	indicator, ok := mindicador.Indicators[currency]
	if !ok || s.source == nil {
		return decimal.Zero, ErrRateNotFound
	}

	p, err := s.source.Value(ctx, indicator, on)
	if err != nil {
		if errors.Is(err, mindicador.ErrNoData) {
			return decimal.Zero, ErrRateNotFound
		}
		logger.WithCtx(ctx).Warn("currency: indicator fetch failed", "indicator", indicator, "error", err)
		return decimal.Zero, ErrRateNotFound
	}

	row := models.ExchangeRate{
		From:    currency,
		To:      config.BaseCurrency(),
		ValidOn: on,
		Source:  sourceFeed,
		Rate:    p.Value,
	}
	if err := upsertRate(s.db.WithContext(ctx), &row); err != nil {
		return decimal.Zero, err
	}
	return p.Value, nil
}

func upsertRate(db *gorm.DB, r *models.ExchangeRate) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "from_currency"}, {Name: "to_currency"}, {Name: "valid_on"}, {Name: "source"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"rate"}),
	}).Create(r).Error
}

// Conversion is an amount expressed in another currency.
type Conversion struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
}

// Convert expresses amount (in from) in to, rounded to two decimals.
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, from, to string, on time.Time) (Conversion, error) {
	rate, err := s.Rate(ctx, from, to, on)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		Amount:   amount.Mul(rate).Round(2),
		Currency: strings.ToUpper(to),
		Rate:     rate,
	}, nil
}

// Sync stores today's value of every known indicator. It keeps going past
// individual failures and reports how many rates were written.
func (s *CurrencyService) Sync(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, errors.New("currency: no rate source configured")
	}

	codes := make([]string, 0, len(mindicador.Indicators))
	for code := range mindicador.Indicators {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	var (
		n    int
		errs []error
	)
	for _, code := range codes {
		p, err := s.source.Value(ctx, mindicador.Indicators[code], time.Time{})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		row := models.ExchangeRate{
			From:    code,
			To:      config.BaseCurrency(),
			ValidOn: day(p.Date),
			Source:  sourceFeed,
			Rate:    p.Value,
		}
		if err := upsertRate(s.db.WithContext(ctx), &row); err != nil {
			errs = append(errs, fmt.Errorf("currency: store %s: %w", code, err))
			continue
		}
		n++
	}

	_ = cache.DelPrefix(ctx, rateCachePrefix)
	logger.WithCtx(ctx).Info("currency: rates synced", "stored", n, "failed", len(errs))
	return n, errors.Join(errs...)
}

type CreateRateInput struct {
	From    string          `json:"from" validate:"required,currency"`
	To      string          `json:"to" validate:"required,currency"`
	ValidOn string          `json:"valid_on" validate:"required,date"`
	Rate    decimal.Decimal `json:"rate" validate:"required,gt=0"`
}

// Create records a manual rate. A second manual rate for the same pair and
// day is a conflict.
func (s *CurrencyService) Create(ctx context.Context, in CreateRateInput) (*models.ExchangeRate, error) {
	if !in.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: rate must be positive", ErrInvalidInput)
	}
	on, err := time.Parse("2006-01-02", in.ValidOn[:min(len(in.ValidOn), 10)])
	if err != nil {
		return nil, fmt.Errorf("%w: valid_on: %v", ErrInvalidInput, err)
	}
	from, to := strings.ToUpper(in.From), strings.ToUpper(in.To)
	if from == to {
		return nil, fmt.Errorf("%w: from and to must differ", ErrInvalidInput)
	}

	r := models.ExchangeRate{From: from, To: to, ValidOn: day(on), Source: sourceManual, Rate: in.Rate}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, duplicate(err)
	}
	_ = cache.DelPrefix(ctx, rateCachePrefix)
	return &r, nil
}

type RateFilter struct {
	From string
	To   string
}

func (s *CurrencyService) List(ctx context.Context, f RateFilter, page, limit int) ([]models.ExchangeRate, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.ExchangeRate{}).Order("valid_on DESC, id DESC")
	if f.From != "" {
		q = q.Where("from_currency = ?", strings.ToUpper(f.From))
	}
	if f.To != "" {
		q = q.Where("to_currency = ?", strings.ToUpper(f.To))
	}

	var rows []models.ExchangeRate
	p, err := orm.Paginate(q, page, limit, &rows)
	return rows, p, err
}
