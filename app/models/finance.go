package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate says one unit of From is worth Rate units of To on ValidOn.
type ExchangeRate struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	From      string          `gorm:"column:from_currency;size:3;not null;uniqueIndex:idx_rate_key,priority:1;index:idx_rate_lookup,priority:1" json:"from"`
	To        string          `gorm:"column:to_currency;size:3;not null;uniqueIndex:idx_rate_key,priority:2;index:idx_rate_lookup,priority:2" json:"to"`
	ValidOn   time.Time       `gorm:"type:date;not null;uniqueIndex:idx_rate_key,priority:3;index:idx_rate_lookup,priority:3" json:"valid_on"`
	Source    string          `gorm:"size:100;not null;default:manual;uniqueIndex:idx_rate_key,priority:4" json:"source"`
	Rate      decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"rate"`
	CreatedAt time.Time       `json:"created_at"`
}
