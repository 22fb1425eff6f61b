package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promotion is stored and listed only; nothing applies it to prices.
type Promotion struct {
	Model
	Description     string          `gorm:"type:text;not null" json:"description"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
	StartsAt        time.Time       `gorm:"not null;index:idx_promo_window,priority:2" json:"starts_at"`
	EndsAt          time.Time       `gorm:"not null;index:idx_promo_window,priority:3" json:"ends_at"`
	MinQuantity     int             `gorm:"not null;default:1" json:"min_quantity"`
	Active          bool            `gorm:"not null;default:true;index:idx_promo_window,priority:1" json:"active"`

	Products     []Product              `gorm:"many2many:product_promotions" json:"products,omitempty"`
	Conditions   []PromotionCondition   `json:"conditions,omitempty"`
	Restrictions []PromotionRestriction `json:"restrictions,omitempty"`
}

// ActiveAt reports whether p is enabled and t falls inside its window.
func (p Promotion) ActiveAt(t time.Time) bool {
	return p.Active && !t.Before(p.StartsAt) && !t.After(p.EndsAt)
}

type ProductPromotion struct {
	ProductID   uint `gorm:"primaryKey" json:"product_id"`
	PromotionID uint `gorm:"primaryKey" json:"promotion_id"`
}

type PromotionCondition struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PromotionID uint   `gorm:"not null;index" json:"promotion_id"`
	Kind        string `gorm:"size:50;not null" json:"kind"`
	Value       string `gorm:"size:255;not null" json:"value"`
}

type PromotionRestriction struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PromotionID uint   `gorm:"not null;index" json:"promotion_id"`
	Description string `gorm:"type:text;not null" json:"description"`
}
