package models

import "github.com/shopspring/decimal"

type Category struct {
	Model
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

func (Category) TableName() string { return "categories" }

type Brand struct {
	Model
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

// Product is a catalog entry. StockTotal is filled by the catalog service
// from the inventory rows and never persisted.
type Product struct {
	Model
	Name        string          `gorm:"size:100;not null;index" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Code        string          `gorm:"size:50;uniqueIndex;not null" json:"code"`
	BrandID     *uint           `gorm:"index" json:"brand_id"`
	CategoryID  *uint           `gorm:"index" json:"category_id"`
	ImagePath   string          `gorm:"size:255" json:"image_path,omitempty"`

	Brand    *Brand    `json:"brand,omitempty"`
	Category *Category `json:"category,omitempty"`

	StockTotal int64  `gorm:"-" json:"stock_total"`
	ImageURL   string `gorm:"-" json:"image_url,omitempty"`
}
