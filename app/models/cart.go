package models

import "time"

// Cart is the open basket of one customer.
type Cart struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;uniqueIndex" json:"customer_id"`
	UpdatedAt  time.Time `json:"updated_at"`

	Items []CartItem `json:"items"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CartID    uint `gorm:"not null;uniqueIndex:idx_cart_product,priority:1" json:"cart_id"`
	ProductID uint `gorm:"not null;uniqueIndex:idx_cart_product,priority:2" json:"product_id"`
	Quantity  int  `gorm:"not null" json:"quantity"`

	Product *Product `json:"product,omitempty"`
}
