package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order status codes.
const (
	StatusInProcess  = "in_process"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusPreparing  = "preparing"
	StatusDispatched = "dispatched"
	StatusDelivered  = "delivered"
)

// OrderStatus is a lookup row keyed by its code.
type OrderStatus struct {
	Code string `gorm:"primaryKey;size:30" json:"code"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

// Terminal reports whether the payment outcome of an order is settled.
func Terminal(code string) bool { return code != StatusInProcess }

// Delivery type codes.
const (
	DeliveryPickup   = "pickup"
	DeliveryShipping = "shipping"
)

type DeliveryType struct {
	Code string `gorm:"primaryKey;size:30" json:"code"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

// Order is a customer purchase. Total always equals the sum of the line
// subtotals; OrderService.RecomputeTotal keeps it that way.
type Order struct {
	Model
	CustomerID      uint            `gorm:"not null;index:idx_order_customer_created,priority:1" json:"customer_id"`
	BranchID        uint            `gorm:"not null;index" json:"branch_id"`
	Status          string          `gorm:"size:30;not null;index" json:"status"`
	DeliveryType    string          `gorm:"size:30;not null" json:"delivery_type"`
	PaymentMethod   string          `gorm:"size:30;not null" json:"payment_method"`
	Total           decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address,omitempty"`
	ShippingCommune string          `gorm:"size:100" json:"shipping_commune,omitempty"`
	ContactPhone    string          `gorm:"size:15" json:"contact_phone,omitempty"`
	ContactEmail    string          `gorm:"size:255" json:"contact_email,omitempty"`
	GatewayToken    *string         `gorm:"size:128;uniqueIndex" json:"-"`
	BuyOrder        string          `gorm:"size:26;index" json:"buy_order,omitempty"`
	StockRestoredAt *time.Time      `json:"stock_restored_at,omitempty"`

	// ShippingCommuneID points at the commune ShippingCommune was resolved from.
	ShippingCommuneID *uint `gorm:"index" json:"shipping_commune_id,omitempty"`

	Customer    *Customer      `gorm:"foreignKey:CustomerID;references:UserID" json:"customer,omitempty"`
	Branch      *Branch        `json:"branch,omitempty"`
	StatusRef   *OrderStatus   `gorm:"foreignKey:Status;references:Code" json:"-"`
	DeliveryRef *DeliveryType  `gorm:"foreignKey:DeliveryType;references:Code" json:"-"`
	PaymentRef  *PaymentMethod `gorm:"foreignKey:PaymentMethod;references:Code" json:"-"`
	Lines       []OrderLine    `json:"lines,omitempty"`
}

// OrderLine is one product of an order at the price captured when the
// order was placed.
type OrderLine struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;uniqueIndex:idx_line_order_product,priority:1" json:"order_id"`
	ProductID uint            `gorm:"not null;uniqueIndex:idx_line_order_product,priority:2" json:"product_id"`
	Quantity  int             `gorm:"not null;check:chk_line_quantity,quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`

	Product *Product `json:"product,omitempty"`
}

// BeforeSave keeps Subtotal in step with Quantity and UnitPrice.
func (l *OrderLine) BeforeSave(*gorm.DB) error {
	l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	return nil
}

// OrderProcessing records the staff who handled an order.
type OrderProcessing struct {
	OrderID         uint      `gorm:"primaryKey;autoIncrement:false" json:"order_id"`
	SellerID        *uint     `gorm:"index" json:"seller_id"`
	WarehouseUserID *uint     `gorm:"index" json:"warehouse_user_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (OrderProcessing) TableName() string { return "order_processing" }
