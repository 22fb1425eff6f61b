package models

import "time"

// Inventory is the on-hand quantity of one product in one warehouse.
type Inventory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductID   uint      `gorm:"not null;uniqueIndex:idx_inventory_product_warehouse,priority:1" json:"product_id"`
	WarehouseID uint      `gorm:"not null;uniqueIndex:idx_inventory_product_warehouse,priority:2" json:"warehouse_id"`
	Quantity    int       `gorm:"not null;default:0;check:chk_inventory_quantity,quantity >= 0" json:"quantity"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`

	Product   *Product   `json:"product,omitempty"`
	Warehouse *Warehouse `json:"warehouse,omitempty"`
}

func (Inventory) TableName() string { return "inventory" }

// StockHistory is the append-only ledger of inventory changes. Delta is
// negative for outflows.
type StockHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductID   uint      `gorm:"not null;index:idx_history_product_warehouse,priority:1" json:"product_id"`
	WarehouseID *uint     `gorm:"index:idx_history_product_warehouse,priority:2" json:"warehouse_id"`
	Delta       int       `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"size:255" json:"reason"`
	OrderID     *uint     `gorm:"index" json:"order_id,omitempty"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (StockHistory) TableName() string { return "stock_history" }

// Stock history reasons.
const (
	ReasonOrder      = "order"
	ReasonReposition = "reposition"
	ReasonAdjustment = "adjustment"
)
