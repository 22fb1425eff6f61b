package models

const (
	WarehouseStoreFloor = "store_floor"
	WarehouseBulk       = "bulk"
)

type Branch struct {
	Model
	Name      string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Address   string `gorm:"type:text;not null" json:"address"`
	Commune   string `gorm:"size:100" json:"commune"`
	CommuneID *uint  `gorm:"index" json:"commune_id"`

	Warehouses []Warehouse `json:"warehouses,omitempty"`
}

// Warehouse belongs to a branch. Orders of a branch are fulfilled from its
// single warehouse of the configured type.
type Warehouse struct {
	Model
	Name     string `gorm:"size:100;not null;uniqueIndex:idx_warehouse_branch_name,priority:2" json:"name"`
	BranchID uint   `gorm:"not null;uniqueIndex:idx_warehouse_branch_name,priority:1" json:"branch_id"`
	Type     string `gorm:"size:20;not null;index;default:store_floor" json:"type"`

	Branch *Branch `json:"branch,omitempty"`
}
