// Package models holds the gorm entities of the store. Money columns are
// decimal(10,2) and exchange rates decimal(18,6); stock is never stored on
// the product, only on inventory rows.
package models

import "time"

// Model replaces gorm.Model: no soft delete, JSON-friendly names.
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Roles carried in token claims.
const (
	RoleAdmin      = "admin"
	RoleSeller     = "seller"
	RoleWarehouse  = "warehouse"
	RoleAccountant = "accountant"
	RoleCustomer   = "customer"
)

// StaffRoles are the roles that own a Staff profile.
var StaffRoles = []string{RoleAdmin, RoleSeller, RoleWarehouse, RoleAccountant}

// All lists every entity in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{}, &RevokedToken{}, &ActivityLog{},
		&Branch{}, &Warehouse{}, &Customer{}, &Staff{},
		&Category{}, &Brand{}, &Product{},
		&Inventory{}, &StockHistory{},
		&OrderStatus{}, &DeliveryType{}, &PaymentMethod{}, &TransactionStatus{},
		&Order{}, &OrderLine{}, &OrderProcessing{},
		&PaymentTransaction{}, &AccountingEntry{}, &IntegrationLog{},
		&ExchangeRate{},
		&Promotion{}, &ProductPromotion{}, &PromotionCondition{}, &PromotionRestriction{},
		&Notification{}, &CustomerNotification{},
		&Cart{}, &CartItem{},
	}
}

// Lookup rows every database starts with.
var (
	OrderStatuses = []OrderStatus{
		{Code: StatusInProcess, Name: "En proceso"},
		{Code: StatusPaid, Name: "Pagado"},
		{Code: StatusFailed, Name: "Fallido"},
		{Code: StatusCancelled, Name: "Anulado"},
		{Code: StatusPreparing, Name: "En preparación"},
		{Code: StatusDispatched, Name: "Despachado"},
		{Code: StatusDelivered, Name: "Entregado"},
	}

	DeliveryTypes = []DeliveryType{
		{Code: DeliveryPickup, Name: "Retiro en tienda"},
		{Code: DeliveryShipping, Name: "Despacho a domicilio"},
	}

	PaymentMethods = []PaymentMethod{
		{Code: PaymentWebpay, Name: "Webpay"},
		{Code: PaymentTransfer, Name: "Transferencia"},
		{Code: PaymentCash, Name: "Efectivo"},
	}

	TransactionStatuses = []TransactionStatus{
		{Code: TxApproved, Name: "Aprobada"},
		{Code: TxRejected, Name: "Rechazada"},
	}
)
