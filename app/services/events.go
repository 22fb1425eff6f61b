package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event names fired on the bus after the owning transaction commits.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderFailed        = "order.failed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
	EventStockChanged       = "stock.changed"
	EventStockRestored      = "stock.restored"
	EventUserRegistered     = "user.registered"
	EventNotificationSent   = "notification.sent"
)

type OrderEvent struct {
	OrderID           uint            `json:"order_id"`
	CustomerID        uint            `json:"customer_id"`
	Status            string          `json:"status"`
	Total             decimal.Decimal `json:"total"`
	Email             string          `json:"email,omitempty"`
	Customer          string          `json:"customer,omitempty"`
	AuthorizationCode string          `json:"authorization_code,omitempty"`
	ActorID           uint            `json:"actor_id,omitempty"`
}

// StockEvent describes one inventory movement; Quantity is the new level.
type StockEvent struct {
	ProductID   uint      `json:"product_id"`
	WarehouseID uint      `json:"warehouse_id"`
	Delta       int       `json:"delta"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
	OrderID     *uint     `json:"order_id,omitempty"`
	UserID      *uint     `json:"user_id,omitempty"`
	At          time.Time `json:"at"`
}

type NotificationEvent struct {
	NotificationID uint     `json:"notification_id"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	Emails         []string `json:"emails"`
}

type UserEvent struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
