package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment method and transaction status codes.
const (
	PaymentWebpay   = "webpay"
	PaymentTransfer = "transfer"
	PaymentCash     = "cash"

	TxApproved = "approved"
	TxRejected = "rejected"
)

type PaymentMethod struct {
	Code string `gorm:"primaryKey;size:30" json:"code"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

type TransactionStatus struct {
	Code string `gorm:"primaryKey;size:30" json:"code"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

// PaymentTransaction is one settled gateway outcome. The unique gateway id
// makes a replayed callback fail to insert a second row.
type PaymentTransaction struct {
	Model
	CustomerID           uint            `gorm:"not null;index" json:"customer_id"`
	OrderID              *uint           `gorm:"index" json:"order_id"`
	Amount               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status               string          `gorm:"size:30;not null" json:"status"`
	PaymentMethod        string          `gorm:"size:30;not null" json:"payment_method"`
	GatewayTransactionID *string         `gorm:"size:128;uniqueIndex" json:"gateway_transaction_id"`
	AuthorizationCode    string          `gorm:"size:50" json:"authorization_code,omitempty"`
	CardLast4            string          `gorm:"column:card_last4;size:4" json:"card_last4,omitempty"`
	Description          string          `gorm:"type:text" json:"description,omitempty"`

	StatusRef *TransactionStatus `gorm:"foreignKey:Status;references:Code" json:"-"`
	Order     *Order             `json:"order,omitempty"`
}

// AccountingEntry is written for every approved payment.
type AccountingEntry struct {
	Model
	TransactionID *uint           `gorm:"index" json:"transaction_id"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	BookedOn      time.Time       `gorm:"type:date;index;not null" json:"booked_on"`
	RecordedBy    *uint           `json:"recorded_by,omitempty"`

	Transaction *PaymentTransaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}

// BeforeCreate defaults Amount to the linked transaction's amount.
func (e *AccountingEntry) BeforeCreate(tx *gorm.DB) error {
	if !e.Amount.IsZero() || e.TransactionID == nil {
		return nil
	}
	if e.Transaction != nil {
		e.Amount = e.Transaction.Amount
		return nil
	}
	var t PaymentTransaction
	if err := tx.Session(&gorm.Session{NewDB: true}).Select("amount").First(&t, *e.TransactionID).Error; err != nil {
		return err
	}
	e.Amount = t.Amount
	return nil
}

// IntegrationLog records one call to an external provider.
type IntegrationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Service    string    `gorm:"size:50;not null;index" json:"service"`
	Operation  string    `gorm:"size:50;not null" json:"operation"`
	Method     string    `gorm:"size:10" json:"method"`
	Endpoint   string    `gorm:"size:255" json:"endpoint"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `gorm:"column:duration_ms" json:"duration_ms"`
	Request    string    `gorm:"type:text" json:"request,omitempty"`
	Response   string    `gorm:"type:text" json:"response,omitempty"`
	Success    bool      `gorm:"not null;index" json:"success"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	OrderID    *uint     `gorm:"index" json:"order_id,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
