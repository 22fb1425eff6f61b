package models

import (
	"time"

	"gorm.io/gorm"
)

type Notification struct {
	Model
	Title string `gorm:"size:255;not null" json:"title"`
	Body  string `gorm:"type:text;not null" json:"body"`
}

// CustomerNotification delivers a notification to one customer.
type CustomerNotification struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CustomerID     uint       `gorm:"not null;uniqueIndex:idx_customer_notification,priority:1" json:"customer_id"`
	NotificationID uint       `gorm:"not null;uniqueIndex:idx_customer_notification,priority:2" json:"notification_id"`
	Read           bool       `gorm:"column:is_read;not null;default:false" json:"read"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `json:"created_at"`

	Notification *Notification `json:"notification,omitempty"`
}

// BeforeSave stamps ReadAt on the first read and clears it when unread.
func (n *CustomerNotification) BeforeSave(*gorm.DB) error {
	switch {
	case n.Read && n.ReadAt == nil:
		now := time.Now()
		n.ReadAt = &now
	case !n.Read:
		n.ReadAt = nil
	}
	return nil
}
