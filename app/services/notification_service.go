package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/repositories"
	"github.com/shashiranjanraj/ferremas/pkg/collection"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

type NotificationService struct {
	db    *gorm.DB
	users *repositories.UserRepository
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db, users: repositories.NewUserRepository(db)}
}

type BroadcastInput struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body" validate:"required"`
}

type BroadcastResult struct {
	Notification models.Notification `json:"notification"`
	Recipients   int                 `json:"recipients"`
}

// Broadcast delivers a notification to every customer. Mails go out
// asynchronously through the notification.sent listeners.
func (s *NotificationService) Broadcast(ctx context.Context, actor Actor, in BroadcastInput) (*BroadcastResult, error) {
	res := BroadcastResult{Notification: models.Notification{Title: in.Title, Body: in.Body}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&res.Notification).Error; err != nil {
			return err
		}
		var ids []uint
		if err := tx.Model(&models.Customer{}).Order("user_id").Pluck("user_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		rows := collection.Map(ids, func(id uint) models.CustomerNotification {
			return models.CustomerNotification{CustomerID: id, NotificationID: res.Notification.ID}
		})
		res.Recipients = len(rows)
		return tx.CreateInBatches(&rows, 500).Error
	})
	if err != nil {
		return nil, err
	}

	emails, err := s.users.CustomerEmails(ctx)
	if err != nil {
		return nil, err
	}
	LogActivity(ctx, s.db, actor.userPtr(), "notification_sent",
		fmt.Sprintf("notification %d to %d customers", res.Notification.ID, res.Recipients))
	event.FireAsync(ctx, EventNotificationSent, NotificationEvent{
		NotificationID: res.Notification.ID,
		Title:          in.Title,
		Body:           in.Body,
		Emails:         emails,
	})
	return &res, nil
}

// Mine lists the actor's notifications, newest first.
func (s *NotificationService) Mine(ctx context.Context, actor Actor, unreadOnly bool, page, limit int) ([]models.CustomerNotification, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.CustomerNotification{}).
		Where("customer_id = ?", actor.UserID).
		Order("id DESC")
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var rows []models.CustomerNotification
	p, err := orm.Paginate(q, page, limit, &rows, "Notification")
	return rows, p, err
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.CustomerNotification{}).
		Where("customer_id = ? AND is_read = ?", actor.UserID, false).
		Count(&n).Error
	return n, err
}

// MarkRead flags one of the actor's notifications as read. Other customers'
// notifications look missing.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) (*models.CustomerNotification, error) {
	var n models.CustomerNotification
	err := s.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", id, actor.UserID).
		Preload("Notification").
		First(&n).Error
	if err != nil {
		return nil, notFound(err)
	}
	if n.Read {
		return &n, nil
	}
	n.Read = true
	if err := s.db.WithContext(ctx).Omit("Notification").Save(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}
