// Package listeners subscribes the side effects of domain events: the
// audit trail, the live stock feed, customer mail, staff alerts and the
// Kafka stream.
package listeners

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/jobs"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/mail"
	"github.com/shashiranjanraj/ferremas/pkg/notification"
	"github.com/shashiranjanraj/ferremas/pkg/queue"
	"github.com/shashiranjanraj/ferremas/pkg/ws"
)

// Publisher forwards events to an external stream.
type Publisher interface {
	Handle(ctx context.Context, e event.Event)
}

// Deps are optional: a nil Hub, Queue, Alerts or Stream disables that
// listener.
type Deps struct {
	DB     *gorm.DB
	Hub    *ws.Hub
	Queue  *queue.Manager
	Alerts *notification.Notifier
	// LowStock is the level at or below which a decrement raises an alert.
	LowStock int
	Stream   Publisher
}

func Register(bus *event.Bus, d Deps) {
	if d.DB != nil {
		bus.Listen(services.EventOrderCreated, audit(d.DB, "order_created"))
		bus.Listen(services.EventOrderStatusChanged, audit(d.DB, "order_status_changed"))
		bus.Listen(services.EventStockChanged, auditAdjustment(d.DB))
	}

	if d.Hub != nil {
		bus.Listen(services.EventStockChanged, func(ctx context.Context, e event.Event) {
			se, ok := e.Payload.(services.StockEvent)
			if !ok {
				return
			}
			d.Hub.Publish(fmt.Sprintf("warehouse:%d", se.WarehouseID), se)
			d.Hub.Publish(fmt.Sprintf("product:%d", se.ProductID), se)
		})
		for _, name := range []string{
			services.EventOrderCreated, services.EventOrderPaid, services.EventOrderFailed,
			services.EventOrderCancelled, services.EventOrderStatusChanged,
		} {
			bus.Listen(name, func(ctx context.Context, e event.Event) {
				d.Hub.Publish("orders", e)
			})
		}
	}

	if d.Queue != nil && d.DB != nil {
		bus.Listen(services.EventOrderCreated, orderCreatedMail(d.DB, d.Queue))
		bus.Listen(services.EventOrderPaid, paymentMail(d.Queue, "aprobado"))
		bus.Listen(services.EventOrderFailed, paymentMail(d.Queue, "rechazado"))
		bus.Listen(services.EventOrderCancelled, paymentMail(d.Queue, "abortado"))
		bus.Listen(services.EventNotificationSent, notificationMail(d.Queue))
	}

	if d.Alerts.Enabled() && d.DB != nil {
		bus.Listen(services.EventStockChanged, lowStock(d.DB, d.Alerts, d.LowStock))
	}

	if d.Stream != nil {
		bus.ListenAll(d.Stream.Handle)
	}
}

func audit(db *gorm.DB, action string) event.Handler {
	return func(ctx context.Context, e event.Event) {
		oe, ok := e.Payload.(services.OrderEvent)
		if !ok {
			return
		}
		var actor *uint
		if oe.ActorID != 0 {
			actor = &oe.ActorID
		}
		services.LogActivity(ctx, db, actor, action, fmt.Sprintf("order %d status %s", oe.OrderID, oe.Status))
	}
}

// auditAdjustment records manual corrections only; order movements are
// already in the stock history.
func auditAdjustment(db *gorm.DB) event.Handler {
	return func(ctx context.Context, e event.Event) {
		se, ok := e.Payload.(services.StockEvent)
		if !ok || !strings.HasPrefix(se.Reason, models.ReasonAdjustment) {
			return
		}
		services.LogActivity(ctx, db, se.UserID, "stock_adjusted",
			fmt.Sprintf("product %d warehouse %d delta %d", se.ProductID, se.WarehouseID, se.Delta))
	}
}

func dispatch(ctx context.Context, q *queue.Manager, msg mail.Message) {
	if msg.To == "" {
		return
	}
	if err := jobs.Mail(ctx, q, msg); err != nil {
		logger.WithCtx(ctx).Error("listeners: queue mail failed", "template", msg.Template, "to", msg.To, "error", err)
	}
}

func orderCreatedMail(db *gorm.DB, q *queue.Manager) event.Handler {
	return func(ctx context.Context, e event.Event) {
		oe, ok := e.Payload.(services.OrderEvent)
		if !ok {
			return
		}
		var lines []models.OrderLine
		if err := db.WithContext(ctx).Preload("Product").Where("order_id = ?", oe.OrderID).Order("id").Find(&lines).Error; err != nil {
			logger.WithCtx(ctx).Error("listeners: load order lines", "order_id", oe.OrderID, "error", err)
			return
		}
		rows := make([]map[string]any, len(lines))
		for i, l := range lines {
			name := ""
			if l.Product != nil {
				name = l.Product.Name
			}
			rows[i] = map[string]any{"quantity": l.Quantity, "name": name, "subtotal": l.Subtotal.StringFixed(0)}
		}
		dispatch(ctx, q, mail.Message{
			To:       oe.Email,
			Subject:  fmt.Sprintf("Pedido #%d recibido", oe.OrderID),
			Template: "order_created",
			Data: map[string]any{
				"customer": oe.Customer,
				"order_id": oe.OrderID,
				"total":    oe.Total.StringFixed(0),
				"lines":    rows,
			},
		})
	}
}

func paymentMail(q *queue.Manager, status string) event.Handler {
	return func(ctx context.Context, e event.Event) {
		oe, ok := e.Payload.(services.OrderEvent)
		if !ok {
			return
		}
		dispatch(ctx, q, mail.Message{
			To:       oe.Email,
			Subject:  fmt.Sprintf("Pago del pedido #%d", oe.OrderID),
			Template: "payment_result",
			Data: map[string]any{
				"order_id":           oe.OrderID,
				"status":             status,
				"authorization_code": oe.AuthorizationCode,
			},
		})
	}
}

func notificationMail(q *queue.Manager) event.Handler {
	return func(ctx context.Context, e event.Event) {
		ne, ok := e.Payload.(services.NotificationEvent)
		if !ok {
			return
		}
		for _, to := range ne.Emails {
			dispatch(ctx, q, mail.Message{
				To:       to,
				Subject:  ne.Title,
				Template: "notification",
				Data:     map[string]any{"title": ne.Title, "body": ne.Body},
			})
		}
	}
}

// lowStock alerts once, when a decrement crosses the threshold.
func lowStock(db *gorm.DB, n *notification.Notifier, threshold int) event.Handler {
	return func(ctx context.Context, e event.Event) {
		se, ok := e.Payload.(services.StockEvent)
		if !ok || se.Delta >= 0 || se.Quantity > threshold || se.Quantity-se.Delta <= threshold {
			return
		}
		var p models.Product
		var wh models.Warehouse
		db.WithContext(ctx).Select("id", "code", "name").Limit(1).Find(&p, se.ProductID)
		db.WithContext(ctx).Select("id", "name").Limit(1).Find(&wh, se.WarehouseID)

		level := notification.Warning
		if se.Quantity == 0 {
			level = notification.Danger
		}
		_ = n.Send(ctx, notification.Alert{
			Level: level,
			Title: fmt.Sprintf("Stock bajo: %s", p.Name),
			Text:  fmt.Sprintf("Quedan %d unidades de %s en %s.", se.Quantity, p.Code, wh.Name),
			Fields: map[string]string{
				"producto": fmt.Sprint(se.ProductID),
				"bodega":   fmt.Sprint(se.WarehouseID),
				"cantidad": fmt.Sprint(se.Quantity),
			},
		})
	}
}
