// Package jobs holds the queued work of the store: stock reposition
// retries and outgoing mail.
package jobs

import (
	"context"
	"time"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/mail"
	"github.com/shashiranjanraj/ferremas/pkg/queue"
)

const (
	NameReposition = "stock.reposition"
	NameSendMail   = "mail.send"
)

// RepositionDelay is how long a failed reposition waits before the retry.
var RepositionDelay = 30 * time.Second

// RepositionJob returns the stock of a failed or cancelled order. It is
// safe to run more than once.
type RepositionJob struct {
	OrderID uint `json:"order_id"`

	inventory *services.InventoryService
}

func (j *RepositionJob) JobName() string { return NameReposition }

func (j *RepositionJob) Handle(ctx context.Context) error {
	restored, err := j.inventory.Reposition(ctx, j.OrderID)
	if err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("jobs: reposition done", "order_id", j.OrderID, "restored", restored)
	return nil
}

// SendMailJob delivers one rendered template.
type SendMailJob struct {
	Message mail.Message `json:"message"`

	sender mail.Sender
}

func (j *SendMailJob) JobName() string { return NameSendMail }

func (j *SendMailJob) Handle(ctx context.Context) error {
	return j.sender.Send(ctx, j.Message)
}

// Register teaches m how to rebuild both jobs with their dependencies.
func Register(m *queue.Manager, inv *services.InventoryService, sender mail.Sender) {
	m.Register(NameReposition, func() queue.Job { return &RepositionJob{inventory: inv} })
	m.Register(NameSendMail, func() queue.Job { return &SendMailJob{sender: sender} })
}

// RepositionRetry dispatches a delayed RepositionJob. It is installed as
// the inventory service's retry hook.
func RepositionRetry(m *queue.Manager) services.RetryFunc {
	return func(ctx context.Context, orderID uint) error {
		return m.DispatchAfter(ctx, &RepositionJob{OrderID: orderID}, RepositionDelay)
	}
}

// Mail queues a message.
func Mail(ctx context.Context, m *queue.Manager, msg mail.Message) error {
	return m.Dispatch(ctx, &SendMailJob{Message: msg})
}

// Mailer is Mail bound to m, installed as the auth service's mailer.
func Mailer(m *queue.Manager) services.MailFunc {
	return func(ctx context.Context, msg mail.Message) error {
		return Mail(ctx, m, msg)
	}
}
