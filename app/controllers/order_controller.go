package controllers

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/sse"
)

type OrderController struct {
	service *services.OrderService
}

func NewOrderController(s *services.OrderService) *OrderController {
	return &OrderController{service: s}
}

// Store creates an order and decrements stock in one transaction.
func (oc *OrderController) Store(c *ctx.Context) {
	var in services.CreateOrderInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := oc.service.Create(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(order)
}

func (oc *OrderController) Index(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := oc.service.List(c.Context(), actor(c), services.OrderFilter{
		Status:     c.Query("status"),
		CustomerID: c.QueryUint("customer_id"),
		BranchID:   c.QueryUint("branch_id"),
	}, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (oc *OrderController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	order, err := oc.service.Get(c.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

func (oc *OrderController) AddLine(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.OrderItem
	if !c.BindJSON(&in) {
		return
	}
	order, err := oc.service.AddLine(c.Context(), actor(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

func (oc *OrderController) RemoveLine(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	lineID, ok := c.ParamUint("line")
	if !ok {
		return
	}
	order, err := oc.service.RemoveLine(c.Context(), actor(c), id, lineID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

type transitionBody struct {
	Status string `json:"status" validate:"required"`
}

func (oc *OrderController) Transition(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in transitionBody
	if !c.BindJSON(&in) {
		return
	}
	order, err := oc.service.Transition(c.Context(), actor(c), id, in.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

func (oc *OrderController) Processing(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if _, err := oc.service.Get(c.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	p, err := oc.service.Processing(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(p)
}

func (oc *OrderController) Lookups(c *ctx.Context) {
	l, err := oc.service.Lookups(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(l)
}

type statusEvent struct {
	OrderID uint      `json:"order_id"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}

// streamEnds lists the statuses after which an order no longer moves.
func streamEnds(status string) bool {
	switch status {
	case models.StatusFailed, models.StatusCancelled, models.StatusDelivered:
		return true
	}
	return false
}

// Events streams the order's status as Server-Sent Events until the order
// reaches a final status, the client leaves, or ORDER_STREAM_MAX passes.
func (oc *OrderController) Events(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	order, err := oc.service.Get(c.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	stream, err := sse.New(c.W, c.R)
	if err != nil {
		c.Error(http.StatusInternalServerError, "streaming unsupported")
		return
	}
	log := logger.WithCtx(c.Context())
	maxAge := config.Duration("ORDER_STREAM_MAX", 5*time.Minute)
	if err := stream.Hold(maxAge + 10*time.Second); err != nil {
		log.Debug("orders: cannot extend stream write deadline", "error", err)
	}

	last := order.Status
	if err := stream.Event("status", statusEvent{OrderID: id, Status: last, At: time.Now().UTC()}); err != nil || streamEnds(last) {
		return
	}

	poll := time.NewTicker(config.Duration("ORDER_STREAM_POLL", 2*time.Second))
	defer poll.Stop()
	beat := time.NewTicker(config.Duration("ORDER_STREAM_HEARTBEAT", 15*time.Second))
	defer beat.Stop()
	deadline := time.After(maxAge)

	for {
		select {
		case <-stream.Done():
			return
		case <-deadline:
			_ = stream.Event("timeout", statusEvent{OrderID: id, Status: last, At: time.Now().UTC()})
			return
		case <-beat.C:
			if err := stream.Comment("ping"); err != nil {
				return
			}
		case <-poll.C:
			status, err := oc.service.Status(c.Context(), id)
			if err != nil {
				if c.Context().Err() == nil {
					log.Warn("orders: status stream read failed", "order_id", id, "error", err)
				}
				return
			}
			if status == last {
				continue
			}
			last = status
			if err := stream.Event("status", statusEvent{OrderID: id, Status: status, At: time.Now().UTC()}); err != nil || streamEnds(status) {
				return
			}
		}
	}
}
