package controllers

import (
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type NotificationController struct {
	service *services.NotificationService
}

func NewNotificationController(s *services.NotificationService) *NotificationController {
	return &NotificationController{service: s}
}

func (nc *NotificationController) Broadcast(c *ctx.Context) {
	var in services.BroadcastInput
	if !c.BindJSON(&in) {
		return
	}
	res, err := nc.service.Broadcast(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(res)
}

func (nc *NotificationController) Mine(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := nc.service.Mine(c.Context(), actor(c), c.Query("unread") == "true", page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (nc *NotificationController) UnreadCount(c *ctx.Context) {
	n, err := nc.service.UnreadCount(c.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]int64{"unread": n})
}

func (nc *NotificationController) MarkRead(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	n, err := nc.service.MarkRead(c.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(n)
}
