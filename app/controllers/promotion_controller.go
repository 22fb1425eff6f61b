package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type PromotionController struct {
	service *services.PromotionService
}

func NewPromotionController(s *services.PromotionService) *PromotionController {
	return &PromotionController{service: s}
}

func (pc *PromotionController) Index(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := pc.service.List(c.Context(), c.Query("active") == "true", page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (pc *PromotionController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	p, err := pc.service.Get(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(p)
}

func (pc *PromotionController) Store(c *ctx.Context) {
	var in services.PromotionInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.service.Create(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(p)
}

func (pc *PromotionController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.PromotionInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.service.Update(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(p)
}

func (pc *PromotionController) Delete(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := pc.service.Delete(c.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (pc *PromotionController) Attach(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.AttachInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := pc.service.Attach(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(p)
}

func (pc *PromotionController) AddCondition(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.ConditionInput
	if !c.BindJSON(&in) {
		return
	}
	cond, err := pc.service.AddCondition(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(cond)
}

func (pc *PromotionController) AddRestriction(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.RestrictionInput
	if !c.BindJSON(&in) {
		return
	}
	r, err := pc.service.AddRestriction(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(r)
}
