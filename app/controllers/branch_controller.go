package controllers

import (
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type BranchController struct {
	service *services.BranchService
}

func NewBranchController(s *services.BranchService) *BranchController {
	return &BranchController{service: s}
}

func (bc *BranchController) Index(c *ctx.Context) {
	rows, err := bc.service.List(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(rows)
}

func (bc *BranchController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	b, err := bc.service.Get(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(b)
}

func (bc *BranchController) Store(c *ctx.Context) {
	var in services.BranchInput
	if !c.BindJSON(&in) {
		return
	}
	b, err := bc.service.Create(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(b)
}

func (bc *BranchController) AddWarehouse(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.WarehouseInput
	if !c.BindJSON(&in) {
		return
	}
	w, err := bc.service.AddWarehouse(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(w)
}
