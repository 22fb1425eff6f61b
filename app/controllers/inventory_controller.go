package controllers

import (
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type InventoryController struct {
	service *services.InventoryService
}

func NewInventoryController(s *services.InventoryService) *InventoryController {
	return &InventoryController{service: s}
}

func (ic *InventoryController) Index(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := ic.service.List(c.Context(), services.InventoryFilter{
		ProductID:   c.QueryUint("product_id"),
		WarehouseID: c.QueryUint("warehouse_id"),
		BranchID:    c.QueryUint("branch_id"),
	}, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (ic *InventoryController) Adjust(c *ctx.Context) {
	var in services.AdjustInput
	if !c.BindJSON(&in) {
		return
	}
	inv, err := ic.service.Adjust(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(inv)
}

func (ic *InventoryController) History(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := ic.service.History(c.Context(), services.HistoryFilter{
		ProductID:   c.QueryUint("product_id"),
		WarehouseID: c.QueryUint("warehouse_id"),
		OrderID:     c.QueryUint("order_id"),
	}, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

// Reposition gives back the stock of a failed or cancelled order. Calling
// it twice is harmless.
func (ic *InventoryController) Reposition(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	done, err := ic.service.Reposition(c.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"order_id": id, "repositioned": done})
}

func (ic *InventoryController) Sweep(c *ctx.Context) {
	n, err := ic.service.Sweep(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]int{"repositioned": n})
}
