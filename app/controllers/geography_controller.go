package controllers

import (
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type GeographyController struct {
	service *services.GeographyService
}

func NewGeographyController(s *services.GeographyService) *GeographyController {
	return &GeographyController{service: s}
}

func (gc *GeographyController) Regions(c *ctx.Context) {
	rows, err := gc.service.Regions(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(rows)
}

// Communes takes ?region= as a region id or code.
func (gc *GeographyController) Communes(c *ctx.Context) {
	rows, err := gc.service.Communes(c.Context(), c.Query("region"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(rows)
}

func (gc *GeographyController) StoreCommune(c *ctx.Context) {
	var in services.CommuneInput
	if !c.BindJSON(&in) {
		return
	}
	commune, err := gc.service.AddCommune(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(commune)
}
