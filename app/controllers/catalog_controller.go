package controllers

import (
	"net/http"
	"time"

	"github.com/shashiranjanraj/ferremas/app/repositories"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

// maxImageBytes bounds a multipart product image upload.
const maxImageBytes = 5 << 20

type CatalogController struct {
	catalog    *services.CatalogService
	promotions *services.PromotionService
}

func NewCatalogController(catalog *services.CatalogService, promotions *services.PromotionService) *CatalogController {
	return &CatalogController{catalog: catalog, promotions: promotions}
}

func (cc *CatalogController) Products(c *ctx.Context) {
	page, limit := c.PageParams()
	f := repositories.ProductFilter{
		Search:     c.Query("search"),
		CategoryID: c.QueryUint("category_id"),
		BrandID:    c.QueryUint("brand_id"),
	}
	products, p, err := cc.catalog.Products(c.Context(), f, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(products, p)
}

// Show returns one product. ?currency=USD adds the converted price.
func (cc *CatalogController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	view, err := cc.catalog.Product(c.Context(), id, c.Query("currency"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(view)
}

func (cc *CatalogController) Create(c *ctx.Context) {
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	product, err := cc.catalog.CreateProduct(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(product)
}

func (cc *CatalogController) Update(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	product, err := cc.catalog.UpdateProduct(c.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(product)
}

func (cc *CatalogController) Delete(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	if err := cc.catalog.DeleteProduct(c.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage accepts a multipart "image" field.
func (cc *CatalogController) UploadImage(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, maxImageBytes)
	file, header, err := c.R.FormFile("image")
	if err != nil {
		c.ValidationError(map[string]string{"image": "image file is required (max 5MB)"})
		return
	}
	defer file.Close()

	product, err := cc.catalog.UploadImage(c.Context(), id, header.Filename, file)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(product)
}

func (cc *CatalogController) Promotions(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	promos, err := cc.promotions.ActiveForProduct(c.Context(), id, time.Now())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(promos)
}

func (cc *CatalogController) Categories(c *ctx.Context) {
	rows, err := cc.catalog.Categories(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(rows)
}

func (cc *CatalogController) CreateCategory(c *ctx.Context) {
	var in services.NameInput
	if !c.BindJSON(&in) {
		return
	}
	row, err := cc.catalog.CreateCategory(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(row)
}

func (cc *CatalogController) Brands(c *ctx.Context) {
	rows, err := cc.catalog.Brands(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(rows)
}

func (cc *CatalogController) CreateBrand(c *ctx.Context) {
	var in services.NameInput
	if !c.BindJSON(&in) {
		return
	}
	row, err := cc.catalog.CreateBrand(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(row)
}
