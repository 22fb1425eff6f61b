package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/repositories"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/cache"
	"github.com/shashiranjanraj/ferremas/pkg/collection"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
	"github.com/shashiranjanraj/ferremas/pkg/storage"
)

const (
	catalogCachePrefix = "catalog:"
	catalogCacheTTL    = 10 * time.Minute
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type CatalogService struct {
	db       *gorm.DB
	products *repositories.ProductRepository
	currency *CurrencyService
	disk     storage.Disk
}

func NewCatalogService(db *gorm.DB, currency *CurrencyService, disk storage.Disk) *CatalogService {
	return &CatalogService{
		db:       db,
		products: repositories.NewProductRepository(db),
		currency: currency,
		disk:     disk,
	}
}

// decorate fills the computed fields of a page of products.
func (s *CatalogService) decorate(ctx context.Context, products []models.Product) error {
	ids := collection.Map(products, func(p models.Product) uint { return p.ID })
	totals, err := StockTotals(s.db.WithContext(ctx), ids)
	if err != nil {
		return err
	}
	for i := range products {
		products[i].StockTotal = totals[products[i].ID]
		products[i].ImageURL = s.imageURL(products[i].ImagePath)
	}
	return nil
}

func (s *CatalogService) imageURL(p string) string {
	if p == "" || s.disk == nil {
		return p
	}
	return s.disk.URL(p)
}

func (s *CatalogService) Products(ctx context.Context, f repositories.ProductFilter, page, limit int) ([]models.Product, orm.Pagination, error) {
	products, p, err := s.products.Search(ctx, f, page, limit)
	if err != nil {
		return nil, p, err
	}
	if err := s.decorate(ctx, products); err != nil {
		return nil, p, err
	}
	return products, p, nil
}

// ProductView is a product with its price optionally shown in another
// currency.
type ProductView struct {
	models.Product
	ConvertedPrice *Conversion `json:"converted_price,omitempty"`
}

// Product loads one product. When currency is set and differs from the
// base currency the price is converted at today's rate.
func (s *CatalogService) Product(ctx context.Context, id uint, currency string) (*ProductView, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	one := []models.Product{p}
	if err := s.decorate(ctx, one); err != nil {
		return nil, err
	}

	view := &ProductView{Product: one[0]}
	if currency != "" && !strings.EqualFold(currency, config.BaseCurrency()) && s.currency != nil {
		conv, err := s.currency.Convert(ctx, p.Price, config.BaseCurrency(), currency, time.Now())
		if err != nil {
			return nil, err
		}
		view.ConvertedPrice = &conv
	}
	return view, nil
}

type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required,gt=0"`
	Code        string          `json:"code" validate:"required,max=50"`
	BrandID     *uint           `json:"brand_id"`
	CategoryID  *uint           `json:"category_id"`
}

func (s *CatalogService) checkRefs(ctx context.Context, in ProductInput) error {
	db := s.db.WithContext(ctx)
	if in.BrandID != nil {
		if err := db.First(&models.Brand{}, *in.BrandID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown brand %d", ErrInvalidInput, *in.BrandID)
			}
			return err
		}
	}
	if in.CategoryID != nil {
		if err := db.First(&models.Category{}, *in.CategoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown category %d", ErrInvalidInput, *in.CategoryID)
			}
			return err
		}
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := s.checkRefs(ctx, in); err != nil {
		return nil, err
	}
	p := models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Code:        strings.TrimSpace(in.Code),
		BrandID:     in.BrandID,
		CategoryID:  in.CategoryID,
	}
	if err := s.products.Create(ctx, &p); err != nil {
		return nil, duplicate(err)
	}
	s.invalidate(ctx)
	return &p, nil
}

// UpdateProduct replaces the editable fields. Existing order lines keep the
// price they were sold at.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return nil, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.Code = strings.TrimSpace(in.Code)
	p.BrandID = in.BrandID
	p.CategoryID = in.CategoryID
	if err := s.products.Save(ctx, &p); err != nil {
		return nil, duplicate(err)
	}
	s.invalidate(ctx)
	return &p, nil
}

// DeleteProduct refuses products that were sold or still have stock.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return notFound(err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.products.WithTx(tx)
		n, err := repo.References(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrInUse
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if p.ImagePath != "" && s.disk != nil {
		if err := s.disk.Delete(ctx, p.ImagePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.WithCtx(ctx).Warn("catalog: image cleanup failed", "path", p.ImagePath, "error", err)
		}
	}
	s.invalidate(ctx)
	return nil
}

// UploadImage stores a product picture under products/<id>/ and replaces
// the previous one.
func (s *CatalogService) UploadImage(ctx context.Context, id uint, filename string, r io.Reader) (*models.Product, error) {
	if s.disk == nil {
		return nil, errors.New("catalog: no storage disk configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := imageTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image type %q", ErrInvalidInput, ext)
	}

	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	key := fmt.Sprintf("products/%d/%s%s", id, uuid.NewString(), ext)
	stored, err := s.disk.Put(ctx, key, r, contentType)
	if err != nil {
		return nil, fmt.Errorf("catalog: store image: %w", err)
	}

	old := p.ImagePath
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Update("image_path", stored).Error; err != nil {
		_ = s.disk.Delete(ctx, stored)
		return nil, err
	}
	if old != "" {
		if err := s.disk.Delete(ctx, old); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.WithCtx(ctx).Warn("catalog: old image cleanup failed", "path", old, "error", err)
		}
	}

	p.ImagePath = stored
	p.ImageURL = s.imageURL(stored)
	s.invalidate(ctx)
	return &p, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	_ = cache.DelPrefix(ctx, catalogCachePrefix)
}

func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := orm.CachedFind(s.db.WithContext(ctx).Order("name"), catalogCachePrefix+"categories", catalogCacheTTL, &rows)
	return rows, err
}

func (s *CatalogService) Brands(ctx context.Context) ([]models.Brand, error) {
	var rows []models.Brand
	err := orm.CachedFind(s.db.WithContext(ctx).Order("name"), catalogCachePrefix+"brands", catalogCacheTTL, &rows)
	return rows, err
}

type NameInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (s *CatalogService) CreateCategory(ctx context.Context, in NameInput) (*models.Category, error) {
	c := models.Category{Name: strings.TrimSpace(in.Name)}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, duplicate(err)
	}
	s.invalidate(ctx)
	return &c, nil
}

func (s *CatalogService) CreateBrand(ctx context.Context, in NameInput) (*models.Brand, error) {
	b := models.Brand{Name: strings.TrimSpace(in.Name)}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, duplicate(err)
	}
	s.invalidate(ctx)
	return &b, nil
}
