package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

// ProductFilter narrows the catalog listing. Zero values are ignored.
type ProductFilter struct {
	Search     string
	CategoryID uint
	BrandID    uint
}

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) WithTx(tx *gorm.DB) *ProductRepository {
	return &ProductRepository{db: tx}
}

// Search pages through products matching f, name-ordered.
func (r *ProductRepository) Search(ctx context.Context, f ProductFilter, page, limit int) ([]models.Product, orm.Pagination, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Order("name, id")
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.BrandID != 0 {
		q = q.Where("brand_id = ?", f.BrandID)
	}

	var products []models.Product
	p, err := orm.Paginate(q, page, limit, &products, "Brand", "Category")
	return products, p, err
}

func (r *ProductRepository) FindByID(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Preload("Brand").Preload("Category").First(&p, id).Error
	return p, err
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepository) Save(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Omit("Brand", "Category").Save(p).Error
}

// References counts the rows that keep a product from being deleted:
// order lines and stocked inventory.
func (r *ProductRepository) References(ctx context.Context, id uint) (int64, error) {
	db := r.db.WithContext(ctx)
	var lines, stocked int64
	if err := db.Model(&models.OrderLine{}).Where("product_id = ?", id).Count(&lines).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Inventory{}).Where("product_id = ? AND quantity > 0", id).Count(&stocked).Error; err != nil {
		return 0, err
	}
	return lines + stocked, nil
}

// Delete removes the product and its dependent rows.
func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	for _, dep := range []interface{}{&models.Inventory{}, &models.CartItem{}, &models.ProductPromotion{}} {
		if err := db.Where("product_id = ?", id).Delete(dep).Error; err != nil {
			return err
		}
	}
	return db.Delete(&models.Product{}, id).Error
}
