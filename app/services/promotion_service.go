package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/collection"
	"github.com/shashiranjanraj/ferremas/pkg/orm"
)

// PromotionService stores promotions. It never changes a price: active
// promotions are only listed next to a product.
type PromotionService struct {
	db *gorm.DB
}

func NewPromotionService(db *gorm.DB) *PromotionService {
	return &PromotionService{db: db}
}

type PromotionInput struct {
	Description     string          `json:"description" validate:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"required,gt=0,lte=100"`
	StartsAt        time.Time       `json:"starts_at" validate:"required"`
	EndsAt          time.Time       `json:"ends_at" validate:"required"`
	MinQuantity     int             `json:"min_quantity" validate:"nullable,gte=1"`
	Active          *bool           `json:"active"`
	ProductIDs      []uint          `json:"product_ids"`
}

func (in PromotionInput) apply(p *models.Promotion) error {
	if !in.EndsAt.After(in.StartsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidInput)
	}
	p.Description = in.Description
	p.DiscountPercent = in.DiscountPercent.Round(2)
	p.StartsAt = in.StartsAt
	p.EndsAt = in.EndsAt
	p.MinQuantity = max(in.MinQuantity, 1)
	if in.Active != nil {
		p.Active = *in.Active
	}
	return nil
}

func productsByID(tx *gorm.DB, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	if len(products) != len(collection.Unique(ids)) {
		return nil, ErrUnknownProduct
	}
	return products, nil
}

func (s *PromotionService) Create(ctx context.Context, in PromotionInput) (*models.Promotion, error) {
	p := models.Promotion{Active: true}
	if err := in.apply(&p); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := productsByID(tx, in.ProductIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit("Products").Create(&p).Error; err != nil {
			return err
		}
		if len(products) > 0 {
			return tx.Model(&p).Association("Products").Append(products)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

func (s *PromotionService) Get(ctx context.Context, id uint) (*models.Promotion, error) {
	var p models.Promotion
	err := s.db.WithContext(ctx).
		Preload("Products").
		Preload("Conditions").
		Preload("Restrictions").
		First(&p, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *PromotionService) List(ctx context.Context, activeOnly bool, page, limit int) ([]models.Promotion, orm.Pagination, error) {
	q := s.db.WithContext(ctx).Model(&models.Promotion{}).Order("starts_at DESC, id DESC")
	if activeOnly {
		now := time.Now()
		q = q.Where("active = ? AND starts_at <= ? AND ends_at >= ?", true, now, now)
	}
	var rows []models.Promotion
	p, err := orm.Paginate(q, page, limit, &rows)
	return rows, p, err
}

// Update replaces the promotion fields. ProductIDs, when given, replace the
// attached products.
func (s *PromotionService) Update(ctx context.Context, id uint, in PromotionInput) (*models.Promotion, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Promotion
		if err := tx.First(&p, id).Error; err != nil {
			return notFound(err)
		}
		if err := in.apply(&p); err != nil {
			return err
		}
		if err := tx.Omit("Products", "Conditions", "Restrictions").Save(&p).Error; err != nil {
			return err
		}
		if in.ProductIDs == nil {
			return nil
		}
		products, err := productsByID(tx, in.ProductIDs)
		if err != nil {
			return err
		}
		return tx.Model(&p).Association("Products").Replace(products)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *PromotionService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Promotion
		if err := tx.First(&p, id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&p).Association("Products").Clear(); err != nil {
			return err
		}
		if err := tx.Where("promotion_id = ?", id).Delete(&models.PromotionCondition{}).Error; err != nil {
			return err
		}
		if err := tx.Where("promotion_id = ?", id).Delete(&models.PromotionRestriction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&p).Error
	})
}

type AttachInput struct {
	ProductIDs []uint `json:"product_ids" validate:"required,min=1"`
}

// Attach links more products to a promotion; already linked ones are kept.
func (s *PromotionService) Attach(ctx context.Context, id uint, in AttachInput) (*models.Promotion, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Promotion
		if err := tx.Preload("Products").First(&p, id).Error; err != nil {
			return notFound(err)
		}
		products, err := productsByID(tx, in.ProductIDs)
		if err != nil {
			return err
		}
		linked := collection.KeyBy(p.Products, func(lp models.Product) uint { return lp.ID })
		add := collection.Reject(products, func(np models.Product) bool {
			_, ok := linked[np.ID]
			return ok
		})
		if len(add) == 0 {
			return nil
		}
		return tx.Model(&p).Association("Products").Append(add)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

type ConditionInput struct {
	Kind  string `json:"kind" validate:"required,max=50"`
	Value string `json:"value" validate:"required,max=255"`
}

func (s *PromotionService) AddCondition(ctx context.Context, id uint, in ConditionInput) (*models.PromotionCondition, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	c := models.PromotionCondition{PromotionID: id, Kind: in.Kind, Value: in.Value}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

type RestrictionInput struct {
	Description string `json:"description" validate:"required"`
}

func (s *PromotionService) AddRestriction(ctx context.Context, id uint, in RestrictionInput) (*models.PromotionRestriction, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	r := models.PromotionRestriction{PromotionID: id, Description: in.Description}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ActiveForProduct lists the promotions of a product that are enabled and
// whose window contains at.
func (s *PromotionService) ActiveForProduct(ctx context.Context, productID uint, at time.Time) ([]models.Promotion, error) {
	var rows []models.Promotion
	err := s.db.WithContext(ctx).
		Joins("JOIN product_promotions pp ON pp.promotion_id = promotions.id").
		Where("pp.product_id = ?", productID).
		Where("promotions.active = ? AND promotions.starts_at <= ? AND promotions.ends_at >= ?", true, at, at).
		Preload("Conditions").
		Preload("Restrictions").
		Order("promotions.ends_at").
		Find(&rows).Error
	return rows, err
}
