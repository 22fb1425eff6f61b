package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/config"
)

type BranchService struct {
	db *gorm.DB
}

func NewBranchService(db *gorm.DB) *BranchService {
	return &BranchService{db: db}
}

func (s *BranchService) List(ctx context.Context) ([]models.Branch, error) {
	var rows []models.Branch
	err := s.db.WithContext(ctx).
		Preload("Warehouses", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("name").
		Find(&rows).Error
	return rows, err
}

func (s *BranchService) Get(ctx context.Context, id uint) (*models.Branch, error) {
	var b models.Branch
	if err := s.db.WithContext(ctx).Preload("Warehouses").First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

type BranchInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address" validate:"required"`
	Commune string `json:"commune" validate:"max=100"`
}

func (s *BranchService) Create(ctx context.Context, in BranchInput) (*models.Branch, error) {
	b := models.Branch{Name: strings.TrimSpace(in.Name), Address: in.Address}
	commune, err := resolveCommune(ctx, s.db, in.Commune)
	if err != nil {
		return nil, err
	}
	if commune != nil {
		b.Commune, b.CommuneID = commune.Name, &commune.ID
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, duplicate(err)
	}
	return &b, nil
}

type WarehouseInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Type string `json:"type" validate:"required,in=store_floor,bulk"`
}

// AddWarehouse creates a warehouse in a branch. A branch keeps at most one
// warehouse of the fulfilment type, so order routing stays unambiguous.
func (s *BranchService) AddWarehouse(ctx context.Context, branchID uint, in WarehouseInput) (*models.Warehouse, error) {
	var wh models.Warehouse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Branch
		if err := tx.First(&b, branchID).Error; err != nil {
			return notFound(err)
		}
		if in.Type == config.FulfillmentWarehouseType() {
			var n int64
			if err := tx.Model(&models.Warehouse{}).
				Where("branch_id = ? AND type = ?", branchID, in.Type).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: branch %d already has a %s warehouse", ErrConflict, branchID, in.Type)
			}
		}

		wh = models.Warehouse{Name: strings.TrimSpace(in.Name), BranchID: branchID, Type: in.Type}
		return duplicate(tx.Create(&wh).Error)
	})
	if err != nil {
		return nil, err
	}
	return &wh, nil
}
