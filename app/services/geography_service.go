package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
)

// GeographyService serves the region and commune reference tables.
type GeographyService struct {
	db *gorm.DB
}

func NewGeographyService(db *gorm.DB) *GeographyService {
	return &GeographyService{db: db}
}

// Regions lists every region north to south.
func (s *GeographyService) Regions(ctx context.Context) ([]models.Region, error) {
	var rows []models.Region
	err := s.db.WithContext(ctx).Order("ordinal").Find(&rows).Error
	return rows, err
}

// Communes lists the communes of one region, given by id or code, or of
// every region when region is empty.
func (s *GeographyService) Communes(ctx context.Context, region string) ([]models.Commune, error) {
	q := s.db.WithContext(ctx).Model(&models.Commune{}).
		Joins("JOIN regions ON regions.id = communes.region_id").
		Order("regions.ordinal").Order("communes.name")

	if region = strings.TrimSpace(region); region != "" {
		var r models.Region
		lookup := s.db.WithContext(ctx)
		if id, err := strconv.ParseUint(region, 10, 64); err == nil {
			lookup = lookup.Where("id = ?", id)
		} else {
			lookup = lookup.Where("code = ?", strings.ToUpper(region))
		}
		if err := lookup.First(&r).Error; err != nil {
			return nil, notFound(err)
		}
		q = q.Where("communes.region_id = ?", r.ID)
	}

	var rows []models.Commune
	err := q.Find(&rows).Error
	return rows, err
}

type CommuneInput struct {
	RegionID uint   `json:"region_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
}

// AddCommune registers a commune. The name must be new within its region.
func (s *GeographyService) AddCommune(ctx context.Context, actor Actor, in CommuneInput) (*models.Commune, error) {
	var r models.Region
	if err := s.db.WithContext(ctx).First(&r, in.RegionID).Error; err != nil {
		return nil, notFound(err)
	}

	c := models.Commune{RegionID: r.ID, Name: strings.Join(strings.Fields(in.Name), " ")}
	var clash int64
	s.db.WithContext(ctx).Model(&models.Commune{}).
		Where("region_id = ? AND lookup = ?", r.ID, models.FoldName(c.Name)).
		Count(&clash)
	if clash > 0 {
		return nil, ErrConflict
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, duplicate(err)
	}

	LogActivity(ctx, s.db, actor.userPtr(), "commune_created", fmt.Sprintf("commune %d %q in region %s", c.ID, c.Name, r.Code))
	return &c, nil
}

// resolveCommune finds a commune by name, ignoring case and accents. A
// blank name resolves to nil.
func resolveCommune(ctx context.Context, db *gorm.DB, name string) (*models.Commune, error) {
	key := models.FoldName(name)
	if key == "" {
		return nil, nil
	}
	var found []models.Commune
	if err := db.WithContext(ctx).Where("lookup = ?", key).Order("id").Limit(2).Find(&found).Error; err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: unknown commune %q", ErrInvalidInput, name)
	case 1:
		return &found[0], nil
	}
	return nil, fmt.Errorf("%w: commune %q exists in more than one region", ErrInvalidInput, name)
}

// requireCommune is resolveCommune with a blank name rejected.
func requireCommune(ctx context.Context, db *gorm.DB, name string) (*models.Commune, error) {
	c, err := resolveCommune(ctx, db, name)
	if err == nil && c == nil {
		err = fmt.Errorf("%w: commune is required", ErrInvalidInput)
	}
	return c, err
}
