package seeders

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/auth"
)

func init() {
	Register("branches", seedBranches)
	Register("users", seedUsers)
	Register("catalog", seedCatalog)
}

const demoBranch = "Casa Matriz"

func seedBranches(db *gorm.DB) error {
	b := models.Branch{Name: demoBranch}
	if err := db.Where(models.Branch{Name: demoBranch}).
		Attrs(models.Branch{Address: "Av. Providencia 1234", Commune: "Providencia", CommuneID: communeID(db, "providencia")}).
		FirstOrCreate(&b).Error; err != nil {
		return err
	}
	for _, w := range []models.Warehouse{
		{Name: "Sala de ventas", BranchID: b.ID, Type: models.WarehouseStoreFloor},
		{Name: "Bodega", BranchID: b.ID, Type: models.WarehouseBulk},
	} {
		w := w
		if err := db.Where(models.Warehouse{Name: w.Name, BranchID: b.ID}).Attrs(w).FirstOrCreate(&w).Error; err != nil {
			return err
		}
	}
	return nil
}

type demoUser struct {
	username, role, rut string
	warehouseType       string
}

func seedUsers(db *gorm.DB) error {
	pw := config.Get("SEED_PASSWORD", "ferremas123")
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}

	var b models.Branch
	if err := db.Preload("Warehouses").Where("name = ?", demoBranch).First(&b).Error; err != nil {
		return err
	}
	warehouseOf := func(typ string) *uint {
		for _, w := range b.Warehouses {
			if w.Type == typ {
				id := w.ID
				return &id
			}
		}
		return nil
	}

	staff := []demoUser{
		{"admin", models.RoleAdmin, "11111111-1", ""},
		{"vendedor", models.RoleSeller, "22222222-2", ""},
		{"bodeguero", models.RoleWarehouse, "33333333-3", models.WarehouseBulk},
		{"contador", models.RoleAccountant, "44444444-4", ""},
	}
	for _, su := range staff {
		u, err := upsertUser(db, su.username, su.role, hash)
		if err != nil {
			return err
		}
		s := models.Staff{UserID: u.ID, RUT: su.rut, BranchID: &b.ID}
		if su.warehouseType != "" {
			s.WarehouseID = warehouseOf(su.warehouseType)
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
			return err
		}
	}

	u, err := upsertUser(db, "cliente", models.RoleCustomer, hash)
	if err != nil {
		return err
	}
	c := models.Customer{UserID: u.ID, Address: "Los Aromos 55", Commune: "Ñuñoa", CommuneID: communeID(db, "nunoa"), Phone: "+56911112222"}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error
}

func upsertUser(db *gorm.DB, username, role, hash string) (models.User, error) {
	u := models.User{Username: username}
	err := db.Where(models.User{Username: username}).
		Attrs(models.User{Email: username + "@ferremas.cl", Password: hash, Role: role, Active: true, FirstName: username}).
		FirstOrCreate(&u).Error
	return u, err
}

type demoProduct struct {
	code, name, brand, category string
	price                       int64
	floor, bulk                 int
}

var demoCatalog = []demoProduct{
	{"FER-0001", "Martillo carpintero 16oz", "Stanley", "Herramientas manuales", 8990, 15, 40},
	{"FER-0002", "Taladro percutor 650W", "Bosch", "Herramientas eléctricas", 54990, 5, 12},
	{"FER-0003", "Set destornilladores 6 piezas", "Stanley", "Herramientas manuales", 12990, 20, 30},
	{"FER-0004", "Esmeril angular 4 1/2\"", "Makita", "Herramientas eléctricas", 49990, 4, 10},
	{"FER-0005", "Cemento 25kg", "Melón", "Materiales de construcción", 5490, 0, 200},
	{"FER-0006", "Pintura látex blanca 1gl", "Sipa", "Pinturas", 15990, 10, 25},
}

func seedCatalog(db *gorm.DB) error {
	var warehouses []models.Warehouse
	if err := db.Joins("JOIN branches ON branches.id = warehouses.branch_id").
		Where("branches.name = ?", demoBranch).Find(&warehouses).Error; err != nil {
		return err
	}
	byType := map[string]uint{}
	for _, w := range warehouses {
		byType[w.Type] = w.ID
	}

	brands := map[string]uint{}
	categories := map[string]uint{}
	for _, p := range demoCatalog {
		if _, ok := brands[p.brand]; !ok {
			b := models.Brand{Name: p.brand}
			if err := db.Where(b).FirstOrCreate(&b).Error; err != nil {
				return err
			}
			brands[p.brand] = b.ID
		}
		if _, ok := categories[p.category]; !ok {
			c := models.Category{Name: p.category}
			if err := db.Where(c).FirstOrCreate(&c).Error; err != nil {
				return err
			}
			categories[p.category] = c.ID
		}

		brandID, categoryID := brands[p.brand], categories[p.category]
		prod := models.Product{Code: p.code}
		if err := db.Where(models.Product{Code: p.code}).Attrs(models.Product{
			Name:       p.name,
			Price:      decimal.NewFromInt(p.price),
			BrandID:    &brandID,
			CategoryID: &categoryID,
		}).FirstOrCreate(&prod).Error; err != nil {
			return err
		}

		stock := []models.Inventory{
			{ProductID: prod.ID, WarehouseID: byType[models.WarehouseStoreFloor], Quantity: p.floor},
			{ProductID: prod.ID, WarehouseID: byType[models.WarehouseBulk], Quantity: p.bulk},
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&stock).Error; err != nil {
			return err
		}
	}
	return nil
}

// communeID finds a seeded commune by its folded name.
func communeID(db *gorm.DB, lookup string) *uint {
	var c models.Commune
	if err := db.Where("lookup = ?", lookup).Limit(1).Find(&c).Error; err != nil || c.ID == 0 {
		return nil
	}
	return &c.ID
}
