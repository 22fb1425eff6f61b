// Package testdb gives tests a migrated SQLite database of their own.
//
//	db := testdb.New(t)
//	fx := testdb.Seed(t, db)
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/models"
	_ "github.com/shashiranjanraj/ferremas/database/migrations"
	"github.com/shashiranjanraj/ferremas/pkg/database"
	"github.com/shashiranjanraj/ferremas/pkg/migration"
)

// New opens a temp-file database, runs every migration and closes it when
// the test ends.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err)

	_, err = migration.New(db).Run()
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Password is the plain-text password of every fixture user.
const Password = "secret123"

// Fixtures are the rows created by Seed.
type Fixtures struct {
	Santiago models.Commune
	Branch   models.Branch
	Floor    models.Warehouse
	Bulk     models.Warehouse
	Admin    models.User
	Customer models.User
	Clerk    models.User
	Hammer   models.Product
	Drill    models.Product
}

// Seed creates one branch in Santiago with a store_floor and a bulk
// warehouse, an admin, a customer with a profile, a warehouse clerk assigned
// to the bulk warehouse, and two products. Bulk holds 5 hammers and 3 drills; the
// floor holds 10 hammers.
func Seed(t *testing.T, db *gorm.DB) Fixtures {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	var fx Fixtures
	require.NoError(t, db.Where("lookup = ?", "santiago").First(&fx.Santiago).Error)
	fx.Branch = models.Branch{Name: "Centro", Address: "Alameda 100", Commune: "Santiago", CommuneID: &fx.Santiago.ID}
	require.NoError(t, db.Create(&fx.Branch).Error)

	fx.Floor = models.Warehouse{Name: "Floor", BranchID: fx.Branch.ID, Type: models.WarehouseStoreFloor}
	fx.Bulk = models.Warehouse{Name: "Bulk", BranchID: fx.Branch.ID, Type: models.WarehouseBulk}
	require.NoError(t, db.Create(&fx.Floor).Error)
	require.NoError(t, db.Create(&fx.Bulk).Error)

	user := func(name, role string) models.User {
		u := models.User{
			Username: name, Email: name + "@example.com", Password: string(hash),
			Role: role, Active: true, FirstName: name,
		}
		require.NoError(t, db.Create(&u).Error)
		return u
	}

	fx.Admin = user("admin", models.RoleAdmin)
	require.NoError(t, db.Create(&models.Staff{UserID: fx.Admin.ID, RUT: "11111111-1", BranchID: &fx.Branch.ID}).Error)

	fx.Customer = user("maria", models.RoleCustomer)
	require.NoError(t, db.Create(&models.Customer{UserID: fx.Customer.ID, Address: "Calle 1", Commune: "Santiago", CommuneID: &fx.Santiago.ID}).Error)

	fx.Clerk = user("pedro", models.RoleWarehouse)
	require.NoError(t, db.Create(&models.Staff{
		UserID: fx.Clerk.ID, RUT: "22222222-2", BranchID: &fx.Branch.ID, WarehouseID: &fx.Bulk.ID,
	}).Error)

	fx.Hammer = models.Product{Name: "Hammer", Code: "HAM-1", Price: decimal.NewFromInt(10)}
	fx.Drill = models.Product{Name: "Drill", Code: "DRL-1", Price: decimal.NewFromInt(20)}
	require.NoError(t, db.Create(&fx.Hammer).Error)
	require.NoError(t, db.Create(&fx.Drill).Error)

	require.NoError(t, db.Create(&[]models.Inventory{
		{ProductID: fx.Hammer.ID, WarehouseID: fx.Bulk.ID, Quantity: 5},
		{ProductID: fx.Drill.ID, WarehouseID: fx.Bulk.ID, Quantity: 3},
		{ProductID: fx.Hammer.ID, WarehouseID: fx.Floor.ID, Quantity: 10},
	}).Error)

	return fx
}

// Quantity reads the stock of product in warehouse, 0 when absent.
func Quantity(t *testing.T, db *gorm.DB, productID, warehouseID uint) int {
	t.Helper()
	var inv models.Inventory
	err := db.Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).Limit(1).Find(&inv).Error
	require.NoError(t, err)
	return inv.Quantity
}
