package migrations

import (
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/migration"
	"github.com/shashiranjanraj/ferremas/pkg/queue"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20240501000001_create_branches", &tables{models: []interface{}{
		&models.Branch{}, &models.Warehouse{},
	}})

	migration.Register("20240501000002_create_users", &tables{models: []interface{}{
		&models.User{}, &models.Customer{}, &models.Staff{},
		&models.ActivityLog{}, &models.RevokedToken{},
	}})

	migration.Register("20240501000003_create_catalog", &tables{models: []interface{}{
		&models.Category{}, &models.Brand{}, &models.Product{},
	}})

	migration.Register("20240501000004_create_inventory", &tables{models: []interface{}{
		&models.Inventory{}, &models.StockHistory{},
	}})

	migration.Register("20240501000005_create_lookups", &tables{
		models: []interface{}{
			&models.OrderStatus{}, &models.DeliveryType{},
			&models.PaymentMethod{}, &models.TransactionStatus{},
		},
		after: seedLookups,
	})

	migration.Register("20240501000006_create_orders", &tables{models: []interface{}{
		&models.Order{}, &models.OrderLine{}, &models.OrderProcessing{},
	}})

	migration.Register("20240501000007_create_payments", &tables{models: []interface{}{
		&models.PaymentTransaction{}, &models.AccountingEntry{}, &models.IntegrationLog{},
	}})

	migration.Register("20240501000008_create_exchange_rates", &tables{models: []interface{}{
		&models.ExchangeRate{},
	}})

	migration.Register("20240501000009_create_marketing", &tables{models: []interface{}{
		&models.Promotion{}, &models.ProductPromotion{},
		&models.PromotionCondition{}, &models.PromotionRestriction{},
		&models.Notification{}, &models.CustomerNotification{},
	}})

	migration.Register("20240501000010_create_carts", &tables{models: []interface{}{
		&models.Cart{}, &models.CartItem{},
	}})

	migration.Register("20240501000011_create_failed_jobs", &tables{models: []interface{}{
		&queue.FailedJobRecord{},
	}})
}

func seedLookups(db *gorm.DB) error {
	for _, rows := range []interface{}{
		&models.OrderStatuses,
		&models.DeliveryTypes,
		&models.PaymentMethods,
		&models.TransactionStatuses,
	} {
		if err := insertMissing(db, rows); err != nil {
			return err
		}
	}
	return nil
}
