package services

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/pkg/storage"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	DB      *gorm.DB
	Gateway Gateway
	Rates   RateSource
	Disk    storage.Disk
}

// Services is the wired set handed to controllers, jobs and commands.
type Services struct {
	Auth          *AuthService
	Branches      *BranchService
	Geography     *GeographyService
	Catalog       *CatalogService
	Currency      *CurrencyService
	Inventory     *InventoryService
	Orders        *OrderService
	Cart          *CartService
	Payments      *PaymentService
	Promotions    *PromotionService
	Notifications *NotificationService
	Reports       *ReportService
}

func New(d Deps) *Services {
	inv := NewInventoryService(d.DB)
	orders := NewOrderService(d.DB)
	currency := NewCurrencyService(d.DB, d.Rates)

	return &Services{
		Auth:          NewAuthService(d.DB),
		Branches:      NewBranchService(d.DB),
		Geography:     NewGeographyService(d.DB),
		Catalog:       NewCatalogService(d.DB, currency, d.Disk),
		Currency:      currency,
		Inventory:     inv,
		Orders:        orders,
		Cart:          NewCartService(d.DB, orders),
		Payments:      NewPaymentService(d.DB, d.Gateway, inv),
		Promotions:    NewPromotionService(d.DB),
		Notifications: NewNotificationService(d.DB),
		Reports:       NewReportService(d.DB, d.Disk),
	}
}
