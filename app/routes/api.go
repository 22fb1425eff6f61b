// Package routes wires controllers onto the router.
package routes

import (
	"context"
	"net/http"

	"github.com/shashiranjanraj/ferremas/app/controllers"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/schema"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
	"github.com/shashiranjanraj/ferremas/pkg/graphql"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"github.com/shashiranjanraj/ferremas/pkg/middleware"
	"github.com/shashiranjanraj/ferremas/pkg/rbac"
	"github.com/shashiranjanraj/ferremas/pkg/response"
	"github.com/shashiranjanraj/ferremas/pkg/router"
	"github.com/shashiranjanraj/ferremas/pkg/ws"
)

// Deps are what the routes need beyond the services. Hub and Health are
// optional.
type Deps struct {
	Services *services.Services
	Hub      *ws.Hub
	Health   func(context.Context) error
}

var w = ctx.Wrap

const (
	admin      = models.RoleAdmin
	seller     = models.RoleSeller
	warehouse  = models.RoleWarehouse
	accountant = models.RoleAccountant
	customer   = models.RoleCustomer
)

func RegisterAPI(r *router.Router, d Deps) {
	s := d.Services

	authC := controllers.NewAuthController(s.Auth)
	catalogC := controllers.NewCatalogController(s.Catalog, s.Promotions)
	branchC := controllers.NewBranchController(s.Branches)
	geoC := controllers.NewGeographyController(s.Geography)
	inventoryC := controllers.NewInventoryController(s.Inventory)
	orderC := controllers.NewOrderController(s.Orders)
	paymentC := controllers.NewPaymentController(s.Payments)
	cartC := controllers.NewCartController(s.Cart)
	currencyC := controllers.NewCurrencyController(s.Currency)
	promotionC := controllers.NewPromotionController(s.Promotions)
	notificationC := controllers.NewNotificationController(s.Notifications)
	reportC := controllers.NewReportController(s.Reports)

	r.HandleFunc("/healthz", health(d.Health))

	if gs, err := schema.Catalog(s.Catalog); err != nil {
		logger.Error("routes: graphql schema", "error", err)
	} else {
		r.HandleFunc("/graphql", graphql.Handler(gs))
	}

	if d.Hub != nil {
		r.Get("/ws/stock", "ws.stock", func(rw http.ResponseWriter, req *http.Request) {
			ws.Upgrade(rw, req, d.Hub, ws.TopicsFromQuery(req))
		})
	}

	api := r.Group("/api")

	// Public.
	guest := api.Group("/auth", rbac.Guest)
	guest.Post("/register", "auth.register", w(authC.Register))
	guest.Post("/login", "auth.login", w(authC.Login))
	guest.Post("/password/forgot", "auth.password.forgot", w(authC.ForgotPassword))
	guest.Post("/password/reset", "auth.password.reset", w(authC.ResetPassword))
	api.Post("/auth/refresh", "auth.refresh", w(authC.Refresh))
	api.Post("/auth/logout", "auth.logout", w(authC.Logout))

	api.Get("/products", "products.index", w(catalogC.Products))
	api.Get("/products/{id}", "products.show", w(catalogC.Show))
	api.Get("/products/{id}/promotions", "products.promotions", w(catalogC.Promotions))
	api.Get("/categories", "categories.index", w(catalogC.Categories))
	api.Get("/brands", "brands.index", w(catalogC.Brands))
	api.Get("/branches", "branches.index", w(branchC.Index))
	api.Get("/branches/{id}", "branches.show", w(branchC.Show))
	api.Get("/regions", "regions.index", w(geoC.Regions))
	api.Get("/communes", "communes.index", w(geoC.Communes))
	api.Get("/currency/convert", "currency.convert", w(currencyC.Convert))

	// The gateway posts back here (or redirects the browser with GET).
	api.Get("/payments/webpay/return", "payments.webpay.return", w(paymentC.Return))
	api.Post("/payments/webpay/return", "payments.webpay.return.post", w(paymentC.Return))

	// Any signed-in user.
	authed := api.Group("", middleware.AuthMiddleware)
	authed.Get("/auth/me", "auth.me", w(authC.Me))
	authed.Patch("/auth/me", "auth.me.update", w(authC.UpdateProfile))
	authed.Put("/auth/password", "auth.password.change", w(authC.ChangePassword))
	authed.Get("/orders", "orders.index", w(orderC.Index))
	authed.Get("/orders/lookups", "orders.lookups", w(orderC.Lookups))
	authed.Get("/orders/{id}", "orders.show", w(orderC.Show))
	authed.Get("/orders/{id}/processing", "orders.processing", w(orderC.Processing))
	authed.Get("/orders/{id}/events", "orders.events", w(orderC.Events))
	authed.Get("/payments/transactions", "payments.transactions", w(paymentC.Transactions))

	// Customers.
	buyer := authed.Group("", rbac.HasRole(customer))
	buyer.Post("/orders", "orders.store", w(orderC.Store))
	buyer.Post("/orders/{id}/webpay", "payments.webpay.start", w(paymentC.StartWebpay))
	buyer.Get("/cart", "cart.show", w(cartC.Show))
	buyer.Post("/cart/items", "cart.add", w(cartC.Add))
	buyer.Put("/cart/items/{product}", "cart.quantity", w(cartC.SetQuantity))
	buyer.Delete("/cart/items/{product}", "cart.remove", w(cartC.Remove))
	buyer.Delete("/cart", "cart.clear", w(cartC.Clear))
	buyer.Post("/cart/checkout", "cart.checkout", w(cartC.Checkout))
	buyer.Get("/notifications", "notifications.mine", w(notificationC.Mine))
	buyer.Get("/notifications/unread", "notifications.unread", w(notificationC.UnreadCount))
	buyer.Patch("/notifications/{id}/read", "notifications.read", w(notificationC.MarkRead))

	// Staff.
	staff := authed.Group("", rbac.HasRole(admin, seller, warehouse))
	staff.Get("/inventory", "inventory.index", w(inventoryC.Index))
	staff.Get("/inventory/history", "inventory.history", w(inventoryC.History))
	staff.Post("/inventory/adjust", "inventory.adjust", w(inventoryC.Adjust))
	staff.Patch("/orders/{id}/status", "orders.transition", w(orderC.Transition))

	// Money.
	books := authed.Group("", rbac.HasRole(admin, accountant))
	books.Get("/payments/accounting", "payments.accounting", w(paymentC.AccountingEntries))
	books.Get("/reports/monthly-sales", "reports.monthly_sales", w(reportC.MonthlySales))
	books.Post("/reports/monthly-sales/export", "reports.monthly_sales.export", w(reportC.Export))

	// Admin.
	adm := authed.Group("/admin", rbac.HasRole(admin))
	adm.Post("/staff", "admin.staff.store", w(authC.CreateStaff))
	adm.Get("/users", "admin.users.index", w(authC.Users))
	adm.Patch("/users/{id}", "admin.users.update", w(authC.UpdateUser))
	adm.Patch("/users/{id}/active", "admin.users.active", w(authC.SetActive))
	adm.Get("/activity", "admin.activity", w(authC.Activity))

	adm.Post("/products", "admin.products.store", w(catalogC.Create))
	adm.Put("/products/{id}", "admin.products.update", w(catalogC.Update))
	adm.Delete("/products/{id}", "admin.products.delete", w(catalogC.Delete))
	adm.Post("/products/{id}/image", "admin.products.image", w(catalogC.UploadImage))
	adm.Post("/categories", "admin.categories.store", w(catalogC.CreateCategory))
	adm.Post("/brands", "admin.brands.store", w(catalogC.CreateBrand))

	adm.Post("/branches", "admin.branches.store", w(branchC.Store))
	adm.Post("/branches/{id}/warehouses", "admin.warehouses.store", w(branchC.AddWarehouse))
	adm.Post("/communes", "admin.communes.store", w(geoC.StoreCommune))

	adm.Post("/orders/{id}/lines", "admin.orders.lines.store", w(orderC.AddLine))
	adm.Delete("/orders/{id}/lines/{line}", "admin.orders.lines.delete", w(orderC.RemoveLine))
	adm.Post("/orders/{id}/reposition", "admin.orders.reposition", w(inventoryC.Reposition))
	adm.Post("/inventory/sweep", "admin.inventory.sweep", w(inventoryC.Sweep))

	adm.Get("/integration-logs", "admin.integration_logs", w(paymentC.IntegrationLogs))

	adm.Get("/rates", "admin.rates.index", w(currencyC.Index))
	adm.Post("/rates", "admin.rates.store", w(currencyC.Store))
	adm.Post("/rates/sync", "admin.rates.sync", w(currencyC.Sync))

	adm.Get("/promotions", "admin.promotions.index", w(promotionC.Index))
	adm.Post("/promotions", "admin.promotions.store", w(promotionC.Store))
	adm.Get("/promotions/{id}", "admin.promotions.show", w(promotionC.Show))
	adm.Put("/promotions/{id}", "admin.promotions.update", w(promotionC.Update))
	adm.Delete("/promotions/{id}", "admin.promotions.delete", w(promotionC.Delete))
	adm.Post("/promotions/{id}/products", "admin.promotions.attach", w(promotionC.Attach))
	adm.Post("/promotions/{id}/conditions", "admin.promotions.conditions", w(promotionC.AddCondition))
	adm.Post("/promotions/{id}/restrictions", "admin.promotions.restrictions", w(promotionC.AddRestriction))

	adm.Post("/notifications", "admin.notifications.broadcast", w(notificationC.Broadcast))
}

func health(check func(context.Context) error) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		if check != nil {
			if err := check(req.Context()); err != nil {
				response.Error(rw, http.StatusServiceUnavailable, "unhealthy: "+err.Error())
				return
			}
		}
		response.Success(rw, map[string]string{"status": "ok"})
	}
}
