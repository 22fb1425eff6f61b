package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/integrations/webpay"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/database/testdb"
)

// fakeGateway hands out sequential tokens and answers commits from a
// script.
type fakeGateway struct {
	mu        sync.Mutex
	created   int
	commits   int
	commit    webpay.CommitResponse
	commitErr error
	onCommit  func()
}

func approved() webpay.CommitResponse {
	return webpay.CommitResponse{
		Status:            "AUTHORIZED",
		ResponseCode:      0,
		AuthorizationCode: "1213",
		CardDetail:        webpay.CardDetail{CardNumber: "6623"},
	}
}

func rejected() webpay.CommitResponse {
	return webpay.CommitResponse{Status: "FAILED", ResponseCode: -1}
}

func (g *fakeGateway) Create(_ context.Context, in webpay.CreateRequest) (webpay.CreateResponse, webpay.Exchange, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	return webpay.CreateResponse{Token: fmt.Sprintf("tok-%d", g.created), URL: "https://webpay.test/init"},
		webpay.Exchange{Operation: "create", StatusCode: 200}, nil
}

func (g *fakeGateway) Commit(_ context.Context, token string) (webpay.CommitResponse, webpay.Exchange, error) {
	if g.onCommit != nil {
		g.onCommit()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commits++
	if g.commitErr != nil {
		return webpay.CommitResponse{}, webpay.Exchange{Operation: "commit"}, g.commitErr
	}
	return g.commit, webpay.Exchange{Operation: "commit", StatusCode: 200}, nil
}

func (g *fakeGateway) Commits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commits
}

type env struct {
	svc *services.Services
	db  *gorm.DB
	fx  testdb.Fixtures
	gw  *fakeGateway
}

func setup(t *testing.T) env {
	t.Helper()
	db := testdb.New(t)
	fx := testdb.Seed(t, db)
	gw := &fakeGateway{commit: approved()}
	return env{
		svc: services.New(services.Deps{DB: db, Gateway: gw}),
		db:  db,
		fx:  fx,
		gw:  gw,
	}
}

func (e env) customer() services.Actor {
	return services.Actor{UserID: e.fx.Customer.ID, Role: models.RoleCustomer}
}

func (e env) admin() services.Actor {
	return services.Actor{UserID: e.fx.Admin.ID, Role: models.RoleAdmin}
}

func (e env) pickup(items ...services.OrderItem) services.CreateOrderInput {
	return services.CreateOrderInput{
		BranchID:      e.fx.Branch.ID,
		DeliveryType:  models.DeliveryPickup,
		PaymentMethod: models.PaymentWebpay,
		Items:         items,
	}
}

func item(p models.Product, qty int) services.OrderItem {
	return services.OrderItem{ProductID: p.ID, Quantity: qty}
}

func (e env) bulk(t *testing.T, p models.Product) int {
	return testdb.Quantity(t, e.db, p.ID, e.fx.Bulk.ID)
}

func (e env) floor(t *testing.T, p models.Product) int {
	return testdb.Quantity(t, e.db, p.ID, e.fx.Floor.ID)
}

// placeAndStart creates an order and opens its gateway transaction.
func (e env) placeAndStart(t *testing.T, items ...services.OrderItem) (*models.Order, *services.StartResult) {
	t.Helper()
	ctx := context.Background()
	order, err := e.svc.Orders.Create(ctx, e.customer(), e.pickup(items...))
	require.NoError(t, err)
	start, err := e.svc.Payments.StartWebpay(ctx, e.customer(), order.ID)
	require.NoError(t, err)
	return order, start
}

func (e env) reload(t *testing.T, id uint) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, e.db.First(&o, id).Error)
	return o
}
