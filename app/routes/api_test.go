package routes_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/ferremas/app/integrations/webpay"
	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/app/routes"
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/database/testdb"
	"github.com/shashiranjanraj/ferremas/pkg/auth"
	"github.com/shashiranjanraj/ferremas/pkg/router"
	"github.com/shashiranjanraj/ferremas/pkg/testkit"
)

type stubGateway struct{ commits int }

func (g *stubGateway) Create(_ context.Context, in webpay.CreateRequest) (webpay.CreateResponse, webpay.Exchange, error) {
	return webpay.CreateResponse{Token: "tok-" + in.BuyOrder, URL: "https://webpay.test/init"}, webpay.Exchange{}, nil
}

func (g *stubGateway) Commit(context.Context, string) (webpay.CommitResponse, webpay.Exchange, error) {
	g.commits++
	return webpay.CommitResponse{Status: "AUTHORIZED", AuthorizationCode: "77"}, webpay.Exchange{}, nil
}

type api struct {
	h  http.Handler
	db *gorm.DB
	fx testdb.Fixtures
}

func newAPI(t *testing.T, health func(context.Context) error) api {
	t.Helper()
	return newAPIWith(t, health, &stubGateway{})
}

func newAPIWith(t *testing.T, health func(context.Context) error, gw services.Gateway) api {
	t.Helper()
	db := testdb.New(t)
	fx := testdb.Seed(t, db)
	r := router.New()
	routes.RegisterAPI(r, routes.Deps{
		Services: services.New(services.Deps{DB: db, Gateway: gw}),
		Health:   health,
	})
	return api{h: r.Handler(), db: db, fx: fx}
}

func token(t *testing.T, u models.User) string {
	t.Helper()
	pair, err := auth.IssuePair(auth.Subject{UserID: u.ID, Role: u.Role})
	require.NoError(t, err)
	return pair.Access
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)
	res := testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/healthz"})
	assert.Equal(t, http.StatusOK, res.Code)

	down := newAPI(t, func(context.Context) error { return errors.New("db gone") })
	res = testkit.Do(t, down.h, testkit.Request{Method: http.MethodGet, Path: "/healthz"})
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestCatalogIsPublic(t *testing.T) {
	a := newAPI(t, nil)

	res := testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/products?search=ham"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var page struct {
		Items []models.Product `json:"items"`
	}
	res.Data(t, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "HAM-1", page.Items[0].Code)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/products/999"})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestLoginRoute(t *testing.T) {
	a := newAPI(t, nil)

	res := testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/auth/login",
		Body: map[string]string{"login": "maria", "password": testdb.Password},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var sess struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	res.Data(t, &sess)
	assert.NotEmpty(t, sess.Access)

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/auth/login",
		Body: map[string]string{"login": "maria", "password": "nope"},
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/auth/login", Body: map[string]string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestOrderRoutesEnforceRoles(t *testing.T) {
	a := newAPI(t, nil)
	body := map[string]any{
		"branch_id": a.fx.Branch.ID, "delivery_type": "pickup", "payment_method": "webpay",
		"items": []map[string]any{{"product_id": a.fx.Hammer.ID, "quantity": 2}},
	}

	res := testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/orders", Body: body})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/orders", Body: body, Token: token(t, a.fx.Admin)})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/orders", Body: body, Token: token(t, a.fx.Customer)})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var order models.Order
	res.Data(t, &order)
	assert.Equal(t, "20", order.Total.String())

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/admin/users", Token: token(t, a.fx.Customer)})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestOrderRouteReportsShortStock(t *testing.T) {
	a := newAPI(t, nil)
	res := testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/orders", Token: token(t, a.fx.Customer),
		Body: map[string]any{
			"branch_id": a.fx.Branch.ID, "delivery_type": "pickup", "payment_method": "webpay",
			"items": []map[string]any{{"product_id": a.fx.Drill.ID, "quantity": 4}},
		},
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	env := res.Envelope(t)
	assert.Equal(t, "insufficient_stock", env.Code)
	assert.JSONEq(t, `{"index":0,"product_id":`+itoa(a.fx.Drill.ID)+`,"available":3,"requested":4}`, string(env.Errors))
}

func TestWebpayReturnRedirectsToStorefront(t *testing.T) {
	a := newAPI(t, nil)
	cust := token(t, a.fx.Customer)

	res := testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/orders", Token: cust,
		Body: map[string]any{
			"branch_id": a.fx.Branch.ID, "delivery_type": "pickup", "payment_method": "webpay",
			"items": []map[string]any{{"product_id": a.fx.Hammer.ID, "quantity": 1}},
		},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var order models.Order
	res.Data(t, &order)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/orders/" + itoa(order.ID) + "/webpay", Token: cust})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var start services.StartResult
	res.Data(t, &start)

	form := url.Values{"token_ws": {start.Token}}
	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/payments/webpay/return", Body: form.Encode(),
		Header: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code)
	loc := res.Header().Get("Location")
	assert.Contains(t, loc, "status=aprobado")
	assert.Contains(t, loc, "pedido_id="+itoa(order.ID))

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/payments/webpay/return"})
	require.Equal(t, http.StatusFound, res.Code)
	assert.Contains(t, res.Header().Get("Location"), "status=error_confirmacion")
}

func TestStartWebpayMapsGatewayFailures(t *testing.T) {
	tests := []struct {
		name   string
		stub   func(s *testkit.Stub)
		status int
		code   string
	}{
		{"timeout", func(s *testkit.Stub) { s.Hang() }, http.StatusGatewayTimeout, "gateway_timeout"},
		{"refused", func(s *testkit.Stub) { s.Fail(testkit.ErrRefused) }, http.StatusServiceUnavailable, "gateway_unavailable"},
		{"server error", func(s *testkit.Stub) { s.Reply(503, "down") }, http.StatusBadGateway, "gateway_bad_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := testkit.NewMockTransport()
			tt.stub(mt.On("POST", "https://webpay.test/"))
			testkit.Install(t, mt)

			a := newAPIWith(t, nil, &webpay.Client{BaseURL: "https://webpay.test", Timeout: 50 * time.Millisecond})
			cust := token(t, a.fx.Customer)
			res := testkit.Do(t, a.h, testkit.Request{
				Method: http.MethodPost, Path: "/api/orders", Token: cust,
				Body: map[string]any{
					"branch_id": a.fx.Branch.ID, "delivery_type": "pickup", "payment_method": "webpay",
					"items": []map[string]any{{"product_id": a.fx.Hammer.ID, "quantity": 1}},
				},
			})
			require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
			var order models.Order
			res.Data(t, &order)

			res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/orders/" + itoa(order.ID) + "/webpay", Token: cust})
			assert.Equal(t, tt.status, res.Code, res.Body.String())
			assert.Equal(t, tt.code, res.Envelope(t).Code)
		})
	}
}

func TestGraphQLProducts(t *testing.T) {
	a := newAPI(t, nil)

	res := testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/graphql",
		Body: map[string]any{"query": `{ products(search: "dri") { code price stockTotal } }`},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.JSONEq(t, `{"data":{"products":[{"code":"DRL-1","price":"20.00","stockTotal":3}]}}`, res.Body.String())
}

type sseEvent struct {
	Name string
	Data map[string]any
}

// readEvent returns the next named event, skipping comments.
func readEvent(t *testing.T, sc *bufio.Scanner) (sseEvent, bool) {
	t.Helper()
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.Data))
		case line == "" && ev.Name != "":
			return ev, true
		}
	}
	return ev, false
}

func TestOrderStatusStream(t *testing.T) {
	config.Set("ORDER_STREAM_POLL", "20ms")
	t.Cleanup(func() { config.Set("ORDER_STREAM_POLL", "") })

	a := newAPI(t, nil)
	cust := token(t, a.fx.Customer)
	res := testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/orders", Token: cust,
		Body: map[string]any{
			"branch_id": a.fx.Branch.ID, "delivery_type": "pickup", "payment_method": "webpay",
			"items": []map[string]any{{"product_id": a.fx.Hammer.ID, "quantity": 1}},
		},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var order models.Order
	res.Data(t, &order)

	srv := httptest.NewServer(a.h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/orders/"+itoa(order.ID)+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+cust)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	ev, ok := readEvent(t, sc)
	require.True(t, ok)
	assert.Equal(t, "status", ev.Name)
	assert.Equal(t, models.StatusInProcess, ev.Data["status"])

	require.NoError(t, a.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.StatusCancelled).Error)

	ev, ok = readEvent(t, sc)
	require.True(t, ok)
	assert.Equal(t, models.StatusCancelled, ev.Data["status"])

	// cancelled is final, so the server closes the stream
	_, ok = readEvent(t, sc)
	assert.False(t, ok)
}

func TestOrderStatusStreamNeedsAccess(t *testing.T) {
	a := newAPI(t, nil)
	res := testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/orders/1/events"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/orders/999/events", Token: token(t, a.fx.Customer)})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

func TestGeographyRoutes(t *testing.T) {
	a := newAPI(t, nil)

	res := testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/regions"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var regions []models.Region
	res.Data(t, &regions)
	assert.Len(t, regions, 16)

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/communes?region=CL-RM"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var communes []models.Commune
	res.Data(t, &communes)
	names := make([]string, len(communes))
	for i, c := range communes {
		names[i] = c.Name
	}
	assert.Contains(t, names, "Santiago")
	assert.NotContains(t, names, "Arica")

	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodGet, Path: "/api/communes?region=CL-XX"})
	assert.Equal(t, http.StatusNotFound, res.Code)

	body := map[string]any{"region_id": a.fx.Santiago.RegionID, "name": "santiago"}
	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/admin/communes", Body: body, Token: token(t, a.fx.Customer)})
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = testkit.Do(t, a.h, testkit.Request{Method: http.MethodPost, Path: "/api/admin/communes", Body: body, Token: token(t, a.fx.Admin)})
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestAccountRoutes(t *testing.T) {
	a := newAPI(t, nil)
	customer := token(t, a.fx.Customer)

	res := testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPatch, Path: "/api/auth/me", Token: customer,
		Body: map[string]any{"commune": "macul"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var me models.User
	res.Data(t, &me)
	require.NotNil(t, me.Customer)
	assert.Equal(t, "Macul", me.Customer.Commune)

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPatch, Path: "/api/auth/me", Token: customer,
		Body: map[string]any{"email": "not-an-address"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPut, Path: "/api/auth/password", Token: customer,
		Body: map[string]any{"current_password": testdb.Password, "password": "new-pass-99", "password_confirmation": "other"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPut, Path: "/api/auth/password", Token: customer,
		Body: map[string]any{"current_password": testdb.Password, "password": "new-pass-99", "password_confirmation": "new-pass-99"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPost, Path: "/api/auth/password/reset",
		Body: map[string]any{"token": "forged", "password": "new-pass-99", "password_confirmation": "new-pass-99"},
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPatch, Path: "/api/admin/users/" + itoa(a.fx.Clerk.ID), Token: token(t, a.fx.Admin),
		Body: map[string]any{"role": "seller"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var clerk models.User
	res.Data(t, &clerk)
	assert.Equal(t, models.RoleSeller, clerk.Role)

	res = testkit.Do(t, a.h, testkit.Request{
		Method: http.MethodPatch, Path: "/api/admin/users/" + itoa(a.fx.Clerk.ID), Token: token(t, a.fx.Admin),
		Body: map[string]any{"role": "customer"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}
