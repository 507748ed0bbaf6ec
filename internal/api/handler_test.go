package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shop is a small in-memory backing store for orders, coupons and the
// storefront catalog. Interface methods the tests never reach are left to
// the embedded nil interfaces.
type shop struct {
	service.CouponRepository
	service.CatalogRepository

	mu       sync.Mutex
	products map[int64]*models.Product
	coupons  map[string]*models.Coupon
	orders   map[int64]*models.Order
	items    map[int64][]models.OrderItem
	nextID   int64
}

func newShop() *shop {
	return &shop{
		products: map[int64]*models.Product{},
		coupons:  map[string]*models.Coupon{},
		orders:   map[int64]*models.Order{},
		items:    map[int64][]models.OrderItem{},
	}
}

func (s *shop) RunInTx(ctx context.Context, fn func(tx service.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

func (s *shop) LockPurchasableProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Purchasable() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *shop) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := s.coupons[code]
	if !ok {
		return nil, apperr.NotFound("coupon")
	}
	cp := *c
	return &cp, nil
}

func (s *shop) CreateOrder(ctx context.Context, order *models.Order) error {
	s.nextID++
	order.ID = s.nextID
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *shop) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	for _, it := range items {
		s.items[it.OrderID] = append(s.items[it.OrderID], it)
	}
	return nil
}

func (s *shop) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	s.products[productID].Stock -= quantity
	return nil
}

func (s *shop) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	s.products[productID].Stock += quantity
	return nil
}

func (s *shop) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.GetOrderByID(ctx, id)
}

func (s *shop) UpdateOrderStatus(ctx context.Context, order *models.Order, status models.OrderStatus) error {
	s.orders[order.ID].Status = status
	order.Status = status
	return nil
}

func (s *shop) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return s.items[orderID], nil
}

func (s *shop) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	cp := *o
	return &cp, nil
}

func (s *shop) GetOrderByInvoice(ctx context.Context, invoiceNo string) (*models.Order, error) {
	for _, o := range s.orders {
		if o.InvoiceNo == invoiceNo {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("order")
}

func (s *shop) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return s.items[orderID], nil
}

func (s *shop) ListOrders(ctx context.Context, p store.ListParams) (*store.Page[models.Order], error) {
	out := []models.Order{}
	for _, o := range s.orders {
		if p.CustomerID != nil && (o.CustomerID == nil || *o.CustomerID != *p.CustomerID) {
			continue
		}
		out = append(out, *o)
	}
	return &store.Page[models.Order]{
		Data: out,
		Meta: store.Meta{Page: p.Page, Limit: p.Limit, Total: int64(len(out))},
	}, nil
}

func (s *shop) ListProducts(ctx context.Context, p store.ListParams) (*store.Page[models.Product], error) {
	out := []models.Product{}
	for _, prod := range s.products {
		if p.Published != nil && prod.IsPublished != *p.Published {
			continue
		}
		out = append(out, *prod)
	}
	return &store.Page[models.Product]{Data: out, Meta: store.Meta{Page: p.Page, Limit: p.Limit, Total: int64(len(out))}}, nil
}

type accounts struct {
	service.AccountRepository
	customers []*models.Customer
}

func (a *accounts) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	for _, c := range a.customers {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("customer")
}

func (a *accounts) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	for _, c := range a.customers {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("customer")
}

func (a *accounts) CreateCustomer(ctx context.Context, c *models.Customer) error {
	c.ID = int64(len(a.customers) + 1)
	cp := *c
	a.customers = append(a.customers, &cp)
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

type testServer struct {
	router *gin.Engine
	shop   *shop
	tokens *auth.Manager
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			TokenTTL:   time.Hour,
			CookieName: "sf_session",
		},
		Business: config.BusinessConfig{
			RestockOnCancel: true,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	}

	s := newShop()
	s.products[1] = &models.Product{ID: 1, Name: "Kopi Susu", Slug: "kopi-susu", Price: decimal.NewFromInt(20000), Stock: 10, IsPublished: true, Status: models.ProductStatusActive}
	s.products[2] = &models.Product{ID: 2, Name: "Teh Tarik", Slug: "teh-tarik", Price: decimal.NewFromInt(15000), Stock: 1, IsPublished: true, Status: models.ProductStatusActive}
	s.coupons["SAVE10"] = &models.Coupon{Code: "SAVE10", DiscountType: models.DiscountPercent, Amount: decimal.NewFromInt(10), MinSpend: decimal.Zero, Active: true}

	tokens := auth.NewManager(cfg.Auth)
	svc := Services{
		Orders:   service.NewOrderService(s, nil, nil, cfg.Business),
		Coupons:  service.NewCouponService(s),
		Catalog:  service.NewCatalogService(s, nil),
		Accounts: service.NewAccountService(&accounts{}, tokens),
	}

	router := gin.New()
	NewHandler(cfg, svc, tokens, map[string]Pinger{"postgres": pinger{}}).SetupRoutes(router)

	return &testServer{router: router, shop: s, tokens: tokens, cfg: cfg}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Meta    *store.Meta     `json:"meta"`
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (ts *testServer) bearer(t *testing.T, id int64, role string) string {
	t.Helper()
	token, err := ts.tokens.Issue(id, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func checkoutBody(items ...service.OrderItemRequest) map[string]interface{} {
	return map[string]interface{}{
		"customer":      map[string]string{"name": "Budi", "phone": "0812", "address": "Jl. Merdeka 1"},
		"paymentMethod": "cod",
		"items":         items,
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestReadinessReportsDownDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(&config.Config{}, Services{}, auth.NewManager(config.AuthConfig{JWTSecret: "x", TokenTTL: time.Hour}),
		map[string]Pinger{"redis": pinger{err: errors.New("connection refused")}})
	router.GET("/ready", h.readinessCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)

	body := checkoutBody(service.OrderItemRequest{ProductID: 1, Quantity: 2}, service.OrderItemRequest{ProductID: 2, Quantity: 1})
	body["couponCode"] = "save10"

	w, env := ts.do(t, http.MethodPost, "/api/store/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, float64(55000), summary["subtotal"])
	assert.Equal(t, float64(5500), summary["discount"])
	assert.Equal(t, float64(49500), summary["total"])
	assert.Equal(t, "COD", summary["paymentMethod"])

	assert.Equal(t, 8, ts.shop.products[1].Stock)
	assert.Equal(t, 0, ts.shop.products[2].Stock)

	invoice := summary["invoiceNo"].(string)
	w, env = ts.do(t, http.MethodGet, "/api/store/orders/"+invoice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, invoice, order.InvoiceNo)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/store/orders", checkoutBody(service.OrderItemRequest{ProductID: 2, Quantity: 3}))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "InsufficientStock", env.Error)

	var data service.InsufficientStockData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(2), data.ProductID)
	assert.Equal(t, 1, data.Available)
	assert.Equal(t, 3, data.Requested)

	assert.Equal(t, 1, ts.shop.products[2].Stock)
	assert.Empty(t, ts.shop.orders)
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/store/orders", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, env = ts.do(t, http.MethodPost, "/api/store/orders", checkoutBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", env.Error)

	w, env = ts.do(t, http.MethodPost, "/api/store/orders", checkoutBody(service.OrderItemRequest{ProductID: 99, Quantity: 1}))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ProductUnavailable", env.Error)
}

func TestCustomerCheckoutAndOrderHistory(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/store/auth/register", map[string]string{
		"name": "Sari", "email": "sari@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session service.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.NotEmpty(t, session.Token)

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == ts.cfg.Auth.CookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	w, _ = ts.do(t, http.MethodPost, "/api/store/orders",
		checkoutBody(service.OrderItemRequest{ProductID: 1, Quantity: 1}),
		"Authorization", "Bearer "+session.Token)
	require.Equal(t, http.StatusCreated, w.Code)

	_, _ = ts.do(t, http.MethodPost, "/api/store/orders", checkoutBody(service.OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.Len(t, ts.shop.orders, 2)

	w, env = ts.do(t, http.MethodGet, "/api/store/me/orders", nil, "Cookie", cookie.Name+"="+cookie.Value)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.Total)

	var orders []models.Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].CustomerID)
	assert.Equal(t, int64(1), *orders[0].CustomerID)
}

func TestRoleGating(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"anonymous admin", "/api/admin/orders", "", http.StatusUnauthorized},
		{"garbage token", "/api/admin/orders", "Bearer nope", http.StatusUnauthorized},
		{"customer on admin", "/api/admin/orders", ts.bearer(t, 1, models.RoleCustomer), http.StatusForbidden},
		{"cashier on orders", "/api/admin/orders", ts.bearer(t, 2, string(models.RoleCashier)), http.StatusOK},
		{"cashier on products", "/api/admin/products", ts.bearer(t, 2, string(models.RoleCashier)), http.StatusForbidden},
		{"manager on staff", "/api/admin/staff", ts.bearer(t, 3, string(models.RoleManager)), http.StatusForbidden},
		{"staff on customer history", "/api/store/me/orders", ts.bearer(t, 3, string(models.RoleAdmin)), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.auth != "" {
				headers = []string{"Authorization", tt.auth}
			}
			w, env := ts.do(t, http.MethodGet, tt.path, nil, headers...)
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.False(t, env.Success)
				assert.NotEmpty(t, env.Message)
			}
		})
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.bearer(t, 1, string(models.RoleAdmin))

	w, _ := ts.do(t, http.MethodPost, "/api/store/orders", checkoutBody(service.OrderItemRequest{ProductID: 1, Quantity: 3}))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, 7, ts.shop.products[1].Stock)

	w, env := ts.do(t, http.MethodPut, "/api/admin/orders/1/status", map[string]string{"status": "shipped"}, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", env.Error)

	w, _ = ts.do(t, http.MethodPut, "/api/admin/orders/abc/status", map[string]string{"status": "cancelled"}, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = ts.do(t, http.MethodPut, "/api/admin/orders/1/status", map[string]string{"status": "cancelled"}, "Authorization", admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, 10, ts.shop.products[1].Stock)

	w, _ = ts.do(t, http.MethodGet, "/api/admin/orders/42", nil, "Authorization", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminListOrdersRejectsUnknownStatus(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/admin/orders?status=lost", nil, "Authorization", ts.bearer(t, 1, string(models.RoleAdmin)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "lost")
}

func TestValidateCouponEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/store/coupons/validate", map[string]interface{}{"code": "save10", "subtotal": 50000})
	require.Equal(t, http.StatusOK, w.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, true, result["valid"])
	assert.Equal(t, float64(5000), result["discountAmount"])

	w, env = ts.do(t, http.MethodPost, "/api/store/coupons/validate", map[string]interface{}{"code": "NOPE", "subtotal": 50000})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, false, result["valid"])
	assert.Equal(t, "not_found", result["reason"])

	w, _ = ts.do(t, http.MethodPost, "/api/store/coupons/validate", map[string]interface{}{"subtotal": 50000})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStorefrontProductsQueryParams(t *testing.T) {
	ts := newTestServer(t)
	ts.shop.products[3] = &models.Product{ID: 3, Name: "Hidden", Slug: "hidden", IsPublished: false, Status: models.ProductStatusActive}

	w, env := ts.do(t, http.MethodGet, "/api/store/products?page=1&limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 100, env.Meta.Limit)

	var products []models.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Len(t, products, 2)

	w, env = ts.do(t, http.MethodGet, "/api/store/products?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "page must be an integer", env.Message)

	w, _ = ts.do(t, http.MethodGet, "/api/store/products?price_min=cheap", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ts.cfg.Auth.CookieName, cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}
