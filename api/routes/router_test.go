package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/internal/checkout"
	"github.com/merchshop/storefront-backend/internal/coupons"
	product "github.com/merchshop/storefront-backend/internal/products"
	"github.com/merchshop/storefront-backend/pkg/config"
	"github.com/merchshop/storefront-backend/pkg/db/models"
	"github.com/merchshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
	"github.com/merchshop/storefront-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubProducts struct{}

func (stubProducts) GetProduct(_ context.Context, id string) (*cart.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (stubProducts) ListProducts(context.Context, product.ListFilters) (*product.ListResult, error) {
	return &product.ListResult{Products: []cart.Product{}}, nil
}

type stubCarts struct {
	sessions []string
}

func (s *stubCarts) View(_ context.Context, sessionID string) (cart.View, error) {
	s.sessions = append(s.sessions, sessionID)
	return cart.View{Items: []cart.Item{}}, nil
}

func (s *stubCarts) AddItem(context.Context, string, cart.Product, string, int, string) (cart.Notice, error) {
	return cart.Notice{}, nil
}

func (s *stubCarts) BuyNow(context.Context, string, cart.Product, string, int, string) error {
	return nil
}

func (s *stubCarts) RemoveItem(context.Context, string, string, string, string) error {
	return nil
}

func (s *stubCarts) UpdateQuantity(context.Context, string, string, string, int, string) error {
	return nil
}

type stubCheckout struct {
	submits int
}

func (s *stubCheckout) Summary(context.Context, string, string) (checkout.Summary, error) {
	return checkout.Summary{}, nil
}

func (s *stubCheckout) ClearCart(context.Context, string) error { return nil }

func (s *stubCheckout) SubmitOrder(context.Context, string, checkout.SubmitInput) (*checkout.OrderConfirmation, error) {
	s.submits++
	return &checkout.OrderConfirmation{OrderID: "ORD-20261016-0A1B2C", TotalAmount: decimal.NewFromInt(149), Status: enums.OrderStatusToBeCollected, PaymentMethod: enums.PaymentMethodCOD}, nil
}

type stubCoupons struct{}

func (stubCoupons) Get(context.Context, string) (coupons.Snapshot, error) {
	return coupons.Snapshot{State: enums.CouponStateIdle}, nil
}

func (stubCoupons) Apply(context.Context, string, string, decimal.Decimal) (coupons.Snapshot, error) {
	return coupons.Snapshot{}, nil
}

func (stubCoupons) Remove(context.Context, string) error { return nil }

type stubOrders struct{}

func (stubOrders) GetOrder(context.Context, string, string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

type testDeps struct {
	carts    *stubCarts
	checkout *stubCheckout
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "dev", Port: "0"},
		HTTP: config.HTTPConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func newTestRouter(t *testing.T) (http.Handler, testDeps) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total"}))

	deps := testDeps{carts: &stubCarts{}, checkout: &stubCheckout{}}
	router := NewRouter(
		testConfig(),
		logger.Nop(),
		stubPinger{},
		redis.NewFromRaw(raw, "test"),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		stubProducts{},
		deps.carts,
		deps.checkout,
		stubCoupons{},
		stubOrders{},
	)
	return router, deps
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "router_test_total") {
		t.Fatalf("expected metrics exposition, got %d", resp.Code)
	}
}

func TestCartRouteStartsSession(t *testing.T) {
	router, deps := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	minted := resp.Header().Get("X-Cart-Session")
	if minted == "" || len(deps.carts.sessions) != 1 || deps.carts.sessions[0] != minted {
		t.Fatalf("expected minted session %q to reach the cart, got %v", minted, deps.carts.sessions)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestCartRouteRejectsMalformedSession(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Cart-Session", "bad session!")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductRoutesNeedNoSession(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/products/unknown", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if resp.Header().Get("X-Cart-Session") != "" {
		t.Fatal("catalog routes must not start a cart session")
	}
}

func TestSubmitOrderIsIdempotent(t *testing.T) {
	router, deps := newTestRouter(t)
	body := `{"payment_method":"cod"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/orders", strings.NewReader(body))
		req.Header.Set("X-Cart-Session", "session-0001")
		req.Header.Set("Idempotency-Key", "order-attempt-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}
	if deps.checkout.submits != 1 {
		t.Fatalf("expected one submission, got %d", deps.checkout.submits)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", first.Body.String(), second.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
}
