package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcart "github.com/smalob/marketplace/internal/application/cart"
	appcheckout "github.com/smalob/marketplace/internal/application/checkout"
	apporder "github.com/smalob/marketplace/internal/application/order"
	"github.com/smalob/marketplace/internal/domain/catalog"
	"github.com/smalob/marketplace/internal/domain/money"
	domorder "github.com/smalob/marketplace/internal/domain/order"
	"github.com/smalob/marketplace/internal/infrastructure/memory"
	"github.com/smalob/marketplace/internal/infrastructure/notify"
	"github.com/smalob/marketplace/internal/infrastructure/payment/sandbox"
)

type uuidIDGen struct{ n int }

func (g *uuidIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type nopMessenger struct{}

func (nopMessenger) OrderConfirmation(ctx context.Context, o *domorder.Order) error { return nil }

type testServer struct {
	router  http.Handler
	ledger  *memory.InventoryLedger
	gateway *sandbox.Gateway
	hub     *notify.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ledger := memory.NewInventoryLedger(15 * time.Minute)
	ledger.Seed(
		catalog.Product{ID: "prod-1", Name: "Espresso Beans", Price: money.FromFloat(10, money.CAD), Stock: 5, VendorID: "vendor-a"},
		catalog.Product{ID: "prod-2", Name: "Maple Syrup", Price: money.FromFloat(4, money.CAD), Stock: 2, VendorID: "vendor-b"},
	)

	cartRepo := memory.NewCartRepository()
	orderRepo := memory.NewOrderRepository()
	hub := notify.NewHub(16, nil, nil)
	t.Cleanup(hub.Close)
	gateway := sandbox.New(nil, nil)

	cartSvc := appcart.NewService(cartRepo, ledger, nil)
	checkoutSvc := appcheckout.NewService(cartRepo, orderRepo, ledger, ledger, gateway, hub, nopMessenger{}, &uuidIDGen{}, nil)
	orderSvc := apporder.NewService(orderRepo, hub, nil)

	h := NewHandler(cartSvc, checkoutSvc, orderSvc, hub, nil)
	return &testServer{router: h.Router(), ledger: ledger, gateway: gateway, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Role", role)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestHealth_NoAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentity_Required(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/cart", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/cart", "cust-1", "wizard", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cart := decodeBody[cartResponse](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "10.00", cart.Items[0].UnitPrice)
	assert.Equal(t, "20.00", cart.Total)

	rec = s.do(t, http.MethodPut, "/cart/items/prod-1", "cust-1", "customer",
		map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeBody[cartResponse](t, rec)
	assert.Equal(t, "30.00", cart.Total)

	rec = s.do(t, http.MethodDelete, "/cart/items/prod-1", "cust-1", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeBody[cartResponse](t, rec)
	assert.Empty(t, cart.Items)

	// Unknown product is a 404.
	rec = s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-missing", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func checkoutBody() map[string]any {
	return map[string]any{
		"payment_token": "tok-visa",
		"customer_info": map[string]any{
			"full_name":   gofakeit.Name(),
			"phone":       gofakeit.Phone(),
			"address":     gofakeit.Street(),
			"postal_code": gofakeit.Zip(),
		},
	}
}

func TestCheckout_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", checkoutBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[checkoutResponse](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, domorder.StatusPending, res.Status)
	assert.Equal(t, "20.00", res.Total)
	assert.NotEmpty(t, res.TransactionID)

	// The order is visible to its customer.
	rec = s.do(t, http.MethodGet, "/orders/"+res.OrderID, "cust-1", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ord := decodeBody[orderPayload](t, rec)
	assert.Equal(t, res.OrderID, ord.OrderID)
	assert.Equal(t, "20.00", ord.Subtotal)

	// The cart came back empty.
	rec = s.do(t, http.MethodGet, "/cart", "cust-1", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[cartResponse](t, rec)
	assert.Empty(t, cart.Items)
}

func TestCheckout_RequiresCustomerRole(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/checkout", "vendor-a", "vendor", checkoutBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", checkoutBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-2", "quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", checkoutBody())
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "prod-2", body.ProductID)
	assert.True(t, body.Retryable)
}

func TestCheckout_CardDeclined(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	body := checkoutBody()
	body["payment_token"] = sandbox.TokenDeclined
	rec = s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", body)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestCheckout_AmountMismatch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	body := checkoutBody()
	body["amount"] = "9.99"
	rec = s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_IdempotencyKeyReplay(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	first := httptest.NewRecorder()
	req := newCheckoutRequest(t, "idem-1")
	s.router.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := httptest.NewRecorder()
	s.router.ServeHTTP(second, newCheckoutRequest(t, "idem-1"))
	require.Equal(t, http.StatusCreated, second.Code)

	a := decodeBody[checkoutResponse](t, first)
	b := decodeBody[checkoutResponse](t, second)
	assert.Equal(t, a.OrderID, b.OrderID)
	assert.Equal(t, 1, s.gateway.Captures())
}

func newCheckoutRequest(t *testing.T, idemKey string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(checkoutBody()))
	req := httptest.NewRequest(http.MethodPost, "/checkout", &buf)
	req.Header.Set("X-User-ID", "cust-1")
	req.Header.Set("X-User-Role", "customer")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)
	return req
}

func TestOrderStatus_RoleGatedOverHTTP(t *testing.T) {
	s := newTestServer(t)

	// Settle an order first.
	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", checkoutBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeBody[checkoutResponse](t, rec).OrderID

	// The vendor advances fulfilment.
	rec = s.do(t, http.MethodPut, "/orders/"+orderID+"/status", "vendor-a", "vendor",
		map[string]any{"status": "Processing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domorder.StatusProcessing, decodeBody[orderPayload](t, rec).Status)

	// A vendor cannot cancel.
	rec = s.do(t, http.MethodPut, "/orders/"+orderID+"/status", "vendor-a", "vendor",
		map[string]any{"status": "Cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Skipping Shipped -> Delivered directly from Processing is a conflict.
	rec = s.do(t, http.MethodPut, "/orders/"+orderID+"/status", "admin-1", "admin",
		map[string]any{"status": "Delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// An unknown status is a bad request.
	rec = s.do(t, http.MethodPut, "/orders/"+orderID+"/status", "admin-1", "admin",
		map[string]any{"status": "Teleported"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders_VendorProjection(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-1", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/cart/items", "cust-1", "customer",
		map[string]any{"product_id": "prod-2", "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/checkout", "cust-1", "customer", checkoutBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders", "vendor-a", "vendor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody[[]orderPayload](t, rec)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "vendor-a", orders[0].Items[0].VendorID)
	assert.Equal(t, "10.00", orders[0].Subtotal)

	// The other customer sees nothing.
	rec = s.do(t, http.MethodGet, "/orders", "cust-2", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]orderPayload](t, rec))
}
