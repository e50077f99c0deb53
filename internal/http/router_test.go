package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/cartstore"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/journal"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	m     sync.RWMutex
	calls int
	err   error
}

func (n *mockNotifier) OrderPlaced(context.Context, string, domain.Order) error {
	n.m.Lock()
	defer n.m.Unlock()
	n.calls++
	return n.err
}

type mockReconciliations struct {
	attempts []*journal.CheckoutAttempt
	err      error
	limit    int
}

func (m *mockReconciliations) ListPendingReconciliation(_ context.Context, limit int) ([]*journal.CheckoutAttempt, error) {
	m.limit = limit
	return m.attempts, m.err
}

type testServer struct {
	router   chi.Router
	docs     *store.MemoryStore
	sessions *session.Registry
	notifier *mockNotifier
	admin    *mockReconciliations
}

const testAdminToken = "admin-secret"

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	docs := store.NewMemoryStore(
		domain.Product{ID: "radio", Name: "Red Radio", Price: decimal.RequireFromString("19.99"), Quantity: 2, ImageURL: "radio.png"},
		domain.Product{ID: "cable", Name: "Cable", Price: decimal.RequireFromString("0.10"), Quantity: 1},
		domain.Product{ID: "lamp", Name: "Lamp", Price: decimal.RequireFromString("5.00"), Quantity: 0},
	)
	cat := catalog.New(docs)
	require.NoError(t, cat.Load(context.Background()))

	sessions := session.NewRegistry(cat, cartstore.NewMemoryStore(), time.Minute)
	notifier := &mockNotifier{}
	admin := &mockReconciliations{}

	router := NewRouter(Handlers{
		Products: NewProductHandler(cat, 2, "/products.html", 5*time.Second),
		Cart:     NewCartHandler(sessions, cat, 2),
		Checkout: NewCheckoutHandler(sessions, checkout.NewOrchestrator(docs, docs, notifier), 5*time.Second),
		Admin:    NewAdminHandler(admin, 5*time.Second),
	}, RouterConfig{RequestTimeout: 5 * time.Second, AdminToken: testAdminToken})

	return &testServer{router: router, docs: docs, sessions: sessions, notifier: notifier, admin: admin}
}

func (s *testServer) do(t *testing.T, method, path, sessionID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) adminGet(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProducts_ListAndSearch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[ProductsResponse](t, rec)
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, view.LabelOutOfStock, all.Products[2].StockLabel)

	rec = s.do(t, http.MethodGet, "/api/v1/products?search=RADIO", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[ProductsResponse](t, rec)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "radio", found.Products[0].ID)
	assert.Equal(t, "19.99", found.Products[0].Price)
}

func TestProducts_Featured(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/featured", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[ProductsResponse](t, rec).Count)
}

func TestCatalogRefresh(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/catalog/refresh", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeBody[RefreshResponse](t, rec).Products)

	s.docs.ListErr = errors.New("store down")
	rec = s.do(t, http.MethodPost, "/api/v1/catalog/refresh", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "catalog_unavailable", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, 3, decodeBody[ProductsResponse](t, rec).Count)
}

func TestSearchRedirect(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/search?q=Red+Radio", "", nil)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/products.html?search=red%20radio", rec.Header().Get("Location"))
}

func TestSession_IssuedWhenMissing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(SessionHeader)
	assert.True(t, session.ValidID(id))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	cart := decodeBody[view.Cart](t, rec)
	assert.True(t, cart.Empty)
	assert.Equal(t, view.EmptyCartText, cart.EmptyText)
}

func TestSession_CookieIsReused(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-session"})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "cookie-session", rec.Header().Get(SessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestCart_AddUpdateRemove(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-a"

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "radio"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cart := decodeBody[view.Cart](t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, cart.Lines[0].Quantity)
	assert.True(t, cart.Lines[0].CanIncrement)

	rec = s.do(t, http.MethodPatch, "/api/v1/cart/items/radio", sid, UpdateQuantityRequestDTO{Delta: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeBody[view.Cart](t, rec)
	assert.Equal(t, 2, cart.Count)
	assert.Equal(t, "39.98", cart.Total)
	assert.False(t, cart.Lines[0].CanIncrement)

	rec = s.do(t, http.MethodPatch, "/api/v1/cart/items/radio", sid, UpdateQuantityRequestDTO{Delta: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "stock_limit_reached", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/radio", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[view.Cart](t, rec).Empty)
}

func TestCart_Errors(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-b"

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_product", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "lamp"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "out_of_stock", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/cart/items/radio", sid, UpdateQuantityRequestDTO{Delta: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_delta", decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/radio", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_SessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/api/v1/cart/items", "session-1", AddItemRequestDTO{ProductID: "radio"})

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "session-2", nil)
	assert.True(t, decodeBody[view.Cart](t, rec).Empty)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", "session-1", nil)
	assert.Equal(t, 1, decodeBody[view.Cart](t, rec).Count)
}

func TestCart_Clear(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-c"

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "radio"})
	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "cable"})

	rec := s.do(t, http.MethodDelete, "/api/v1/cart", sid, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[view.Cart](t, rec).Empty)
}

func TestPage(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-p"

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "cable"})
	rec := s.do(t, http.MethodGet, "/api/v1/page", sid, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[view.Page](t, rec)
	assert.Len(t, page.Products, 3)
	assert.Len(t, page.Featured, 2)
	assert.Equal(t, "0.10", page.Cart.Total)
}

func TestCheckout_Done(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-d"

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "radio"})
	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "radio"})

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", sid, CheckoutRequestDTO{Email: "ann@example.com", Name: "Ann"})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[CheckoutResponseDTO](t, rec)
	assert.Equal(t, "DONE", resp.Status)
	assert.Equal(t, "39.98", resp.Total)
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, 0, resp.Count)
	assert.True(t, resp.Cart.Empty)

	order, ok := s.docs.Order(resp.OrderID)
	require.True(t, ok)
	assert.Equal(t, "ann@example.com", order.CustomerEmail)

	p, err := s.docs.GetProduct(context.Background(), "radio")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", sid, nil)
	assert.True(t, decodeBody[view.Cart](t, rec).Empty)
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", "session-e", CheckoutRequestDTO{Email: "ann@example.com", Name: "Ann"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decodeBody[ErrorResponse](t, rec).Code)
	assert.Empty(t, s.docs.Orders())
}

func TestCheckout_Cancelled(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-f"

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "cable"})
	rec := s.do(t, http.MethodPost, "/api/v1/checkout", sid, CheckoutRequestDTO{Email: "ann@example.com", Name: "  "})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "checkout_cancelled", decodeBody[ErrorResponse](t, rec).Code)
	assert.Empty(t, s.docs.Orders())

	rec = s.do(t, http.MethodGet, "/api/v1/cart", sid, nil)
	assert.Equal(t, 1, decodeBody[view.Cart](t, rec).Count)
}

func TestCheckout_OrderCreationFailed(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-g"
	s.docs.CreateErr = errors.New("insert rejected")

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "cable"})
	rec := s.do(t, http.MethodPost, "/api/v1/checkout", sid, CheckoutRequestDTO{Email: "ann@example.com", Name: "Ann"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "order_creation_failed", decodeBody[ErrorResponse](t, rec).Code)
	assert.Equal(t, 0, s.notifier.calls)
}

func TestCheckout_PartialWhenNotificationFails(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-h"
	s.notifier.err = errors.New("relay down")

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "cable"})
	rec := s.do(t, http.MethodPost, "/api/v1/checkout", sid, CheckoutRequestDTO{Email: "ann@example.com", Name: "Ann"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeBody[CheckoutResponseDTO](t, rec)
	assert.Equal(t, partialMessage, resp.Message)
	assert.Equal(t, "FAILED", resp.Status)
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, 1, resp.Count)
	assert.Len(t, s.docs.Orders(), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", sid, nil)
	assert.Equal(t, 1, decodeBody[view.Cart](t, rec).Count)
}

func TestAdmin_PendingReconciliation(t *testing.T) {
	s := newTestServer(t)
	s.admin.attempts = []*journal.CheckoutAttempt{{
		ID:            "attempt-1",
		OrderID:       "order-1",
		SessionID:     "session-1",
		FailedStep:    "SENDING_NOTIFICATIONS",
		FailureReason: "relay down",
		Total:         decimal.RequireFromString("12.5"),
		CustomerEmail: "ann@example.com",
		CartSnapshot:  json.RawMessage(`[{"id":"radio","quantity":1}]`),
	}}

	rec := s.adminGet(t, "/api/v1/admin/reconciliation?limit=10", testAdminToken)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, s.admin.limit)
	resp := decodeBody[ReconciliationsResponse](t, rec)
	require.Len(t, resp.Pending, 1)
	assert.Equal(t, "order-1", resp.Pending[0].OrderID)
	assert.Equal(t, "12.50", resp.Pending[0].Total)
	assert.JSONEq(t, `[{"id":"radio","quantity":1}]`, string(resp.Pending[0].Items))
}

func TestAdmin_InvalidLimitAndFailure(t *testing.T) {
	s := newTestServer(t)

	rec := s.adminGet(t, "/api/v1/admin/reconciliation?limit=0", testAdminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.admin.err = errors.New("db down")
	rec = s.adminGet(t, "/api/v1/admin/reconciliation", testAdminToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, defaultReconciliationLimit, s.admin.limit)
}

func TestAdmin_RouteAbsentWithoutJournal(t *testing.T) {
	docs := store.NewMemoryStore()
	cat := catalog.New(docs)
	sessions := session.NewRegistry(cat, cartstore.NewMemoryStore(), time.Minute)
	router := NewRouter(Handlers{
		Products: NewProductHandler(cat, 1, "/products.html", time.Second),
		Cart:     NewCartHandler(sessions, cat, 1),
		Checkout: NewCheckoutHandler(sessions, checkout.NewOrchestrator(docs, docs, &mockNotifier{}), time.Second),
	}, RouterConfig{RequestTimeout: time.Second, AdminToken: testAdminToken})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reconciliation", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDMiddleware_KeepsIncomingID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}

func TestAdmin_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	for _, token := range []string{"", "wrong-token"} {
		rec := s.adminGet(t, "/api/v1/admin/reconciliation", token)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
		assert.Equal(t, "unauthorized", decodeBody[ErrorResponse](t, rec).Code)
	}
	assert.Zero(t, s.admin.limit, "handler must not run")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reconciliation", nil)
	req.Header.Set("Authorization", testAdminToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthMiddleware_EmptyTokenRejectsAll(t *testing.T) {
	called := false
	handler := AdminAuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reconciliation", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestCart_ReadsDoNotHoldEngines(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 200; i++ {
		rec := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rec = s.do(t, http.MethodGet, "/api/v1/page", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 0, s.sessions.Len())

	s.do(t, http.MethodPost, "/api/v1/cart/items", "session-r", AddItemRequestDTO{ProductID: "radio"})
	assert.Equal(t, 1, s.sessions.Len())
	s.sessions.Sweep(time.Now().Add(time.Hour))
	assert.Equal(t, 0, s.sessions.Len())

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "session-r", nil)
	assert.Equal(t, 1, decodeBody[view.Cart](t, rec).Count, "cart restored from slot")
	assert.Equal(t, 0, s.sessions.Len())
}

func TestCheckout_InProgressIsConflict(t *testing.T) {
	s := newTestServer(t)
	const sid = "session-c"

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, AddItemRequestDTO{ProductID: "radio"})
	engine, err := s.sessions.Engine(context.Background(), sid)
	require.NoError(t, err)
	require.True(t, engine.TryLockCheckout())

	rec := s.do(t, http.MethodPost, "/api/v1/checkout", sid, CheckoutRequestDTO{Email: "ann@example.com", Name: "Ann"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "checkout_in_progress", decodeBody[ErrorResponse](t, rec).Code)
	assert.Empty(t, s.docs.Orders())

	engine.UnlockCheckout()
	rec = s.do(t, http.MethodPost, "/api/v1/checkout", sid, CheckoutRequestDTO{Email: "ann@example.com", Name: "Ann"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, s.docs.Orders(), 1)
}
