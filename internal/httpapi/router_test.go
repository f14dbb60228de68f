package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheKaito2/Hybrid-complete/internal/cart"
	"github.com/TheKaito2/Hybrid-complete/internal/catalog"
	"github.com/TheKaito2/Hybrid-complete/internal/checkout"
	"github.com/TheKaito2/Hybrid-complete/internal/domain"
	"github.com/TheKaito2/Hybrid-complete/internal/repository"
	"github.com/TheKaito2/Hybrid-complete/internal/ws"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
}

func newFakeProductRepo(products ...domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]*domain.Product)}
	for i := range products {
		p := products[i]
		r.products[p.ID] = &p
	}
	return r
}

func (r *fakeProductRepo) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProductRepo) ListProducts(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProductRepo) AddStock(_ context.Context, id string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

func (r *fakeProductRepo) DeductStock(_ context.Context, id string, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return false, repository.ErrProductNotFound
	}
	if p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	return true, nil
}

func (r *fakeProductRepo) stock(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

type fakeSaleRepo struct {
	mu        sync.Mutex
	sales     []domain.Sale
	byPayment map[string]bool
}

func newFakeSaleRepo() *fakeSaleRepo {
	return &fakeSaleRepo{byPayment: make(map[string]bool)}
}

func (r *fakeSaleRepo) CreateSale(_ context.Context, sale *domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byPayment[sale.PaymentID] {
		return repository.ErrDuplicatePayment
	}
	r.byPayment[sale.PaymentID] = true
	r.sales = append([]domain.Sale{*sale}, r.sales...)
	return nil
}

func (r *fakeSaleRepo) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.sales) {
		limit = len(r.sales)
	}
	return append([]domain.Sale(nil), r.sales[:limit]...), nil
}

func (r *fakeSaleRepo) GetAnalytics(_ context.Context) (*domain.Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &domain.Analytics{TotalSales: len(r.sales)}
	for _, s := range r.sales {
		a.TotalRevenue += s.Total
	}
	return a, nil
}

type apiFixture struct {
	srv      *httptest.Server
	products *fakeProductRepo
	sales    *fakeSaleRepo
	store    *cart.Store
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	products := newFakeProductRepo(
		domain.Product{ID: "coke-325", Name: "Coke 325ml", Category: "beverage", Price: 20, Stock: 10, MinStock: 5},
		domain.Product{ID: "water-600", Name: "Water 600ml", Category: "beverage", Price: 12, Stock: 2, MinStock: 5},
		domain.Product{ID: "chips-50", Name: "Chips 50g", Category: "snack", Price: 18, Stock: 7, MinStock: 3},
	)
	sales := newFakeSaleRepo()

	hub := ws.NewHub()
	store := cart.NewStore(hub)
	catalogSvc := catalog.NewService(products, nil)

	checkoutSvc := checkout.NewService(store, catalogSvc, sales, nil, checkout.Config{})
	t.Cleanup(func() { checkoutSvc.Close() })

	router := NewRouter(Handlers{
		Cart:      NewCartHandler(store, catalogSvc),
		Checkout:  NewCheckoutHandler(checkoutSvc),
		Catalog:   NewCatalogHandler(catalogSvc, sales),
		Status:    NewStatusHandler(hub, store),
		Detection: ws.NewHandler(hub, ws.NoopDetector{}),
	}, 10*time.Second)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, products: products, sales: sales, store: store}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeInto(t *testing.T, data []byte, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, out))
}

func TestHealth(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestAddToCart(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/add-to-cart",
		AddItemRequestDTO{ProductID: "coke-325", Quantity: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result CartMutationResponse
	decodeInto(t, body, &result)
	assert.True(t, result.Success)
	assert.Equal(t, "Added 2x Coke 325ml to cart", result.Message)
	assert.Equal(t, 2, result.CartSummary.TotalItems)
	require.Len(t, result.CartSummary.Items, 1)
	assert.Equal(t, "coke-325", result.CartSummary.Items[0].ProductID)
}

func TestAddToCartDefaultsQuantityToOne(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/add-to-cart",
		AddItemRequestDTO{ProductID: "coke-325"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result CartMutationResponse
	decodeInto(t, body, &result)
	assert.Equal(t, 1, result.CartSummary.TotalItems)
}

func TestAddToCartResolvesIDVariants(t *testing.T) {
	f := setupAPI(t)

	// Underscore form and case variant both resolve to coke-325.
	for _, id := range []string{"coke_325", "COKE-325"} {
		resp, _ := f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: id})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "id %q should resolve", id)
	}

	assert.Equal(t, 2, f.store.Summary().TotalItems)
	assert.Equal(t, 1, f.store.Summary().UniqueItems)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/add-to-cart",
		AddItemRequestDTO{ProductID: "ghost-1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp ErrorResponse
	decodeInto(t, body, &errResp)
	assert.Equal(t, "Product ghost-1 not found", errResp.Error)
}

func TestAddToCartInsufficientStock(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/add-to-cart",
		AddItemRequestDTO{ProductID: "water-600", Quantity: 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "insufficient stock")
}

func TestAddToCartRejectsNegativeQuantity(t *testing.T) {
	f := setupAPI(t)

	resp, _ := f.do(t, http.MethodPost, "/api/add-to-cart",
		AddItemRequestDTO{ProductID: "coke-325", Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddBatchPartialSuccess(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/add-batch-to-cart", BatchRequestDTO{
		Items: []AddItemRequestDTO{
			{ProductID: "coke-325", Quantity: 2},
			{ProductID: "ghost-1", Quantity: 1},
			{ProductID: "chips-50"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result CartMutationResponse
	decodeInto(t, body, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.ItemsAdded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Product ghost-1 not found", result.Errors[0])
	assert.Equal(t, 2, result.CartSummary.UniqueItems)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325", Quantity: 2})

	resp, body := f.do(t, http.MethodDelete, "/api/cart/coke-325", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result CartMutationResponse
	decodeInto(t, body, &result)
	assert.Equal(t, 1, result.CartSummary.TotalItems)

	// Removing something that was never added still succeeds.
	resp, body = f.do(t, http.MethodDelete, "/api/cart/ghost-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, body, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.CartSummary.TotalItems)
}

func TestClearCart(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325", Quantity: 3})

	resp, body := f.do(t, http.MethodDelete, "/api/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result CartMutationResponse
	decodeInto(t, body, &result)
	assert.Equal(t, 0, result.CartSummary.TotalItems)
	assert.Empty(t, result.CartSummary.Items)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/checkout-cart", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	decodeInto(t, body, &errResp)
	assert.Equal(t, "Cart is empty", errResp.Error)
}

func TestCheckoutConfirmFlow(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325", Quantity: 2})
	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "chips-50", Quantity: 1})

	resp, body := f.do(t, http.MethodPost, "/api/checkout-cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session domain.PaymentSession
	decodeInto(t, body, &session)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, domain.SessionStatusPending, session.Status)
	assert.Equal(t, 58.0, session.Subtotal)
	assert.Equal(t, 4.06, session.Tax)
	assert.Equal(t, 62.06, session.Total)
	assert.True(t, strings.HasPrefix(session.QRCode, "data:image/png;base64,"))

	resp, body = f.do(t, http.MethodPost, "/api/confirm-payment/"+session.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sale domain.Sale
	decodeInto(t, body, &sale)
	assert.Equal(t, session.ID, sale.PaymentID)
	assert.Equal(t, 62.06, sale.Total)
	require.Len(t, sale.Items, 2)

	// Settlement clears the cart and deducts stock.
	assert.Equal(t, 0, f.store.Summary().TotalItems)
	assert.Equal(t, 8, f.products.stock("coke-325"))
	assert.Equal(t, 6, f.products.stock("chips-50"))

	// Double confirmation can never mint a second sale.
	resp, _ = f.do(t, http.MethodPost, "/api/confirm-payment/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/sales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []domain.Sale
	decodeInto(t, body, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, sale.ID, listed[0].ID)
}

func TestCheckoutIsIdempotentWhilePending(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325"})

	_, first := f.do(t, http.MethodPost, "/api/checkout-cart", nil)
	_, second := f.do(t, http.MethodPost, "/api/checkout-cart", nil)

	var a, b domain.PaymentSession
	decodeInto(t, first, &a)
	decodeInto(t, second, &b)
	assert.Equal(t, a.ID, b.ID)
}

func TestCancelPayment(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325"})
	_, body := f.do(t, http.MethodPost, "/api/checkout-cart", nil)
	var session domain.PaymentSession
	decodeInto(t, body, &session)

	resp, body := f.do(t, http.MethodPost, "/api/cancel-payment/"+session.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), session.ID)

	// Cancelled sessions cannot be confirmed, and the cart is untouched.
	resp, _ = f.do(t, http.MethodPost, "/api/confirm-payment/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, f.store.Summary().TotalItems)
}

func TestCancelUnknownPayment(t *testing.T) {
	f := setupAPI(t)

	resp, _ := f.do(t, http.MethodPost, "/api/cancel-payment/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListProducts(t *testing.T) {
	f := setupAPI(t)

	resp, body := f.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []domain.Product
	decodeInto(t, body, &products)
	require.Len(t, products, 3)
	assert.Equal(t, "chips-50", products[0].ID)
}

func TestRestock(t *testing.T) {
	f := setupAPI(t)

	resp, _ := f.do(t, http.MethodPost, "/api/restock/water-600?quantity=20", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 22, f.products.stock("water-600"))

	resp, _ = f.do(t, http.MethodPost, "/api/restock/water-600?quantity=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/restock/water-600?quantity=%d", -5), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/restock/ghost-1?quantity=5", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSalesRejectsBadLimit(t *testing.T) {
	f := setupAPI(t)

	resp, _ := f.do(t, http.MethodGet, "/api/sales?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/sales?limit=oops", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalytics(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325"})
	_, body := f.do(t, http.MethodPost, "/api/checkout-cart", nil)
	var session domain.PaymentSession
	decodeInto(t, body, &session)
	f.do(t, http.MethodPost, "/api/confirm-payment/"+session.ID, nil)

	resp, body := f.do(t, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analytics domain.Analytics
	decodeInto(t, body, &analytics)
	assert.Equal(t, 1, analytics.TotalSales)
	assert.Equal(t, 21.4, analytics.TotalRevenue)
}

func TestSystemStatus(t *testing.T) {
	f := setupAPI(t)

	f.do(t, http.MethodPost, "/api/add-to-cart", AddItemRequestDTO{ProductID: "coke-325", Quantity: 4})

	resp, body := f.do(t, http.MethodGet, "/api/system-status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	decodeInto(t, body, &status)
	assert.Equal(t, "online", status["status"])
	assert.Equal(t, float64(0), status["active_connections"])
	assert.Equal(t, float64(4), status["cart_items"])
	assert.NotEmpty(t, status["timestamp"])
}
