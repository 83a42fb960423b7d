package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	guard := resilience.NewGuard("supabase-test", resilience.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 4,
	})
	return NewClient(srv.Client(), srv.URL, "anon", "service", guard, zap.NewNop())
}

func writeRows(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestCatalogStore_FindProductsPopulates(t *testing.T) {
	var productQuery atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/rest/v1/products":
			productQuery.Store(r.URL.Query())
			writeRows(w, []map[string]any{{
				"id": "p1", "name": "Nike Pegasus", "price": 1800000,
				"category_id": "c1", "discount_id": "d1", "brand": "Nike",
				"sizes": []int{40, 41}, "colors": []string{"Đen"}, "stock_quantity": 3,
			}})
		case "/rest/v1/categories":
			writeRows(w, []map[string]any{{"id": "c1", "name": "Running"}})
		case "/rest/v1/discounts":
			writeRows(w, []map[string]any{{"id": "d1", "amount": "10", "is_active": true}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	store := NewCatalogStore(client)

	max := 2000000.0
	products, err := store.FindProducts(context.Background(), domain.ProductFilter{
		Brand: "Nike",
		Price: &domain.PriceRange{Max: &max},
		Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].Category)
	assert.Equal(t, "Running", products[0].Category.Name)
	require.NotNil(t, products[0].Discount)
	assert.Equal(t, 10.0, products[0].Discount.Amount.Float())

	q := productQuery.Load().(url.Values)
	assert.Equal(t, []string{"ilike.*Nike*"}, q["brand"])
	assert.Equal(t, []string{"lte.2000000"}, q["price"])
	assert.Equal(t, []string{"5"}, q["limit"])
}

func TestCatalogStore_KeywordsUseCategoryIDs(t *testing.T) {
	var orGroup atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/categories":
			writeRows(w, []map[string]any{{"id": "c1", "name": "Running"}, {"id": "c2", "name": "Formal"}})
		case "/rest/v1/products":
			orGroup.Store(r.URL.Query().Get("or"))
			writeRows(w, []map[string]any{})
		}
	})
	store := NewCatalogStore(client)

	_, err := store.FindProducts(context.Background(), domain.ProductFilter{Keywords: []string{"run"}})
	require.NoError(t, err)
	assert.Equal(t, "(description.ilike.*run*,category_id.in.(c1))", orGroup.Load())
}

func TestCatalogStore_GetProductNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeRows(w, []map[string]any{})
	})
	store := NewCatalogStore(client)

	_, err := store.GetProduct(context.Background(), "missing")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestCatalogStore_ReadsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeRows(w, []map[string]any{{"id": "c1", "name": "Casual"}})
	})
	store := NewCatalogStore(client)

	cats, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOrderStore_CreateOrderIsNotRetried(t *testing.T) {
	var posts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	store := NewOrderStore(client, NewCatalogStore(client))

	_, err := store.CreateOrder(context.Background(), &domain.Order{UserID: "u1"})
	require.Error(t, err)
	var ext *domain.ErrExternalService
	assert.True(t, errors.As(err, &ext))
	assert.Equal(t, "supabase/orders", ext.Service)
	assert.Equal(t, int32(1), posts.Load())
}

func TestOrderStore_CreateAndGetOrder(t *testing.T) {
	var stored atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/orders":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			stored.Store(body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("[" + string(body) + "]"))
		case r.URL.Path == "/rest/v1/orders":
			_, _ = w.Write([]byte("[" + string(stored.Load().([]byte)) + "]"))
		case r.URL.Path == "/rest/v1/products":
			writeRows(w, []map[string]any{{"id": "p1", "name": "Oxford", "price": 900000}})
		default:
			writeRows(w, []map[string]any{})
		}
	})
	store := NewOrderStore(client, NewCatalogStore(client))

	created, err := store.CreateOrder(context.Background(), &domain.Order{
		UserID:        "u1",
		Lines:         []domain.OrderLine{{ProductID: "p1", Quantity: 2, Price: 900000, Size: "41", Color: "Nâu"}},
		PaymentMethod: domain.PaymentCOD,
		TotalAmount:   1800000,
		Status:        domain.OrderPending,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, strings.Contains(string(stored.Load().([]byte)), `"user_id":"u1"`))

	got, err := store.GetOrder(context.Background(), created.ID)
	require.NoError(t, err)
	line, ok := got.FirstLine()
	require.True(t, ok)
	require.NotNil(t, line.Product)
	assert.Equal(t, "Oxford", line.Product.Name)
	assert.Equal(t, 1800000.0, got.TotalAmount)
}

func TestOrderStore_UpdateEmailUnknownOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		writeRows(w, []map[string]any{})
	})
	store := NewOrderStore(client, NewCatalogStore(client))

	err := store.UpdateOrderEmail(context.Background(), "nope", "a@b.vn")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}
