package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/cache"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"
	"github.com/boddenberg/shoeshop-bot-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockCatalog struct {
	categories []domain.Category
	listCalls  int
	err        error
}

func (m *mockCatalog) FindCategoryByName(context.Context, string) (*domain.Category, error) {
	return nil, errors.New("not used")
}

func (m *mockCatalog) ListCategories(context.Context) ([]domain.Category, error) {
	m.listCalls++
	return m.categories, m.err
}

func (m *mockCatalog) FindProducts(context.Context, domain.ProductFilter) ([]domain.Product, error) {
	return []domain.Product{{ID: "p1"}}, nil
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	return &domain.Product{ID: id}, nil
}

func newCatalog(t *testing.T, store *mockCatalog) (*service.CachedCatalog, *observability.Metrics) {
	t.Helper()
	c := cache.New[[]domain.Category](time.Minute)
	t.Cleanup(c.Close)
	metrics := observability.NewMetrics()
	return service.NewCachedCatalog(store, c, metrics, zap.NewNop()), metrics
}

// --- Tests ---

func TestCachedCatalog_ListCategoriesCaches(t *testing.T) {
	store := &mockCatalog{categories: []domain.Category{{ID: "c1", Name: "Running"}}}
	catalog, metrics := newCatalog(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cats, err := catalog.ListCategories(ctx)
		require.NoError(t, err)
		assert.Len(t, cats, 1)
	}
	assert.Equal(t, 1, store.listCalls)

	snap := metrics.GetDialogueSnapshot()
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRate, 0.001)

	catalog.Invalidate()
	_, err := catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)
}

func TestCachedCatalog_FindCategoryByName(t *testing.T) {
	store := &mockCatalog{categories: []domain.Category{
		{ID: "c1", Name: "Running"},
		{ID: "c2", Name: "Casual"},
	}}
	catalog, _ := newCatalog(t, store)
	ctx := context.Background()

	cat, err := catalog.FindCategoryByName(ctx, "CASUAL")
	require.NoError(t, err)
	assert.Equal(t, "c2", cat.ID)

	cat, err = catalog.FindCategoryByName(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "c1", cat.ID)

	_, err = catalog.FindCategoryByName(ctx, "Boots")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, 1, store.listCalls)
}

func TestCachedCatalog_StoreErrorIsNotCached(t *testing.T) {
	store := &mockCatalog{err: &domain.ErrExternalService{Service: "supabase/categories", Err: errors.New("down")}}
	catalog, _ := newCatalog(t, store)
	ctx := context.Background()

	_, err := catalog.ListCategories(ctx)
	require.Error(t, err)

	store.err = nil
	store.categories = []domain.Category{{ID: "c1", Name: "Formal"}}
	cats, err := catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}
