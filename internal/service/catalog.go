// Package service provides the use-case layer around the catalog.
package service

import (
	"context"
	"strings"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"
	"github.com/boddenberg/shoeshop-bot-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var catalogTracer = otel.Tracer("service/catalog")

const categoriesKey = "categories"

// CachedCatalog decorates a CatalogStore with a cached category list.
// Category lookups by name are answered from that list; product reads go
// straight to the store since stock changes between turns.
type CachedCatalog struct {
	store   port.CatalogStore
	cache   port.Cache[[]domain.Category]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCachedCatalog creates the decorator.
func NewCachedCatalog(
	store port.CatalogStore,
	cache port.Cache[[]domain.Category],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CachedCatalog {
	return &CachedCatalog{store: store, cache: cache, metrics: metrics, logger: logger}
}

func (c *CachedCatalog) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := catalogTracer.Start(ctx, "CachedCatalog.ListCategories")
	defer span.End()

	if cached, ok := c.cache.Get(categoriesKey); ok {
		c.metrics.IncrCacheHit(categoriesKey)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	c.metrics.IncrCacheMiss(categoriesKey)

	cats, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(categoriesKey, cats)
	c.logger.Debug("categories cached", zap.Int("count", len(cats)))
	return cats, nil
}

// FindCategoryByName returns the first cached category whose name contains
// name, case-insensitively.
func (c *CachedCatalog) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	ctx, span := catalogTracer.Start(ctx, "CachedCatalog.FindCategoryByName")
	defer span.End()
	span.SetAttributes(attribute.String("category.name", name))

	cats, err := c.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, cat := range cats {
		if strings.Contains(strings.ToLower(cat.Name), needle) {
			out := cat
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: name}
}

func (c *CachedCatalog) FindProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return c.store.FindProducts(ctx, filter)
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return c.store.GetProduct(ctx, productID)
}

// Invalidate drops the cached category list.
func (c *CachedCatalog) Invalidate() {
	c.cache.Delete(categoriesKey)
}
