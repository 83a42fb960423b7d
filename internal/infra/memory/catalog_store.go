// Package memory implements the catalog and order gateways in process
// memory. It backs local runs and the end-to-end tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
)

// CatalogStore keeps categories and products in insertion order.
type CatalogStore struct {
	mu         sync.RWMutex
	categories []domain.Category
	products   []domain.Product
}

// NewCatalogStore creates a catalog holding the given data. Product
// categories are resolved against categories on the way in.
func NewCatalogStore(categories []domain.Category, products []domain.Product) *CatalogStore {
	s := &CatalogStore{}
	s.categories = append(s.categories, categories...)
	for _, p := range products {
		s.addLocked(p)
	}
	return s
}

// AddProduct appends a product to the catalog.
func (s *CatalogStore) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(p)
}

func (s *CatalogStore) addLocked(p domain.Product) {
	if p.Category == nil && p.CategoryID != "" {
		for i := range s.categories {
			if s.categories[i].ID == p.CategoryID {
				c := s.categories[i]
				p.Category = &c
				break
			}
		}
	}
	s.products = append(s.products, p)
}

func (s *CatalogStore) FindCategoryByName(_ context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(name)
	for _, c := range s.categories {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out := c
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: name}
}

func (s *CatalogStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *CatalogStore) FindProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Product{}
	for _, p := range s.products {
		if !filter.Matches(p) {
			continue
		}
		out = append(out, clone(p))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *CatalogStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.ID == productID {
			out := clone(p)
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "product", ID: productID}
}

// Name identifies the backend in health reports.
func (s *CatalogStore) Name() string { return "memory" }

// Ping always succeeds.
func (s *CatalogStore) Ping(context.Context) error { return nil }

func clone(p domain.Product) domain.Product {
	p.Sizes = append([]int(nil), p.Sizes...)
	p.Colors = append([]string(nil), p.Colors...)
	p.Images = append([]string(nil), p.Images...)
	if p.Category != nil {
		c := *p.Category
		p.Category = &c
	}
	if p.Discount != nil {
		d := *p.Discount
		p.Discount = &d
	}
	return p
}
