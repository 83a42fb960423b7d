// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the dialogue
// engine from the concrete catalog, order, session and mail backends.
package port

import (
	"context"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
)

// CatalogStore reads categories and products.
// Implemented by the memory, Supabase, Firestore and MongoDB adapters.
type CatalogStore interface {
	// FindCategoryByName returns the first category whose name contains
	// name, case-insensitively. Missing categories are *domain.ErrNotFound.
	FindCategoryByName(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	// FindProducts returns at most filter.Limit products matching the
	// filter, with category and discount populated.
	FindProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

// OrderStore persists orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	// GetOrder returns the order with every line's product (and that
	// product's discount) populated.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateOrderEmail(ctx context.Context, orderID, email string) error
}

// SessionStore keeps the per-conversation fallback state.
type SessionStore interface {
	// Load returns the state for sessionID, or a zero state when none exists.
	Load(ctx context.Context, sessionID string) (*domain.SessionState, error)
	Save(ctx context.Context, state *domain.SessionState) error
	Delete(ctx context.Context, sessionID string) error
	// Update applies fn to the current state and stores the result
	// atomically for that session.
	Update(ctx context.Context, sessionID string, fn func(*domain.SessionState) error) (*domain.SessionState, error)
}

// Mailer delivers an email or returns the transport error.
type Mailer interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// InvoiceSender renders and mails the invoice of an order.
type InvoiceSender interface {
	SendInvoice(ctx context.Context, to string, order *domain.Order) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// HealthChecker is implemented by backends that can report liveness.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}
