package memory

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"github.com/google/uuid"
)

// OrderStore keeps orders in a map keyed by id.
type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	catalog *CatalogStore
	now     func() time.Time
}

// NewOrderStore creates an empty order store. catalog populates line
// products on reads.
func NewOrderStore(catalog *CatalogStore) *OrderStore {
	return &OrderStore{
		orders:  make(map[string]domain.Order),
		catalog: catalog,
		now:     time.Now,
	}
}

func (s *OrderStore) CreateOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := *order
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Lines = make([]domain.OrderLine, len(order.Lines))
	for i, l := range order.Lines {
		l.Product = nil
		o.Lines[i] = l
	}
	now := s.now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	s.orders[o.ID] = o
	out := o
	return &out, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	o, ok := s.orders[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}

	lines := make([]domain.OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		if p, err := s.catalog.GetProduct(ctx, l.ProductID); err == nil {
			l.Product = p
		}
		lines[i] = l
	}
	o.Lines = lines
	return &o, nil
}

func (s *OrderStore) UpdateOrderEmail(_ context.Context, orderID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	o.Email = email
	o.UpdatedAt = s.now().UTC()
	s.orders[orderID] = o
	return nil
}

// Count returns the number of stored orders.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
