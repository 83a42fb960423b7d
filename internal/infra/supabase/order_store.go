package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Order Store — implements port.OrderStore
// ============================================================

type orderLineRow struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Size     string  `json:"size"`
	Color    string  `json:"color"`
}

type orderRow struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Products        []orderLineRow `json:"products"`
	ShippingAddress string         `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	TotalAmount     float64        `json:"total_amount"`
	Status          string         `json:"status"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	RecipientName   string         `json:"recipient_name"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// OrderStore persists orders in the Supabase orders table.
type OrderStore struct {
	client  *Client
	catalog *CatalogStore
	now     func() time.Time
}

// NewOrderStore creates an order gateway. catalog populates line products
// on reads.
func NewOrderStore(client *Client, catalog *CatalogStore) *OrderStore {
	return &OrderStore{client: client, catalog: catalog, now: time.Now}
}

// CreateOrder inserts order as one row. The insert is sent once and never
// retried so a timeout cannot produce a duplicate order.
func (s *OrderStore) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateOrder")
	defer span.End()

	row := toOrderRow(order)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	now := s.now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now

	var created []orderRow
	err := s.client.guard.Write(ctx, func(ctx context.Context) error {
		body, err := s.client.doPost(ctx, "orders", row)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			created = []orderRow{row}
			return nil
		}
		return json.Unmarshal(body, &created)
	})
	if err != nil {
		return nil, wrapErr("supabase/orders", err)
	}
	if len(created) == 0 {
		return nil, &domain.ErrExternalService{
			Service: "supabase/orders",
			Err:     fmt.Errorf("insert returned no rows"),
		}
	}

	out := created[0].toDomain()
	s.client.logger.Info("supabase: order created",
		zap.String("orderId", out.ID),
		zap.Float64("total", out.TotalAmount),
	)
	return &out, nil
}

// GetOrder loads an order and populates each line's product concurrently.
func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrder")
	defer span.End()

	var rows []orderRow
	err := s.client.guard.Read(ctx, func(ctx context.Context) error {
		return s.client.getJSON(ctx, "orders?select=*&"+eq("id", orderID)+"&limit=1", &rows)
	})
	if err != nil {
		return nil, wrapErr("supabase/orders", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}

	order := rows[0].toDomain()

	g, gctx := errgroup.WithContext(ctx)
	for i := range order.Lines {
		line := &order.Lines[i]
		if line.ProductID == "" {
			continue
		}
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, line.ProductID)
			if err != nil {
				return err
			}
			line.Product = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &order, nil
}

// UpdateOrderEmail records the invoice address on an existing order.
func (s *OrderStore) UpdateOrderEmail(ctx context.Context, orderID, email string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateOrderEmail")
	defer span.End()

	var matched int
	err := s.client.guard.Write(ctx, func(ctx context.Context) error {
		n, err := s.client.doPatch(ctx, "orders?"+eq("id", orderID), map[string]any{
			"email":      email,
			"updated_at": s.now().UTC(),
		})
		matched = n
		return err
	})
	if err != nil {
		return wrapErr("supabase/orders", err)
	}
	if matched == 0 {
		return &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	return nil
}

func toOrderRow(o *domain.Order) orderRow {
	lines := make([]orderLineRow, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineRow{
			Product:  l.ProductID,
			Quantity: l.Quantity,
			Price:    l.Price,
			Size:     l.Size,
			Color:    l.Color,
		})
	}
	return orderRow{
		ID:              o.ID,
		UserID:          o.UserID,
		Products:        lines,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		Email:           o.Email,
		Phone:           o.Phone,
		RecipientName:   o.RecipientName,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (r orderRow) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(r.Products))
	for _, l := range r.Products {
		lines = append(lines, domain.OrderLine{
			ProductID: l.Product,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Size:      l.Size,
			Color:     l.Color,
		})
	}
	return domain.Order{
		ID:              r.ID,
		UserID:          r.UserID,
		Lines:           lines,
		ShippingAddress: r.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(r.PaymentMethod),
		TotalAmount:     r.TotalAmount,
		Status:          domain.OrderStatus(r.Status),
		Email:           r.Email,
		Phone:           r.Phone,
		RecipientName:   r.RecipientName,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
