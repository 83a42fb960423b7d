// Package firestore implements the catalog and order gateways on Cloud
// Firestore. Collections: categories, discounts, products, orders.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"
)

var tracer = otel.Tracer("firestore")

// Store implements port.CatalogStore and port.OrderStore.
type Store struct {
	client *firestore.Client
	guard  *resilience.Guard
	logger *zap.Logger
}

// NewStore creates a Firestore store for projectID.
func NewStore(ctx context.Context, projectID string, guard *resilience.Guard, logger *zap.Logger) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, guard: guard, logger: logger}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

// Name identifies the backend in health reports.
func (s *Store) Name() string { return "firestore" }

// Ping reads one category.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collection("categories").Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type categoryDoc struct {
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
}

// discountDoc keeps amount untyped: older documents store it as a string.
type discountDoc struct {
	Code         string     `firestore:"code"`
	Description  string     `firestore:"description"`
	DiscountType string     `firestore:"discount_type"`
	Amount       any        `firestore:"amount"`
	ValidFrom    *time.Time `firestore:"valid_from"`
	ValidUntil   *time.Time `firestore:"valid_until"`
	IsActive     bool       `firestore:"is_active"`
}

type productDoc struct {
	Name          string   `firestore:"name"`
	Description   string   `firestore:"description"`
	Price         float64  `firestore:"price"`
	CategoryID    string   `firestore:"category_id"`
	Sizes         []int64  `firestore:"sizes"`
	Colors        []string `firestore:"colors"`
	Images        []string `firestore:"images"`
	Brand         string   `firestore:"brand"`
	Material      string   `firestore:"material"`
	StockQuantity int64    `firestore:"stock_quantity"`
	Status        string   `firestore:"status"`
	DiscountID    string   `firestore:"discount_id"`
}

type orderLineDoc struct {
	Product  string  `firestore:"product"`
	Quantity int64   `firestore:"quantity"`
	Price    float64 `firestore:"price"`
	Size     string  `firestore:"size"`
	Color    string  `firestore:"color"`
}

type orderDoc struct {
	UserID          string         `firestore:"user_id"`
	Products        []orderLineDoc `firestore:"products"`
	ShippingAddress string         `firestore:"shipping_address"`
	PaymentMethod   string         `firestore:"payment_method"`
	TotalAmount     float64        `firestore:"total_amount"`
	Status          string         `firestore:"status"`
	Email           string         `firestore:"email"`
	Phone           string         `firestore:"phone"`
	RecipientName   string         `firestore:"recipient_name"`
	CreatedAt       time.Time      `firestore:"created_at"`
	UpdatedAt       time.Time      `firestore:"updated_at"`
}

// ─────────────────────────────────────────
// CatalogStore implementation
// ─────────────────────────────────────────

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Firestore.FindCategoryByName")
	defer span.End()

	// Firestore has no case-insensitive substring query; the category
	// collection is small enough to scan.
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(name)
	for _, c := range cats {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out := c
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: name}
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		out = out[:0]
		iter := s.client.Collection("categories").OrderBy("name", firestore.Asc).Documents(ctx)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			}
			var doc categoryDoc
			if err := snap.DataTo(&doc); err != nil {
				return resilience.Permanent(fmt.Errorf("decode categoryDoc: %w", err))
			}
			out = append(out, doc.toDomain(snap.Ref.ID))
		}
	})
	if err != nil {
		return nil, wrapErr("firestore/categories", err)
	}
	return out, nil
}

func (s *Store) FindProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Firestore.FindProducts")
	defer span.End()

	q := s.client.Collection("products").Query
	if filter.CategoryID != "" {
		q = q.Where("category_id", "==", filter.CategoryID)
	}
	if filter.Price != nil {
		if filter.Price.Min != nil {
			q = q.Where("price", ">=", *filter.Price.Min)
		}
		if filter.Price.Max != nil {
			q = q.Where("price", "<=", *filter.Price.Max)
		}
	}

	var products []domain.Product
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		products = products[:0]
		iter := q.Documents(ctx)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			}
			var doc productDoc
			if err := snap.DataTo(&doc); err != nil {
				return resilience.Permanent(fmt.Errorf("decode productDoc: %w", err))
			}
			products = append(products, doc.toDomain(snap.Ref.ID))
		}
	})
	if err != nil {
		return nil, wrapErr("firestore/products", err)
	}

	if err := s.populate(ctx, products); err != nil {
		return nil, err
	}

	out := []domain.Product{}
	for _, p := range products {
		if !filter.Matches(p) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetProduct")
	defer span.End()

	var p domain.Product
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		snap, err := s.client.Collection("products").Doc(productID).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "product", ID: productID})
			}
			return err
		}
		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return resilience.Permanent(fmt.Errorf("decode productDoc: %w", err))
		}
		p = doc.toDomain(snap.Ref.ID)
		return nil
	})
	if err != nil {
		return nil, wrapErr("firestore/products", err)
	}

	products := []domain.Product{p}
	if err := s.populate(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// populate attaches categories and discounts with one batched GetAll.
func (s *Store) populate(ctx context.Context, products []domain.Product) error {
	var refs []*firestore.DocumentRef
	seen := map[string]bool{}
	for _, p := range products {
		if p.CategoryID != "" && !seen["c/"+p.CategoryID] {
			seen["c/"+p.CategoryID] = true
			refs = append(refs, s.client.Collection("categories").Doc(p.CategoryID))
		}
		if p.DiscountID != "" && !seen["d/"+p.DiscountID] {
			seen["d/"+p.DiscountID] = true
			refs = append(refs, s.client.Collection("discounts").Doc(p.DiscountID))
		}
	}
	if len(refs) == 0 {
		return nil
	}

	cats := map[string]domain.Category{}
	discs := map[string]domain.Discount{}
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		snaps, err := s.client.GetAll(ctx, refs)
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				continue
			}
			switch snap.Ref.Parent.ID {
			case "categories":
				var doc categoryDoc
				if err := snap.DataTo(&doc); err != nil {
					return resilience.Permanent(fmt.Errorf("decode categoryDoc: %w", err))
				}
				cats[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
			case "discounts":
				var doc discountDoc
				if err := snap.DataTo(&doc); err != nil {
					return resilience.Permanent(fmt.Errorf("decode discountDoc: %w", err))
				}
				discs[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr("firestore/populate", err)
	}

	for i := range products {
		if c, ok := cats[products[i].CategoryID]; ok {
			products[i].Category = &c
		}
		if d, ok := discs[products[i].DiscountID]; ok {
			products[i].Discount = &d
		}
	}
	return nil
}

// ─────────────────────────────────────────
// OrderStore implementation
// ─────────────────────────────────────────

// CreateOrder writes the order once. Create fails instead of overwriting
// when the generated id already exists.
func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Firestore.CreateOrder")
	defer span.End()

	ref := s.client.Collection("orders").NewDoc()
	if order.ID != "" {
		ref = s.client.Collection("orders").Doc(order.ID)
	}

	now := time.Now().UTC()
	doc := toOrderDoc(order)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.guard.Write(ctx, func(ctx context.Context) error {
		_, err := ref.Create(ctx, doc)
		return err
	})
	if err != nil {
		return nil, wrapErr("firestore/orders", err)
	}

	out := doc.toDomain(ref.ID)
	s.logger.Info("firestore: order created",
		zap.String("orderId", out.ID),
		zap.Float64("total", out.TotalAmount),
	)
	return &out, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Firestore.GetOrder")
	defer span.End()

	var order domain.Order
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		snap, err := s.client.Collection("orders").Doc(orderID).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "order", ID: orderID})
			}
			return err
		}
		var doc orderDoc
		if err := snap.DataTo(&doc); err != nil {
			return resilience.Permanent(fmt.Errorf("decode orderDoc: %w", err))
		}
		order = doc.toDomain(snap.Ref.ID)
		return nil
	})
	if err != nil {
		return nil, wrapErr("firestore/orders", err)
	}

	for i := range order.Lines {
		if order.Lines[i].ProductID == "" {
			continue
		}
		p, err := s.GetProduct(ctx, order.Lines[i].ProductID)
		if err != nil {
			return nil, err
		}
		order.Lines[i].Product = p
	}
	return &order, nil
}

func (s *Store) UpdateOrderEmail(ctx context.Context, orderID, email string) error {
	ctx, span := tracer.Start(ctx, "Firestore.UpdateOrderEmail")
	defer span.End()

	err := s.guard.Write(ctx, func(ctx context.Context) error {
		_, err := s.client.Collection("orders").Doc(orderID).Update(ctx, []firestore.Update{
			{Path: "email", Value: email},
			{Path: "updated_at", Value: firestore.ServerTimestamp},
		})
		if status.Code(err) == codes.NotFound {
			return &domain.ErrNotFound{Resource: "order", ID: orderID}
		}
		return err
	})
	return wrapErr("firestore/orders", err)
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func wrapErr(service string, err error) error {
	if err == nil {
		return nil
	}
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nf
	}
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		return open
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
