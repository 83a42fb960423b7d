// Package mongodb implements the catalog and order gateways on MongoDB,
// reading the collections of the shop's existing Mongoose backend:
// categories, discounts, products, orders.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"
)

var tracer = otel.Tracer("mongodb")

// Store implements port.CatalogStore and port.OrderStore.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	guard  *resilience.Guard
	logger *zap.Logger
	now    func() time.Time
}

// NewStore connects to uri and uses database dbName.
func NewStore(ctx context.Context, uri, dbName string, guard *resilience.Guard, logger *zap.Logger) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("uri is required for MongoDB store")
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required for MongoDB store")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(dbName),
		guard:  guard,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// Name identifies the backend in health reports.
func (s *Store) Name() string { return "mongodb" }

// Ping asks the primary for a round trip.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// ─────────────────────────────────────────
// CatalogStore implementation
// ─────────────────────────────────────────

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "MongoDB.FindCategoryByName")
	defer span.End()

	var doc categoryDoc
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		err := s.db.Collection("categories").FindOne(ctx, bson.M{"name": containsRegex(name)}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "category", ID: name})
		}
		return err
	})
	if err != nil {
		return nil, wrapErr("mongodb/categories", err)
	}
	c := doc.toDomain()
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var docs []categoryDoc
	err := s.guard.Read(ctx, func(ctx context.Context) error {
		cur, err := s.db.Collection("categories").Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, wrapErr("mongodb/categories", err)
	}

	out := make([]domain.Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) FindProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "MongoDB.FindProducts")
	defer span.End()

	query, err := productQuery(filter)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	// Keyword and discount criteria need the populated product, so the
	// server-side limit only applies when the query is exact.
	if filter.Limit > 0 && len(filter.Keywords) == 0 && !filter.DiscountedOnly {
		opts.SetLimit(int64(filter.Limit))
	}

	var docs []productDoc
	err = s.guard.Read(ctx, func(ctx context.Context) error {
		docs = docs[:0]
		cur, err := s.db.Collection("products").Find(ctx, query, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, wrapErr("mongodb/products", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.toDomain())
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
	ctx, span := tracer.Start(ctx, "MongoDB.GetProduct")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, &domain.ErrNotFound{Resource: "product", ID: productID}
	}

	var doc productDoc
	err = s.guard.Read(ctx, func(ctx context.Context) error {
		err := s.db.Collection("products").FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "product", ID: productID})
		}
		return err
	})
	if err != nil {
		return nil, wrapErr("mongodb/products", err)
	}

	products := []domain.Product{doc.toDomain()}
	if err := s.populate(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// populate attaches categories and discounts, fetching both collections
// concurrently with one $in query each.
func (s *Store) populate(ctx context.Context, products []domain.Product) error {
	var catIDs, discIDs []primitive.ObjectID
	seen := map[string]bool{}
	for _, p := range products {
		if oid, err := primitive.ObjectIDFromHex(p.CategoryID); err == nil && !seen["c/"+p.CategoryID] {
			seen["c/"+p.CategoryID] = true
			catIDs = append(catIDs, oid)
		}
		if oid, err := primitive.ObjectIDFromHex(p.DiscountID); err == nil && !seen["d/"+p.DiscountID] {
			seen["d/"+p.DiscountID] = true
			discIDs = append(discIDs, oid)
		}
	}

	cats := map[string]domain.Category{}
	discs := map[string]domain.Discount{}

	g, gctx := errgroup.WithContext(ctx)
	if len(catIDs) > 0 {
		g.Go(func() error {
			var docs []categoryDoc
			err := s.guard.Read(gctx, func(ctx context.Context) error {
				cur, err := s.db.Collection("categories").Find(ctx, bson.M{"_id": bson.M{"$in": catIDs}})
				if err != nil {
					return err
				}
				return cur.All(ctx, &docs)
			})
			if err != nil {
				return wrapErr("mongodb/categories", err)
			}
			for _, d := range docs {
				cats[d.ID.Hex()] = d.toDomain()
			}
			return nil
		})
	}
	if len(discIDs) > 0 {
		g.Go(func() error {
			var docs []discountDoc
			err := s.guard.Read(gctx, func(ctx context.Context) error {
				cur, err := s.db.Collection("discounts").Find(ctx, bson.M{"_id": bson.M{"$in": discIDs}})
				if err != nil {
					return err
				}
				return cur.All(ctx, &docs)
			})
			if err != nil {
				return wrapErr("mongodb/discounts", err)
			}
			for _, d := range docs {
				discs[d.ID.Hex()] = d.toDomain()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
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

// CreateOrder inserts the order once; the driver assigns the ObjectID
// unless order.ID already holds one.
func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "MongoDB.CreateOrder")
	defer span.End()

	now := s.now().UTC()
	doc := toOrderDoc(order)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.guard.Write(ctx, func(ctx context.Context) error {
		_, err := s.db.Collection("orders").InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return nil, wrapErr("mongodb/orders", err)
	}

	out := doc.toDomain()
	s.logger.Info("mongodb: order created",
		zap.String("orderId", out.ID),
		zap.Float64("total", out.TotalAmount),
	)
	return &out, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "MongoDB.GetOrder")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, &domain.ErrNotFound{Resource: "order", ID: orderID}
	}

	var doc orderDoc
	err = s.guard.Read(ctx, func(ctx context.Context) error {
		err := s.db.Collection("orders").FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "order", ID: orderID})
		}
		return err
	})
	if err != nil {
		return nil, wrapErr("mongodb/orders", err)
	}

	order := doc.toDomain()
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
	ctx, span := tracer.Start(ctx, "MongoDB.UpdateOrderEmail")
	defer span.End()

	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return &domain.ErrNotFound{Resource: "order", ID: orderID}
	}

	err = s.guard.Write(ctx, func(ctx context.Context) error {
		res, err := s.db.Collection("orders").UpdateOne(ctx,
			bson.M{"_id": oid},
			bson.M{"$set": bson.M{"email": email, "updatedAt": s.now().UTC()}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return &domain.ErrNotFound{Resource: "order", ID: orderID}
		}
		return nil
	})
	return wrapErr("mongodb/orders", err)
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

// productQuery translates the server-side part of a filter. Brand is a
// case-insensitive substring, as in the other gateways.
func productQuery(filter domain.ProductFilter) (bson.M, error) {
	q := bson.M{}
	if filter.CategoryID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.CategoryID)
		if err != nil {
			return nil, &domain.ErrNotFound{Resource: "category", ID: filter.CategoryID}
		}
		q["category"] = oid
	}
	if filter.Brand != "" {
		q["brand"] = containsRegex(filter.Brand)
	}
	if filter.Price != nil {
		price := bson.M{}
		if filter.Price.Min != nil {
			price["$gte"] = *filter.Price.Min
		}
		if filter.Price.Max != nil {
			price["$lte"] = *filter.Price.Max
		}
		if len(price) > 0 {
			q["price"] = price
		}
	}
	return q, nil
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

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
