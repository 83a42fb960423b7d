package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Catalog Store — implements port.CatalogStore
// ============================================================

type categoryRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type discountRow struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	Description  string        `json:"description"`
	DiscountType string        `json:"discount_type"`
	Amount       domain.Amount `json:"amount"`
	ValidFrom    *time.Time    `json:"valid_from"`
	ValidUntil   *time.Time    `json:"valid_until"`
	IsActive     bool          `json:"is_active"`
}

type productRow struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	CategoryID    *string  `json:"category_id"`
	Sizes         []int    `json:"sizes"`
	Colors        []string `json:"colors"`
	Images        []string `json:"images"`
	Brand         string   `json:"brand"`
	Material      string   `json:"material"`
	StockQuantity int      `json:"stock_quantity"`
	Status        string   `json:"status"`
	DiscountID    *string  `json:"discount_id"`
}

// CatalogStore reads categories, products and discounts from Supabase.
type CatalogStore struct {
	client *Client
}

// NewCatalogStore creates a catalog gateway over client.
func NewCatalogStore(client *Client) *CatalogStore {
	return &CatalogStore{client: client}
}

func (s *CatalogStore) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindCategoryByName")
	defer span.End()

	path := "categories?select=id,name,description&" + ilike("name", name) + "&order=name.asc&limit=1"
	var rows []categoryRow
	err := s.client.guard.Read(ctx, func(ctx context.Context) error {
		return s.client.getJSON(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrapErr("supabase/categories", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "category", ID: name}
	}
	cat := rows[0].toDomain()
	return &cat, nil
}

func (s *CatalogStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	var rows []categoryRow
	err := s.client.guard.Read(ctx, func(ctx context.Context) error {
		return s.client.getJSON(ctx, "categories?select=id,name,description&order=name.asc", &rows)
	})
	if err != nil {
		return nil, wrapErr("supabase/categories", err)
	}

	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *CatalogStore) FindProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindProducts")
	defer span.End()

	path, err := s.productQuery(ctx, filter)
	if err != nil {
		return nil, err
	}

	var rows []productRow
	err = s.client.guard.Read(ctx, func(ctx context.Context) error {
		return s.client.getJSON(ctx, path, &rows)
	})
	if err != nil {
		return nil, wrapErr("supabase/products", err)
	}

	products, err := s.populate(ctx, rows)
	if err != nil {
		return nil, err
	}

	// PostgREST ilike and Go case folding disagree on some Vietnamese
	// letters; the domain filter has the final word.
	out := products[:0]
	for _, p := range products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}

	s.client.logger.Debug("supabase: products found",
		zap.Int("rows", len(rows)),
		zap.Int("matched", len(out)),
	)
	return out, nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProduct")
	defer span.End()

	var rows []productRow
	err := s.client.guard.Read(ctx, func(ctx context.Context) error {
		return s.client.getJSON(ctx, "products?select=*&"+eq("id", productID)+"&limit=1", &rows)
	})
	if err != nil {
		return nil, wrapErr("supabase/products", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "product", ID: productID}
	}

	products, err := s.populate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &products[0], nil
}

// productQuery translates filter into a PostgREST query string. Keywords
// match the description or the name of a category, so matching category
// ids are resolved first and folded into the same or=() group.
func (s *CatalogStore) productQuery(ctx context.Context, filter domain.ProductFilter) (string, error) {
	q := []string{"select=*"}

	if filter.CategoryID != "" {
		q = append(q, eq("category_id", filter.CategoryID))
	}
	if filter.Brand != "" {
		q = append(q, ilike("brand", filter.Brand))
	}
	if filter.Price != nil {
		if filter.Price.Min != nil {
			q = append(q, "price=gte."+strconv.FormatFloat(*filter.Price.Min, 'f', -1, 64))
		}
		if filter.Price.Max != nil {
			q = append(q, "price=lte."+strconv.FormatFloat(*filter.Price.Max, 'f', -1, 64))
		}
	}
	if filter.DiscountedOnly {
		q = append(q, "discount_id=not.is.null")
	}

	if len(filter.Keywords) > 0 {
		cats, err := s.ListCategories(ctx)
		if err != nil {
			return "", err
		}
		var alts []string
		var catIDs []string
		for _, kw := range filter.Keywords {
			alts = append(alts, "description.ilike.*"+escapeLike(kw)+"*")
			for _, c := range cats {
				if strings.Contains(strings.ToLower(c.Name), strings.ToLower(kw)) {
					catIDs = append(catIDs, c.ID)
				}
			}
		}
		if len(catIDs) > 0 {
			alts = append(alts, "category_id.in.("+strings.Join(dedupe(catIDs), ",")+")")
		}
		q = append(q, "or="+url.QueryEscape("("+strings.Join(alts, ",")+")"))
	}

	q = append(q, "order=name.asc")
	if filter.Limit > 0 {
		q = append(q, "limit="+strconv.Itoa(filter.Limit))
	}
	return "products?" + strings.Join(q, "&"), nil
}

// populate attaches categories and discounts to product rows, fetching
// both lookups concurrently.
func (s *CatalogStore) populate(ctx context.Context, rows []productRow) ([]domain.Product, error) {
	var catIDs, discIDs []string
	for _, r := range rows {
		if r.CategoryID != nil && *r.CategoryID != "" {
			catIDs = append(catIDs, *r.CategoryID)
		}
		if r.DiscountID != nil && *r.DiscountID != "" {
			discIDs = append(discIDs, *r.DiscountID)
		}
	}

	cats := map[string]domain.Category{}
	discs := map[string]domain.Discount{}

	g, gctx := errgroup.WithContext(ctx)
	if len(catIDs) > 0 {
		g.Go(func() error {
			var cr []categoryRow
			path := "categories?select=id,name,description&" + in("id", dedupe(catIDs))
			err := s.client.guard.Read(gctx, func(ctx context.Context) error {
				return s.client.getJSON(ctx, path, &cr)
			})
			if err != nil {
				return wrapErr("supabase/categories", err)
			}
			for _, c := range cr {
				cats[c.ID] = c.toDomain()
			}
			return nil
		})
	}
	if len(discIDs) > 0 {
		g.Go(func() error {
			var dr []discountRow
			path := "discounts?select=*&" + in("id", dedupe(discIDs))
			err := s.client.guard.Read(gctx, func(ctx context.Context) error {
				return s.client.getJSON(ctx, path, &dr)
			})
			if err != nil {
				return wrapErr("supabase/discounts", err)
			}
			for _, d := range dr {
				discs[d.ID] = d.toDomain()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		p := r.toDomain()
		if c, ok := cats[p.CategoryID]; ok {
			p.Category = &c
		}
		if d, ok := discs[p.DiscountID]; ok {
			p.Discount = &d
		}
		out = append(out, p)
	}
	return out, nil
}

// getJSON GETs path and decodes the row array into out. A 404 leaves out
// empty.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (r categoryRow) toDomain() domain.Category {
	return domain.Category{ID: r.ID, Name: r.Name, Description: r.Description}
}

func (r discountRow) toDomain() domain.Discount {
	return domain.Discount{
		ID:           r.ID,
		Code:         r.Code,
		Description:  r.Description,
		DiscountType: domain.DiscountType(r.DiscountType),
		Amount:       r.Amount,
		ValidFrom:    r.ValidFrom,
		ValidUntil:   r.ValidUntil,
		IsActive:     r.IsActive,
	}
}

func (r productRow) toDomain() domain.Product {
	p := domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		Sizes:         r.Sizes,
		Colors:        r.Colors,
		Images:        r.Images,
		Brand:         r.Brand,
		Material:      r.Material,
		StockQuantity: r.StockQuantity,
		Status:        domain.ProductStatus(r.Status),
	}
	if r.CategoryID != nil {
		p.CategoryID = *r.CategoryID
	}
	if r.DiscountID != nil {
		p.DiscountID = *r.DiscountID
	}
	return p
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
