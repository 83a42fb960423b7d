package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ============================================================
// Catalog
// ============================================================

// ProductStatus is the availability label of a product.
type ProductStatus string

const (
	ProductInStock    ProductStatus = "In Stock"
	ProductOutOfStock ProductStatus = "Out of Stock"
	ProductPreOrder   ProductStatus = "Pre-order"
)

// Category groups products (Running, Casual, Formal...).
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DiscountType tells how Amount is applied. The dialogue only ever applies
// it as a percentage.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a promotion attached to a product.
type Discount struct {
	ID           string       `json:"id"`
	Code         string       `json:"code,omitempty"`
	Description  string       `json:"description,omitempty"`
	DiscountType DiscountType `json:"discountType,omitempty"`
	Amount       Amount       `json:"amount"`
	ValidFrom    *time.Time   `json:"validFrom,omitempty"`
	ValidUntil   *time.Time   `json:"validUntil,omitempty"`
	IsActive     bool         `json:"isActive"`
}

// Amount is a discount amount. Stores are loosely typed, so it decodes
// from a JSON number or a numeric string; anything else decodes to NaN
// and is treated as "no usable discount".
type Amount float64

// Valid reports whether the amount is a finite number.
func (a Amount) Valid() bool {
	f := float64(a)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Float returns the amount as float64.
func (a Amount) Float() float64 { return float64(a) }

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = Amount(math.NaN())
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*a = Amount(math.NaN())
		return nil
	}
	*a = Amount(f)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(a), 'f', -1, 64), nil
}

// ParseAmount converts a loosely typed value (number or numeric string) to
// an Amount, returning NaN when it is neither.
func ParseAmount(v any) Amount {
	switch t := v.(type) {
	case float64:
		return Amount(t)
	case float32:
		return Amount(t)
	case int:
		return Amount(t)
	case int64:
		return Amount(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return Amount(math.NaN())
		}
		return Amount(f)
	default:
		return Amount(math.NaN())
	}
}

// Product is a shoe model in the catalog, with its category and discount
// populated when the store can resolve them.
type Product struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Price         float64       `json:"price"`
	CategoryID    string        `json:"categoryId,omitempty"`
	Category      *Category     `json:"category,omitempty"`
	Sizes         []int         `json:"sizes"`
	Colors        []string      `json:"colors"`
	Images        []string      `json:"images,omitempty"`
	Brand         string        `json:"brand,omitempty"`
	Material      string        `json:"material,omitempty"`
	StockQuantity int           `json:"stockQuantity"`
	Status        ProductStatus `json:"status,omitempty"`
	DiscountID    string        `json:"discountId,omitempty"`
	Discount      *Discount     `json:"discount,omitempty"`
}

// CategoryName returns the populated category name or "".
func (p *Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return p.Category.Name
}

// ProductSnapshot is the copy of a product taken at selection time and
// carried through later turns, so size/color/quantity checks do not need
// another store round trip.
type ProductSnapshot struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Price           float64   `json:"price"`
	AvailableSizes  []int     `json:"availableSizes"`
	AvailableColors []string  `json:"availableColors"`
	Discount        *Discount `json:"discount,omitempty"`
	StockQuantity   int       `json:"stockQuantity"`
}

// SnapshotOf builds the selection snapshot of p.
func SnapshotOf(p Product) ProductSnapshot {
	sizes := p.Sizes
	if sizes == nil {
		sizes = []int{}
	}
	colors := p.Colors
	if colors == nil {
		colors = []string{}
	}
	return ProductSnapshot{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		AvailableSizes:  sizes,
		AvailableColors: colors,
		Discount:        p.Discount,
		StockQuantity:   p.StockQuantity,
	}
}

// ============================================================
// Filters
// ============================================================

// PriceRange is an inclusive price bound. A nil side is unbounded; exact
// prices set both sides to the same value.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether price falls inside the range.
func (r PriceRange) Contains(price float64) bool {
	if r.Min != nil && price < *r.Min {
		return false
	}
	if r.Max != nil && price > *r.Max {
		return false
	}
	return true
}

// Exact reports whether the range pins a single price.
func (r PriceRange) Exact() bool {
	return r.Min != nil && r.Max != nil && *r.Min == *r.Max
}

// ProductFilter is the search built from the user's slots. Matches is the
// reference semantics every CatalogStore implementation follows.
type ProductFilter struct {
	CategoryID     string
	Brand          string
	Price          *PriceRange
	DiscountedOnly bool
	// Keywords match case-insensitively against the category name or the
	// description; any single keyword is enough.
	Keywords []string
	Limit    int
}

// Matches reports whether p satisfies every criterion of the filter.
func (f ProductFilter) Matches(p Product) bool {
	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}
	if f.Brand != "" && !containsFold(p.Brand, f.Brand) {
		return false
	}
	if f.Price != nil && !f.Price.Contains(p.Price) {
		return false
	}
	if f.DiscountedOnly && p.Discount == nil && p.DiscountID == "" {
		return false
	}
	if len(f.Keywords) > 0 {
		matched := false
		for _, kw := range f.Keywords {
			if containsFold(p.CategoryName(), kw) || containsFold(p.Description, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
