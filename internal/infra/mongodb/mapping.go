package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
)

// ─────────────────────────────────────────
// Mongo Types
// ─────────────────────────────────────────

type categoryDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
}

type discountDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Code         string             `bson:"code"`
	Description  string             `bson:"description"`
	DiscountType string             `bson:"discountType"`
	Amount       float64            `bson:"amount"`
	ValidFrom    *time.Time         `bson:"validFrom"`
	ValidUntil   *time.Time         `bson:"validUntil"`
	IsActive     bool               `bson:"isActive"`
}

type productDoc struct {
	ID            primitive.ObjectID  `bson:"_id"`
	Name          string              `bson:"name"`
	Description   string              `bson:"description"`
	Price         float64             `bson:"price"`
	Category      *primitive.ObjectID `bson:"category"`
	Sizes         []int               `bson:"sizes"`
	Colors        []string            `bson:"colors"`
	Images        []string            `bson:"images"`
	Brand         string              `bson:"brand"`
	Material      string              `bson:"material"`
	StockQuantity int                 `bson:"stockQuantity"`
	Status        string              `bson:"status"`
	Discount      *primitive.ObjectID `bson:"discount"`
}

// Refs are ObjectIDs when the id is a valid hex ObjectID and plain strings
// otherwise, so a configured non-Mongo user id still round-trips.
type orderLineDoc struct {
	Product  any     `bson:"product"`
	Quantity int     `bson:"quantity"`
	Price    float64 `bson:"price"`
	Size     string  `bson:"size,omitempty"`
	Color    string  `bson:"color,omitempty"`
}

type orderDoc struct {
	ID              primitive.ObjectID `bson:"_id"`
	User            any                `bson:"user"`
	Products        []orderLineDoc     `bson:"products"`
	ShippingAddress string             `bson:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod"`
	TotalAmount     float64            `bson:"totalAmount"`
	Status          string             `bson:"status"`
	Email           string             `bson:"email,omitempty"`
	Phone           string             `bson:"phone,omitempty"`
	RecipientName   string             `bson:"recipientName,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

// ─────────────────────────────────────────
// Mapping
// ─────────────────────────────────────────

func (d categoryDoc) toDomain() domain.Category {
	return domain.Category{ID: d.ID.Hex(), Name: d.Name, Description: d.Description}
}

func (d discountDoc) toDomain() domain.Discount {
	return domain.Discount{
		ID:           d.ID.Hex(),
		Code:         d.Code,
		Description:  d.Description,
		DiscountType: domain.DiscountType(d.DiscountType),
		Amount:       domain.Amount(d.Amount),
		ValidFrom:    d.ValidFrom,
		ValidUntil:   d.ValidUntil,
		IsActive:     d.IsActive,
	}
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Description:   d.Description,
		Price:         d.Price,
		CategoryID:    hexOrEmpty(d.Category),
		Sizes:         d.Sizes,
		Colors:        d.Colors,
		Images:        d.Images,
		Brand:         d.Brand,
		Material:      d.Material,
		StockQuantity: d.StockQuantity,
		Status:        domain.ProductStatus(d.Status),
		DiscountID:    hexOrEmpty(d.Discount),
	}
}

func toOrderDoc(o *domain.Order) orderDoc {
	id, err := primitive.ObjectIDFromHex(o.ID)
	if err != nil {
		id = primitive.NewObjectID()
	}

	lines := make([]orderLineDoc, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineDoc{
			Product:  ref(l.ProductID),
			Quantity: l.Quantity,
			Price:    l.Price,
			Size:     l.Size,
			Color:    l.Color,
		})
	}
	return orderDoc{
		ID:              id,
		User:            ref(o.UserID),
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

func (d orderDoc) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Products))
	for _, l := range d.Products {
		lines = append(lines, domain.OrderLine{
			ProductID: refString(l.Product),
			Quantity:  l.Quantity,
			Price:     l.Price,
			Size:      l.Size,
			Color:     l.Color,
		})
	}
	return domain.Order{
		ID:              d.ID.Hex(),
		UserID:          refString(d.User),
		Lines:           lines,
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(d.PaymentMethod),
		TotalAmount:     d.TotalAmount,
		Status:          domain.OrderStatus(d.Status),
		Email:           d.Email,
		Phone:           d.Phone,
		RecipientName:   d.RecipientName,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func ref(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func refString(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	default:
		return ""
	}
}

func hexOrEmpty(oid *primitive.ObjectID) string {
	if oid == nil || oid.IsZero() {
		return ""
	}
	return oid.Hex()
}
