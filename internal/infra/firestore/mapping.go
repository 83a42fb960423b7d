package firestore

import "github.com/boddenberg/shoeshop-bot-go/internal/domain"

func (d categoryDoc) toDomain(id string) domain.Category {
	return domain.Category{ID: id, Name: d.Name, Description: d.Description}
}

func (d discountDoc) toDomain(id string) domain.Discount {
	return domain.Discount{
		ID:           id,
		Code:         d.Code,
		Description:  d.Description,
		DiscountType: domain.DiscountType(d.DiscountType),
		Amount:       domain.ParseAmount(d.Amount),
		ValidFrom:    d.ValidFrom,
		ValidUntil:   d.ValidUntil,
		IsActive:     d.IsActive,
	}
}

func (d productDoc) toDomain(id string) domain.Product {
	sizes := make([]int, 0, len(d.Sizes))
	for _, s := range d.Sizes {
		sizes = append(sizes, int(s))
	}
	return domain.Product{
		ID:            id,
		Name:          d.Name,
		Description:   d.Description,
		Price:         d.Price,
		CategoryID:    d.CategoryID,
		Sizes:         sizes,
		Colors:        d.Colors,
		Images:        d.Images,
		Brand:         d.Brand,
		Material:      d.Material,
		StockQuantity: int(d.StockQuantity),
		Status:        domain.ProductStatus(d.Status),
		DiscountID:    d.DiscountID,
	}
}

func toOrderDoc(o *domain.Order) orderDoc {
	lines := make([]orderLineDoc, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineDoc{
			Product:  l.ProductID,
			Quantity: int64(l.Quantity),
			Price:    l.Price,
			Size:     l.Size,
			Color:    l.Color,
		})
	}
	return orderDoc{
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

func (d orderDoc) toDomain(id string) domain.Order {
	lines := make([]domain.OrderLine, 0, len(d.Products))
	for _, l := range d.Products {
		lines = append(lines, domain.OrderLine{
			ProductID: l.Product,
			Quantity:  int(l.Quantity),
			Price:     l.Price,
			Size:      l.Size,
			Color:     l.Color,
		})
	}
	return domain.Order{
		ID:              id,
		UserID:          d.UserID,
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
