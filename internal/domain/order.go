package domain

import (
	"math"
	"strconv"
	"time"
)

// ============================================================
// Orders
// ============================================================

// OrderStatus is the lifecycle state of a persisted order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

// PaymentMethod is the canonical payment code stored on an order.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "COD"
	PaymentMomo PaymentMethod = "MOMO"
	PaymentBank PaymentMethod = "BANK"
)

// Placeholders written when the draft lacks a value at order time.
const (
	UnknownVariant     = "Không xác định"
	AddressNotProvided = "Chưa cung cấp"
)

// OrderLine is one product row of an order. Price is the unit price after
// discount at the time the order was placed.
type OrderLine struct {
	ProductID string   `json:"product"`
	Product   *Product `json:"productDetail,omitempty"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
	Size      string   `json:"size"`
	Color     string   `json:"color"`
}

// Order is a persisted purchase.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user"`
	Lines           []OrderLine   `json:"products"`
	ShippingAddress string        `json:"shippingAddress"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	TotalAmount     float64       `json:"totalAmount"`
	Status          OrderStatus   `json:"status"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	RecipientName   string        `json:"recipientName"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// FirstLine returns the first product line; the chat flow only creates
// single-line orders.
func (o *Order) FirstLine() (OrderLine, bool) {
	if len(o.Lines) == 0 {
		return OrderLine{}, false
	}
	return o.Lines[0], true
}

// ============================================================
// Order draft
// ============================================================

// OrderDraft accumulates a purchase across turns until it is persisted at
// the payment step.
type OrderDraft struct {
	ProductID       string        `json:"product,omitempty"`
	ProductName     string        `json:"productName,omitempty"`
	Price           float64       `json:"price,omitempty"`
	Size            int           `json:"size,omitempty"`
	Color           string        `json:"color,omitempty"`
	Quantity        int           `json:"quantity,omitempty"`
	ShippingAddress string        `json:"shippingAddress,omitempty"`
	Phone           string        `json:"phone,omitempty"`
	Email           string        `json:"email,omitempty"`
	RecipientName   string        `json:"recipientName,omitempty"`
	PaymentMethod   PaymentMethod `json:"paymentMethod,omitempty"`
	CalculatedPrice float64       `json:"calculatedPrice,omitempty"`
	TotalAmount     float64       `json:"totalAmount,omitempty"`
	OrderID         string        `json:"orderId,omitempty"`
}

// Overlay copies every non-zero field of other onto d.
func (d *OrderDraft) Overlay(other OrderDraft) {
	if other.ProductID != "" {
		d.ProductID = other.ProductID
	}
	if other.ProductName != "" {
		d.ProductName = other.ProductName
	}
	if other.Price != 0 {
		d.Price = other.Price
	}
	if other.Size != 0 {
		d.Size = other.Size
	}
	if other.Color != "" {
		d.Color = other.Color
	}
	if other.Quantity != 0 {
		d.Quantity = other.Quantity
	}
	if other.ShippingAddress != "" {
		d.ShippingAddress = other.ShippingAddress
	}
	if other.Phone != "" {
		d.Phone = other.Phone
	}
	if other.Email != "" {
		d.Email = other.Email
	}
	if other.RecipientName != "" {
		d.RecipientName = other.RecipientName
	}
	if other.PaymentMethod != "" {
		d.PaymentMethod = other.PaymentMethod
	}
	if other.CalculatedPrice != 0 {
		d.CalculatedPrice = other.CalculatedPrice
	}
	if other.TotalAmount != 0 {
		d.TotalAmount = other.TotalAmount
	}
	if other.OrderID != "" {
		d.OrderID = other.OrderID
	}
}

// ApplySnapshot copies the product reference out of a selection snapshot.
func (d *OrderDraft) ApplySnapshot(s ProductSnapshot) {
	d.ProductID = s.ID
	d.ProductName = s.Name
	d.Price = s.Price
}

// HasSelection reports whether product, size, color and quantity are all known.
func (d *OrderDraft) HasSelection() bool {
	return d.ProductID != "" && d.Size != 0 && d.Color != "" && d.Quantity > 0
}

// MissingContact lists, in display order, the contact fields still empty.
func (d *OrderDraft) MissingContact() []string {
	var missing []string
	if d.ShippingAddress == "" {
		missing = append(missing, "địa chỉ giao hàng")
	}
	if d.Phone == "" {
		missing = append(missing, "số điện thoại")
	}
	if d.RecipientName == "" {
		missing = append(missing, "tên người nhận")
	}
	return missing
}

// NewOrder turns a finalized draft into the order to persist. unitPrice is
// the discounted unit price; the total is unitPrice × quantity, and a
// missing quantity counts as one.
func (d *OrderDraft) NewOrder(userID string, method PaymentMethod, unitPrice float64) *Order {
	quantity := d.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	size := UnknownVariant
	if d.Size != 0 {
		size = strconv.Itoa(d.Size)
	}
	color := UnknownVariant
	if d.Color != "" {
		color = d.Color
	}
	address := AddressNotProvided
	if d.ShippingAddress != "" {
		address = d.ShippingAddress
	}

	return &Order{
		UserID: userID,
		Lines: []OrderLine{{
			ProductID: d.ProductID,
			Quantity:  quantity,
			Price:     unitPrice,
			Size:      size,
			Color:     color,
		}},
		ShippingAddress: address,
		PaymentMethod:   method,
		TotalAmount:     unitPrice * float64(quantity),
		Status:          OrderPending,
		Email:           d.Email,
		Phone:           d.Phone,
		RecipientName:   d.RecipientName,
	}
}

// RoundMoney rounds to the nearest whole đồng.
func RoundMoney(v float64) int64 {
	return int64(math.Round(v))
}
