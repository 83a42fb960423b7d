package domain_test

import (
	"testing"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestOrderDraft_OverlayKeepsExistingValues(t *testing.T) {
	d := domain.OrderDraft{ProductID: "p1", Size: 41, Phone: "0901"}
	d.Overlay(domain.OrderDraft{Color: "Đen", Phone: "0902"})

	assert.Equal(t, "p1", d.ProductID)
	assert.Equal(t, 41, d.Size)
	assert.Equal(t, "Đen", d.Color)
	assert.Equal(t, "0902", d.Phone)
}

func TestOrderDraft_HasSelectionAndMissingContact(t *testing.T) {
	d := domain.OrderDraft{ProductID: "p1", Size: 41, Color: "Đen"}
	assert.False(t, d.HasSelection())

	d.Quantity = 2
	assert.True(t, d.HasSelection())
	assert.Equal(t, []string{"địa chỉ giao hàng", "số điện thoại", "tên người nhận"}, d.MissingContact())

	d.Phone = "0901234567"
	assert.Equal(t, []string{"địa chỉ giao hàng", "tên người nhận"}, d.MissingContact())
}

func TestOrderDraft_NewOrder(t *testing.T) {
	d := domain.OrderDraft{
		ProductID:     "p1",
		Size:          42,
		Color:         "Trắng",
		Quantity:      3,
		Phone:         "0901234567",
		RecipientName: "An",
	}

	o := d.NewOrder("user-1", domain.PaymentCOD, 900_000)

	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, 2_700_000.0, o.TotalAmount)
	assert.Equal(t, domain.AddressNotProvided, o.ShippingAddress)

	line, ok := o.FirstLine()
	assert.True(t, ok)
	assert.Equal(t, "42", line.Size)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 900_000.0, line.Price)
}

func TestOrderDraft_NewOrderDefaults(t *testing.T) {
	d := domain.OrderDraft{ProductID: "p1"}
	o := d.NewOrder("u", domain.PaymentBank, 100)

	line, _ := o.FirstLine()
	assert.Equal(t, domain.UnknownVariant, line.Size)
	assert.Equal(t, domain.UnknownVariant, line.Color)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, 100.0, o.TotalAmount)
}

func TestExtractEmail(t *testing.T) {
	assert.Equal(t, "an.nguyen@gmail.com", domain.ExtractEmail("có, gửi về an.nguyen@gmail.com nhé"))
	assert.Equal(t, "", domain.ExtractEmail("có"))
	assert.True(t, domain.LooksLikeEmail("a@b.c"))
	assert.False(t, domain.LooksLikeEmail("ab.c"))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, int64(1_350_000), domain.RoundMoney(1_349_999.6))
}
