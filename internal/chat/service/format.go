package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"
)

const notUpdated = "Chưa cập nhật"

// formatProductList renders search results, numbered from 1.
func formatProductList(products []domain.Product, withVariants bool) string {
	items := make([]string, len(products))
	for i, p := range products {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
		fmt.Fprintf(&b, "   💰 Giá: %s VND", pricing.FormatVND(p.Price))
		if p.Discount != nil {
			fmt.Fprintf(&b, "\n   🏷️ Giảm giá: %s%% còn %s VND",
				pricing.FormatPercent(pricing.DiscountPercent(p.Discount)),
				pricing.FormatVND(pricing.DiscountedPrice(p.Price, p.Discount)))
		}
		if withVariants {
			fmt.Fprintf(&b, "\n   📏 Size: %s", joinInts(p.Sizes))
			fmt.Fprintf(&b, "\n   🎨 Màu sắc: %s", strings.Join(p.Colors, ", "))
		}
		items[i] = b.String()
	}
	return strings.Join(items, "\n\n")
}

func pickPrompt(n int) string {
	return fmt.Sprintf("Bạn muốn xem chi tiết sản phẩm nào? Hãy nói \"chọn số [1-%d]\" hoặc \"chọn [tên sản phẩm]\"", n)
}

// formatProductDetails renders the selection card followed by the
// size/quantity/color prompt.
func formatProductDetails(p domain.Product) string {
	lines := []string{
		"🏷️ Tên sản phẩm: " + orDefault(p.Name, notUpdated),
		"💰 Giá: " + pricing.FormatVND(p.Price) + " VND",
	}
	if p.Discount != nil {
		lines = append(lines,
			"🏷️ Giảm giá: "+pricing.FormatPercent(pricing.DiscountPercent(p.Discount))+"%",
			"💵 Giá sau giảm: "+pricing.FormatVND(pricing.DiscountedPrice(p.Price, p.Discount))+" VND",
		)
	}
	lines = append(lines,
		"👟 Thương hiệu: "+orDefault(p.Brand, notUpdated),
		"📏 Kích thước có sẵn: "+orDefault(joinInts(p.Sizes), notUpdated),
		"🎨 Màu sắc có sẵn: "+orDefault(strings.Join(p.Colors, ", "), notUpdated),
		"📦 Số lượng trong kho: "+strconv.Itoa(p.StockQuantity),
		"🏷️ Danh mục: "+orDefault(p.CategoryName(), "Chưa phân loại"),
		"🛠️ Chất liệu: "+orDefault(p.Material, notUpdated),
	)

	return strings.Join(lines, "\n") +
		"\n\n👉 Vui lòng cho tôi biết:\n" +
		"- Kích thước bạn muốn chọn\n" +
		"- Số lượng bạn muốn mua\n" +
		"- Màu sắc bạn thích\n\n" +
		"Ví dụ: \"Size 41, số lượng 2, màu xanh\""
}

// formatOrderSummary renders the order recap shown after payment.
func formatOrderSummary(order *domain.Order, product *domain.Product, draft domain.OrderDraft) string {
	line, _ := order.FirstLine()
	rule := "----------------------------------------"

	lines := []string{
		"📋 THÔNG TIN ĐƠN HÀNG CỦA BẠN",
		rule,
		"🆔 Mã đơn hàng: " + order.ID,
		"🏷️ Sản phẩm: " + product.Name,
		"📏 Kích thước: " + orDefault(sizeText(draft.Size), "Chưa chọn"),
		"🎨 Màu sắc: " + orDefault(draft.Color, "Chưa chọn"),
		"🔢 Số lượng: " + strconv.Itoa(line.Quantity),
		"💰 Đơn giá: " + pricing.FormatVND(product.Price) + " VND",
	}
	if product.Discount != nil {
		lines = append(lines, "🏷️ Giảm giá: "+pricing.FormatPercent(pricing.DiscountPercent(product.Discount))+"%")
	}
	lines = append(lines,
		"💵 Thành tiền: "+pricing.FormatVND(order.TotalAmount)+" VND",
		rule,
		"👤 Người nhận: "+orDefault(draft.RecipientName, domain.AddressNotProvided),
		"📱 Số điện thoại: "+orDefault(draft.Phone, domain.AddressNotProvided),
		"✉️ Email: "+orDefault(draft.Email, domain.AddressNotProvided),
		"🏠 Địa chỉ giao hàng: "+orDefault(draft.ShippingAddress, domain.AddressNotProvided),
		"💳 Phương thức thanh toán: "+string(order.PaymentMethod),
		rule,
	)
	return strings.Join(lines, "\n")
}

func sizeText(size int) string {
	if size == 0 {
		return ""
	}
	return strconv.Itoa(size)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
