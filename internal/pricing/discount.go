package pricing

import (
	"strconv"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DiscountedPrice applies a percentage discount. The list price is returned
// when there is no discount or its amount is not a finite number.
func DiscountedPrice(price float64, d *domain.Discount) float64 {
	if d == nil || !d.Amount.Valid() {
		return price
	}
	return price * (1 - d.Amount.Float()/100)
}

// DiscountPercent returns the usable discount percentage, or 0.
func DiscountPercent(d *domain.Discount) float64 {
	if d == nil || !d.Amount.Valid() {
		return 0
	}
	return d.Amount.Float()
}

var vnPrinter = message.NewPrinter(language.Vietnamese)

// FormatVND renders an amount the way Vietnamese shoppers read prices,
// rounded to whole đồng with "." grouping: 1.500.000.
func FormatVND(v float64) string {
	return vnPrinter.Sprintf("%d", domain.RoundMoney(v))
}

// FormatPercent renders a discount amount without trailing zeros.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
