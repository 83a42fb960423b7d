package pricing

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
)

// SelectionError explains why a requested size, color or quantity cannot
// be served. Its message is the corrective reply shown to the user.
type SelectionError struct {
	Field   string // size, color or quantity
	Value   string
	Options []string
	// Stock is set when a quantity exceeds what is left.
	Stock     int
	OverStock bool
}

func (e *SelectionError) Error() string {
	switch e.Field {
	case "size":
		return fmt.Sprintf("Size %s không có sẵn. Các size hiện có: %s", e.Value, strings.Join(e.Options, ", "))
	case "color":
		return fmt.Sprintf("Màu %s không có sẵn. Các màu hiện có: %s", e.Value, strings.Join(e.Options, ", "))
	case "quantity":
		if e.OverStock {
			return fmt.Sprintf("Xin lỗi, hiện chỉ còn %d sản phẩm trong kho.", e.Stock)
		}
		return "Số lượng không hợp lệ. Vui lòng nhập số lượng lớn hơn 0."
	default:
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Value)
	}
}

// Selection is a fully validated size/color/quantity triple.
type Selection struct {
	Size     int
	Color    string
	Quantity int
}

var leadingInt = regexp.MustCompile(`^\s*([+-]?\d+)`)

// ParseLeadingInt reads the integer a value starts with ("41", "2 đôi",
// "41.0"), mirroring how shoppers type numbers.
func ParseLeadingInt(s string) (int, bool) {
	m := leadingInt.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(m[1], "+"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ValidateSize checks that raw names one of the product's sizes.
func ValidateSize(p domain.ProductSnapshot, raw string) (int, error) {
	size, ok := ParseLeadingInt(raw)
	if !ok || !slices.Contains(p.AvailableSizes, size) {
		options := make([]string, len(p.AvailableSizes))
		for i, s := range p.AvailableSizes {
			options[i] = strconv.Itoa(s)
		}
		return 0, &SelectionError{Field: "size", Value: strings.TrimSpace(raw), Options: options}
	}
	return size, nil
}

// ValidateColor checks that color is exactly one of the product's colors.
func ValidateColor(p domain.ProductSnapshot, color string) (string, error) {
	if !slices.Contains(p.AvailableColors, color) {
		return "", &SelectionError{Field: "color", Value: color, Options: p.AvailableColors}
	}
	return color, nil
}

// ValidateQuantity checks that raw is a positive integer within stock.
func ValidateQuantity(p domain.ProductSnapshot, raw string) (int, error) {
	qty, ok := ParseLeadingInt(raw)
	if !ok || qty <= 0 {
		return 0, &SelectionError{Field: "quantity", Value: strings.TrimSpace(raw)}
	}
	if qty > p.StockQuantity {
		return 0, &SelectionError{Field: "quantity", Value: strconv.Itoa(qty), Stock: p.StockQuantity, OverStock: true}
	}
	return qty, nil
}

// ValidateSelection runs the three checks in order and returns the first
// failure.
func ValidateSelection(p domain.ProductSnapshot, size, color, quantity string) (Selection, error) {
	s, err := ValidateSize(p, size)
	if err != nil {
		return Selection{}, err
	}
	c, err := ValidateColor(p, color)
	if err != nil {
		return Selection{}, err
	}
	q, err := ValidateQuantity(p, quantity)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Size: s, Color: c, Quantity: q}, nil
}
