// Package pricing resolves price phrases into catalog price ranges and
// checks a requested size, color and quantity against a selected product.
// Everything here is pure; no store access.
package pricing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"golang.org/x/text/unicode/norm"
)

// Shape is one of the accepted price phrasings.
type Shape string

const (
	ShapeExact   Shape = "exact"
	ShapeUnder   Shape = "under"
	ShapeAbove   Shape = "above"
	ShapeBetween Shape = "between"
)

// Structured slot values sent by the NLU agent for price_range.
const (
	RangeUnder   = "under_price"
	RangeAbove   = "above_price"
	RangeBetween = "between_price"
)

// PriceQuery is a resolved price criterion plus the wording echoed back to
// the user ("dưới 2 triệu").
type PriceQuery struct {
	Shape       Shape
	Range       domain.PriceRange
	Description string
}

// PriceGrammarError is returned for price input that matches none of the
// accepted shapes. Its message is the reply shown to the user.
type PriceGrammarError struct {
	Input string
}

func (e *PriceGrammarError) Error() string {
	if strings.TrimSpace(e.Input) == "" {
		return "Vui lòng cung cấp thông tin giá để tìm kiếm sản phẩm."
	}
	return "Xin lỗi, tôi không hiểu khoảng giá bạn muốn. Vui lòng thử lại với các cách nói như:\n" +
		"- \"giá 2 triệu\"\n" +
		"- \"dưới 1 triệu\"\n" +
		"- \"trên 500k\"\n" +
		"- \"từ 1 đến 3 triệu\""
}

const unitGroup = `(triệu|tr|k|nghìn)?`

// Order matters only for readability; the anchors make the shapes disjoint.
var grammar = []struct {
	shape   Shape
	pattern *regexp.Regexp
}{
	{ShapeExact, regexp.MustCompile(`^giá\s*(\d+)\s*` + unitGroup + `$`)},
	{ShapeUnder, regexp.MustCompile(`^dưới\s*(\d+)\s*` + unitGroup + `$`)},
	{ShapeAbove, regexp.MustCompile(`^trên\s*(\d+)\s*` + unitGroup + `$`)},
	{ShapeBetween, regexp.MustCompile(`^từ\s*(\d+)\s*đến\s*(\d+)\s*` + unitGroup + `$`)},
}

// UnitFactor maps a price unit to its multiplier. Unknown or empty units
// count as plain đồng.
func UnitFactor(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(norm.NFC.String(unit))) {
	case "triệu", "tr":
		return 1_000_000
	case "k", "nghìn":
		return 1_000
	default:
		return 1
	}
}

// ResolvePriceRange parses a free-text price phrase:
//
//	giá N [unit]        exact
//	dưới N [unit]       at most
//	trên N [unit]       at least
//	từ N đến M [unit]   inclusive range, unit applies to both bounds
func ResolvePriceRange(text string) (PriceQuery, error) {
	input := strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
	if input == "" {
		return PriceQuery{}, &PriceGrammarError{Input: text}
	}

	for _, g := range grammar {
		m := g.pattern.FindStringSubmatch(input)
		if m == nil {
			continue
		}

		first, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return PriceQuery{}, &PriceGrammarError{Input: text}
		}
		unit := m[len(m)-1]
		factor := UnitFactor(unit)

		switch g.shape {
		case ShapeExact:
			return exactQuery(first*factor, "giá "+m[1]+" "+unitLabel(unit)), nil
		case ShapeUnder:
			return underQuery(first*factor, "dưới "+m[1]+" "+unitLabel(unit)), nil
		case ShapeAbove:
			return aboveQuery(first*factor, "trên "+m[1]+" "+unitLabel(unit)), nil
		case ShapeBetween:
			second, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return PriceQuery{}, &PriceGrammarError{Input: text}
			}
			return betweenQuery(first*factor, second*factor,
				"từ "+m[1]+" đến "+m[2]+" "+unitLabel(unit)), nil
		}
	}

	return PriceQuery{}, &PriceGrammarError{Input: text}
}

// ErrMissingPriceNumber is the reply when structured price slots arrive
// without a number.
const ErrMissingPriceNumber = "Vui lòng cung cấp giá cụ thể."

// PriceFromSlots builds a price query from the structured number,
// price_range and unit slots. A between range with a single number falls
// back to an exact price.
func PriceFromSlots(numbers []float64, rangeType, unit string) (PriceQuery, error) {
	if len(numbers) == 0 {
		return PriceQuery{}, &domain.ErrValidation{Field: "number", Message: ErrMissingPriceNumber}
	}

	factor := UnitFactor(unit)
	label := unitLabel(unit)
	first := numbers[0]
	firstText := formatNumber(first)

	switch {
	case rangeType == RangeUnder:
		return underQuery(first*factor, "dưới "+firstText+" "+label), nil
	case rangeType == RangeAbove:
		return aboveQuery(first*factor, "trên "+firstText+" "+label), nil
	case rangeType == RangeBetween && len(numbers) >= 2:
		second := numbers[1]
		return betweenQuery(first*factor, second*factor,
			"từ "+firstText+" đến "+formatNumber(second)+" "+label), nil
	default:
		return exactQuery(first*factor, firstText+" "+label), nil
	}
}

func exactQuery(v float64, desc string) PriceQuery {
	return PriceQuery{Shape: ShapeExact, Range: domain.PriceRange{Min: &v, Max: &v}, Description: desc}
}

func underQuery(v float64, desc string) PriceQuery {
	return PriceQuery{Shape: ShapeUnder, Range: domain.PriceRange{Max: &v}, Description: desc}
}

func aboveQuery(v float64, desc string) PriceQuery {
	return PriceQuery{Shape: ShapeAbove, Range: domain.PriceRange{Min: &v}, Description: desc}
}

func betweenQuery(lo, hi float64, desc string) PriceQuery {
	return PriceQuery{Shape: ShapeBetween, Range: domain.PriceRange{Min: &lo, Max: &hi}, Description: desc}
}

func unitLabel(unit string) string {
	if unit == "" {
		return "VND"
	}
	return unit
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
