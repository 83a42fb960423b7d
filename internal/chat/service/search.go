package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"

	"go.uber.org/zap"
)

// ============================================================
// Product search
// ============================================================

// resolveCategory looks a category slot up. When the category does not
// exist it returns the reply listing the valid names instead.
func (e *Engine) resolveCategory(ctx context.Context, name string) (*domain.Category, *reply, error) {
	cat, err := e.catalog.FindCategoryByName(ctx, name)
	if err == nil {
		return cat, nil, nil
	}
	if !domain.IsNotFound(err) {
		return nil, nil, err
	}

	names, err := e.categoryNames(ctx)
	if err != nil {
		return nil, nil, err
	}
	r := reject(fmt.Sprintf("Danh mục \"%s\" không tồn tại. Vui lòng chọn một trong các danh mục sau: %s", name, names))
	return nil, &r, nil
}

func (e *Engine) categoryNames(ctx context.Context) (string, error) {
	categories, err := e.catalog.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return strings.Join(names, ", "), nil
}

// handleConsult combines every search slot the user gave into one filter.
func (e *Engine) handleConsult(ctx context.Context, t *turn) (reply, error) {
	filter := domain.ProductFilter{Limit: e.opts.ResultLimit}
	var criteria []string

	if brand := t.params.String(chatdomain.SlotBrand); brand != "" {
		filter.Brand = brand
		criteria = append(criteria, "thương hiệu "+brand)
	}

	if name := t.params.String(chatdomain.SlotCategory); name != "" {
		cat, stop, err := e.resolveCategory(ctx, name)
		if err != nil {
			return reply{}, err
		}
		if stop != nil {
			return *stop, nil
		}
		filter.CategoryID = cat.ID
		criteria = append(criteria, "danh mục "+cat.Name)
	}

	if phrase := t.params.String(chatdomain.SlotPrice); phrase != "" {
		q, err := pricing.ResolvePriceRange(phrase)
		if err != nil {
			return reject(err.Error()), nil
		}
		filter.Price = &q.Range
		criteria = append(criteria, q.Description)
	}

	if flag := t.params.String(chatdomain.SlotDiscount); flag != "" && e.phrases.DiscountRequested(flag) {
		filter.DiscountedOnly = true
		criteria = append(criteria, "đang giảm giá")
	}

	if purpose := t.params.String(chatdomain.SlotPurpose); purpose != "" {
		if _, keywords, ok := e.phrases.PurposeKeywords(purpose); ok {
			filter.Keywords = keywords
			criteria = append(criteria, "phù hợp để "+purpose)
		}
	}

	products, err := e.catalog.FindProducts(ctx, filter)
	if err != nil {
		return reply{}, err
	}
	if len(products) == 0 {
		return reject("Xin lỗi, tôi không tìm thấy sản phẩm nào phù hợp với yêu cầu của bạn.\n" +
			"Bạn có thể thử:\n" +
			"1. Tìm với tiêu chí khác\n" +
			"2. Xem tất cả sản phẩm trong danh mục\n" +
			"3. Điều chỉnh khoảng giá\n" +
			"Bạn muốn thử cách nào?"), nil
	}

	description := strings.Join(criteria, ", ")
	suffix := ""
	if description != "" {
		suffix = "\nTìm theo: " + description
	}
	text := fmt.Sprintf("Tôi đã tìm thấy %d sản phẩm phù hợp:%s\n\n%s\n\n%s",
		len(products), suffix, formatProductList(products, true), pickPrompt(len(products)))
	return advance(text, productListContext(t.session, products, description)), nil
}

func (e *Engine) handleSearchByCategory(ctx context.Context, t *turn) (reply, error) {
	name := t.params.String(chatdomain.SlotCategory)
	if name == "" {
		names, err := e.categoryNames(ctx)
		if err != nil {
			return reply{}, err
		}
		return reject("Bạn muốn tìm giày thuộc danh mục nào? Các danh mục hiện có: " + names), nil
	}

	cat, stop, err := e.resolveCategory(ctx, name)
	if err != nil {
		return reply{}, err
	}
	if stop != nil {
		return *stop, nil
	}

	products, err := e.catalog.FindProducts(ctx, domain.ProductFilter{CategoryID: cat.ID, Limit: e.opts.ResultLimit})
	if err != nil {
		return reply{}, err
	}
	if len(products) == 0 {
		return reject(fmt.Sprintf("Không có sản phẩm nào trong danh mục %s. Bạn có muốn xem các danh mục khác không?", cat.Name)), nil
	}

	text := fmt.Sprintf("Tôi đã tìm thấy %d sản phẩm trong danh mục %s:\n\n%s\n\n%s",
		len(products), cat.Name, formatProductList(products, true), pickPrompt(len(products)))
	return advance(text, productListContext(t.session, products, "danh mục "+cat.Name)), nil
}

// handleSearchByPrice accepts a price phrase, or the structured
// number/price_range/unit slots when the agent split the phrase itself.
func (e *Engine) handleSearchByPrice(ctx context.Context, t *turn) (reply, error) {
	var (
		q   pricing.PriceQuery
		err error
	)
	switch {
	case t.params.String(chatdomain.SlotPrice) != "":
		q, err = pricing.ResolvePriceRange(t.params.String(chatdomain.SlotPrice))
		if err != nil {
			return reject(err.Error()), nil
		}
	case t.params.String(chatdomain.SlotNumber) != "" && t.params.String(chatdomain.SlotPriceRange) != "":
		q, err = pricing.PriceFromSlots(
			t.params.Numbers(chatdomain.SlotNumber),
			t.params.String(chatdomain.SlotPriceRange),
			t.params.String(chatdomain.SlotUnit),
		)
		if err != nil {
			var ve *domain.ErrValidation
			if errors.As(err, &ve) {
				return reject(ve.Message), nil
			}
			return reply{}, err
		}
	default:
		return reject("Vui lòng cung cấp thông tin giá cụ thể để tìm kiếm sản phẩm. Ví dụ: \"dưới 2 triệu\", \"từ 1 đến 3 triệu\"."), nil
	}

	e.logger.Debug("price query resolved",
		zap.String("shape", string(q.Shape)),
		zap.String("description", q.Description),
	)
	return e.searchResults(ctx, t, domain.ProductFilter{Price: &q.Range, Limit: e.opts.ResultLimit}, q.Description)
}

func (e *Engine) handleSearchByBrand(ctx context.Context, t *turn) (reply, error) {
	brand := t.params.String(chatdomain.SlotBrand)
	if brand == "" {
		return reject("Bạn muốn tìm giày của thương hiệu nào?"), nil
	}
	return e.searchResults(ctx, t, domain.ProductFilter{Brand: brand, Limit: e.opts.ResultLimit}, "thương hiệu "+brand)
}

// searchResults runs filter and renders the shared "Tìm thấy N sản phẩm
// với ..." reply.
func (e *Engine) searchResults(ctx context.Context, t *turn, filter domain.ProductFilter, criteria string) (reply, error) {
	products, err := e.catalog.FindProducts(ctx, filter)
	if err != nil {
		return reply{}, err
	}
	if len(products) == 0 {
		return reject(fmt.Sprintf("Không tìm thấy sản phẩm nào với %s.", criteria)), nil
	}

	text := fmt.Sprintf("Tìm thấy %d sản phẩm với %s:\n\n%s\n\n%s",
		len(products), criteria, formatProductList(products, true), pickPrompt(len(products)))
	return advance(text, productListContext(t.session, products, criteria)), nil
}

func productListContext(session string, products []domain.Product, criteria string) chatdomain.Context {
	return chatdomain.NewContext(session, chatdomain.CtxProductList, map[string]any{
		chatdomain.ParamProducts:       products,
		chatdomain.ParamSearchCriteria: criteria,
	})
}
