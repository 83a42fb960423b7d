package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var (
	utteranceNumbers = regexp.MustCompile(`\d+`)
	nameSeparators   = regexp.MustCompile(`,|\s+và\s+|\s+or\s+`)
)

// ============================================================
// Product selection
// ============================================================

// handleSelectProduct resolves the user's pick against the current result
// list. Numbers typed in the utterance win when the agent extracted no
// name or ordinal slot; then product names; then ordinal slots.
func (e *Engine) handleSelectProduct(ctx context.Context, t *turn) (reply, error) {
	products, _, err := chatdomain.Decode[[]domain.Product](t.contexts, chatdomain.CtxProductList, chatdomain.ParamProducts)
	if err != nil {
		e.logger.Warn("undecodable product list", zap.String("session", t.session), zap.Error(err))
	}
	if len(products) == 0 {
		return hardStop("Danh sách sản phẩm trống. Vui lòng tìm kiếm sản phẩm trước."), nil
	}

	name := t.params.String(chatdomain.SlotProductName)
	ordinals := t.params.Strings(chatdomain.SlotProductNumber)

	var picked []domain.Product
	switch {
	case name == "" && len(ordinals) == 0:
		picked = pickByIndex(products, utteranceNumbers.FindAllString(t.text, -1))
	case name != "":
		picked = pickByName(products, name)
	default:
		picked = pickByIndex(products, ordinals)
	}

	switch len(picked) {
	case 0:
		return reject(fmt.Sprintf("Không tìm thấy sản phẩm bạn chọn. Vui lòng thử lại với số thứ tự từ 1-%d hoặc tên sản phẩm.", len(products))), nil
	case 1:
		return e.selectProduct(ctx, t, picked[0])
	}

	text := fmt.Sprintf("Bạn đã chọn %d sản phẩm:\n\n%s\n\nVui lòng chọn một sản phẩm để xem chi tiết và tiếp tục. Hãy nói \"Xem chi tiết sản phẩm số [1-%d]\"",
		len(picked), formatProductList(picked, false), len(picked))
	return advance(text, chatdomain.NewContext(t.session, chatdomain.CtxFilteredProducts, map[string]any{
		chatdomain.ParamFilteredProducts: picked,
	})), nil
}

// handleSelectFilteredProduct narrows a multi-pick down to one product.
func (e *Engine) handleSelectFilteredProduct(ctx context.Context, t *turn) (reply, error) {
	filtered, _, err := chatdomain.Decode[[]domain.Product](t.contexts, chatdomain.CtxFilteredProducts, chatdomain.ParamFilteredProducts)
	if err != nil {
		e.logger.Warn("undecodable filtered list", zap.String("session", t.session), zap.Error(err))
	}
	if len(filtered) == 0 {
		return hardStop("Không tìm thấy danh sách sản phẩm đã lọc. Vui lòng tìm kiếm sản phẩm lại."), nil
	}

	raw := t.params.String(chatdomain.SlotProductNumber)
	if raw == "" {
		raw = utteranceNumbers.FindString(t.text)
	}
	n, ok := pricing.ParseLeadingInt(raw)
	if !ok || n < 1 || n > len(filtered) {
		return reject(fmt.Sprintf("Số thứ tự không hợp lệ. Vui lòng chọn số từ 1 đến %d.", len(filtered))), nil
	}
	return e.selectProduct(ctx, t, filtered[n-1])
}

// selectProduct snapshots p and starts a fresh draft for it.
func (e *Engine) selectProduct(ctx context.Context, t *turn, p domain.Product) (reply, error) {
	snap := domain.SnapshotOf(p)

	err := e.remember(ctx, t, func(s *domain.SessionState) {
		s.SelectedProduct = &snap
		s.Draft.ApplySnapshot(snap)
		s.Draft.Size = 0
		s.Draft.Color = ""
		s.Draft.Quantity = 0
		s.Draft.PaymentMethod = ""
		s.Draft.CalculatedPrice = 0
		s.Draft.TotalAmount = 0
		s.Draft.OrderID = ""
	})
	if err != nil {
		return reply{}, err
	}

	return advance(formatProductDetails(p), chatdomain.NewContext(t.session, chatdomain.CtxSelectedProduct, map[string]any{
		chatdomain.ParamSelectedProduct: snap,
	})), nil
}

// pickByIndex maps 1-based positions to products, skipping anything out
// of range and repeats.
func pickByIndex(products []domain.Product, values []string) []domain.Product {
	var picked []domain.Product
	seen := make(map[int]bool)
	for _, v := range values {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if ferr != nil {
				continue
			}
			n = int(f)
		}
		if n < 1 || n > len(products) || seen[n] {
			continue
		}
		seen[n] = true
		picked = append(picked, products[n-1])
	}
	return picked
}

// pickByName matches each comma or "và" separated name against the list,
// case-insensitively and after NFC normalization, taking the first product
// containing it.
func pickByName(products []domain.Product, names string) []domain.Product {
	var picked []domain.Product
	seen := make(map[string]bool)
	for _, name := range nameSeparators.Split(norm.NFC.String(names), -1) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for _, p := range products {
			if strings.Contains(strings.ToLower(norm.NFC.String(p.Name)), name) {
				if !seen[p.ID] {
					seen[p.ID] = true
					picked = append(picked, p)
				}
				break
			}
		}
	}
	return picked
}

// ============================================================
// Size, color, quantity
// ============================================================

func (e *Engine) selectedSnapshot(t *turn) (domain.ProductSnapshot, bool) {
	snap, ok, err := chatdomain.Decode[domain.ProductSnapshot](t.contexts, chatdomain.CtxSelectedProduct, chatdomain.ParamSelectedProduct)
	if err != nil {
		e.logger.Warn("undecodable selected product", zap.String("session", t.session), zap.Error(err))
		return snap, false
	}
	return snap, ok && snap.ID != ""
}

func (e *Engine) noProductSelected() reply {
	return hardStop("Bạn chưa chọn sản phẩm nào. Vui lòng chọn sản phẩm trước.")
}

func (e *Engine) handleChooseSize(ctx context.Context, t *turn) (reply, error) {
	snap, ok := e.selectedSnapshot(t)
	if !ok {
		return e.noProductSelected(), nil
	}
	size, err := pricing.ValidateSize(snap, t.params.String(chatdomain.SlotSize))
	if err != nil {
		return reject(err.Error()), nil
	}

	if err := e.remember(ctx, t, func(s *domain.SessionState) {
		keepSnapshot(s, snap)
		s.Draft.Size = size
	}); err != nil {
		return reply{}, err
	}

	return advance(fmt.Sprintf("Đã chọn size %d. Vui lòng chọn màu sắc.", size),
		chatdomain.NewContext(t.session, chatdomain.CtxProductSize, map[string]any{chatdomain.ParamSelectedSize: size})), nil
}

func (e *Engine) handleChooseColor(ctx context.Context, t *turn) (reply, error) {
	snap, ok := e.selectedSnapshot(t)
	if !ok {
		return e.noProductSelected(), nil
	}
	color, err := pricing.ValidateColor(snap, t.params.String(chatdomain.SlotColor))
	if err != nil {
		return reject(err.Error()), nil
	}

	if err := e.remember(ctx, t, func(s *domain.SessionState) {
		keepSnapshot(s, snap)
		s.Draft.Color = color
	}); err != nil {
		return reply{}, err
	}

	return advance(fmt.Sprintf("Đã chọn màu %s. Vui lòng chọn số lượng.", color),
		chatdomain.NewContext(t.session, chatdomain.CtxProductColor, map[string]any{chatdomain.ParamSelectedColor: color})), nil
}

func (e *Engine) handleChooseQuantity(ctx context.Context, t *turn) (reply, error) {
	snap, ok := e.selectedSnapshot(t)
	if !ok {
		return e.noProductSelected(), nil
	}
	quantity, err := pricing.ValidateQuantity(snap, t.params.String(chatdomain.SlotQuantity))
	if err != nil {
		return reject(err.Error()), nil
	}

	if err := e.remember(ctx, t, func(s *domain.SessionState) {
		keepSnapshot(s, snap)
		s.Draft.Quantity = quantity
	}); err != nil {
		return reply{}, err
	}

	return advance(fmt.Sprintf("Đã chọn số lượng %d. Vui lòng cung cấp thông tin giao hàng.", quantity),
		chatdomain.NewContext(t.session, chatdomain.CtxProductQuantity, map[string]any{chatdomain.ParamSelectedQuantity: quantity})), nil
}

// keepSnapshot re-binds the session draft to snap when the session lost
// it or still points at another product.
func keepSnapshot(s *domain.SessionState, snap domain.ProductSnapshot) {
	if s.Draft.ProductID == snap.ID && s.SelectedProduct != nil {
		return
	}
	if s.Draft.ProductID != snap.ID {
		s.Draft.Size = 0
		s.Draft.Color = ""
		s.Draft.Quantity = 0
	}
	s.SelectedProduct = &snap
	s.Draft.ApplySnapshot(snap)
}

// remember applies fn to the session state of this turn.
func (e *Engine) remember(ctx context.Context, t *turn, fn func(*domain.SessionState)) error {
	_, err := e.sessions.Update(ctx, t.session, func(s *domain.SessionState) error {
		fn(s)
		return nil
	})
	return err
}
