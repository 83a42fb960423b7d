package service

import (
	"context"
	"regexp"
	"strings"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var addressInText = regexp.MustCompile(`(?i)địa chỉ[:\s]+(.+)`)

// ============================================================
// Draft merging
// ============================================================

// mergeDraft rebuilds the order draft for this turn. Later sources win:
// session copy, delivery_info_context.order, the selection contexts, then
// the contact slots of this utterance.
func (e *Engine) mergeDraft(t *turn, s *domain.SessionState, withContact bool) domain.OrderDraft {
	draft := s.Draft

	if c, ok := t.find(chatdomain.CtxDeliveryInfo); ok && c.Has(chatdomain.ParamOrder) {
		var m map[string]any
		if err := chatdomain.DecodeValue(c.Parameters[chatdomain.ParamOrder], &m); err == nil {
			draft.Overlay(draftFromParams(chatdomain.Params(m)))
		}
	}

	if snap, ok := e.selectedSnapshot(t); ok {
		draft.ApplySnapshot(snap)
	}
	if n, ok := contextInt(t, chatdomain.CtxProductSize, chatdomain.ParamSelectedSize); ok {
		draft.Size = n
	}
	if c, ok := t.find(chatdomain.CtxProductColor); ok {
		if color := chatdomain.Params(c.Parameters).String(chatdomain.ParamSelectedColor); color != "" {
			draft.Color = color
		}
	}
	if n, ok := contextInt(t, chatdomain.CtxProductQuantity, chatdomain.ParamSelectedQuantity); ok && n > 0 {
		draft.Quantity = n
	}

	if !withContact {
		return draft
	}

	if address := t.params.String(chatdomain.SlotShippingAddress); address != "" {
		draft.ShippingAddress = address
	} else if m := addressInText.FindStringSubmatch(t.text); m != nil {
		if address := strings.TrimSpace(m[1]); address != "" {
			draft.ShippingAddress = address
		}
	}
	if phone := t.params.String(chatdomain.SlotPhone); phone != "" {
		draft.Phone = phone
	}
	if email := t.params.String(chatdomain.SlotEmail); email != "" {
		draft.Email = email
	}
	if name := t.params.String(chatdomain.SlotRecipientName); name != "" {
		draft.RecipientName = name
	}
	return draft
}

// draftFromParams reads a draft echoed back by the platform. Values may
// come back as strings or numbers, so each field is read leniently.
func draftFromParams(p chatdomain.Params) domain.OrderDraft {
	d := domain.OrderDraft{
		ProductID:       p.String("product"),
		ProductName:     p.String("productName"),
		Color:           p.String("color"),
		ShippingAddress: p.String("shippingAddress"),
		Phone:           p.String("phone"),
		Email:           p.String("email"),
		RecipientName:   p.String("recipientName"),
		PaymentMethod:   domain.PaymentMethod(p.String("paymentMethod")),
		OrderID:         p.String("orderId"),
	}
	if n, ok := pricing.ParseLeadingInt(p.String("size")); ok {
		d.Size = n
	}
	if n, ok := pricing.ParseLeadingInt(p.String("quantity")); ok {
		d.Quantity = n
	}
	if v := p.Numbers("price"); len(v) > 0 {
		d.Price = v[0]
	}
	if v := p.Numbers("calculatedPrice"); len(v) > 0 {
		d.CalculatedPrice = v[0]
	}
	if v := p.Numbers("totalAmount"); len(v) > 0 {
		d.TotalAmount = v[0]
	}
	return d
}

func contextInt(t *turn, name chatdomain.ContextName, key string) (int, bool) {
	c, ok := t.find(name)
	if !ok {
		return 0, false
	}
	return pricing.ParseLeadingInt(chatdomain.Params(c.Parameters).String(key))
}

// ============================================================
// Delivery information
// ============================================================

func (e *Engine) handleCollectDeliveryInfo(ctx context.Context, t *turn) (reply, error) {
	var draft domain.OrderDraft
	_, err := e.sessions.Update(ctx, t.session, func(s *domain.SessionState) error {
		draft = e.mergeDraft(t, s, true)
		s.Draft = draft
		return nil
	})
	if err != nil {
		return reply{}, err
	}

	if !draft.HasSelection() {
		return hardStop("Dữ liệu đã bị mất. Vui lòng quay lại bước chọn sản phẩm và tiến hành mua hàng lại!",
			chatdomain.NewContext(t.session, chatdomain.CtxDeliveryInfo, map[string]any{
				chatdomain.ParamOrder:      draft,
				chatdomain.ParamIncomplete: true,
			})), nil
	}

	delivery := chatdomain.NewContext(t.session, chatdomain.CtxDeliveryInfo, map[string]any{
		chatdomain.ParamOrder: draft,
	})
	if missing := draft.MissingContact(); len(missing) > 0 {
		return advance("Vui lòng cung cấp thêm: "+strings.Join(missing, ", ")+".", delivery), nil
	}
	return advance("Thông tin giao hàng đã đầy đủ. Bạn muốn thanh toán bằng phương thức nào? (COD, thẻ tín dụng, chuyển khoản)", delivery), nil
}

// ============================================================
// Payment and order creation
// ============================================================

// handleChoosePaymentMethod persists the order. It is the only place an
// order is created.
func (e *Engine) handleChoosePaymentMethod(ctx context.Context, t *turn) (reply, error) {
	state, err := e.sessions.Load(ctx, t.session)
	if err != nil {
		return reply{}, err
	}
	draft := e.mergeDraft(t, state, false)
	if draft.ProductID == "" {
		return hardStop("Không tìm thấy thông tin sản phẩm. Vui lòng bắt đầu lại từ bước chọn sản phẩm!"), nil
	}

	wording := t.params.String(chatdomain.SlotPaymentMethod)
	if wording == "" {
		wording = t.text
	}
	method, ok := e.phrases.PaymentMethod(wording)
	if !ok {
		return reject("Phương thức thanh toán không hợp lệ. Vui lòng chọn COD, MOMO hoặc chuyển khoản ngân hàng!"), nil
	}

	product, err := e.catalog.GetProduct(ctx, draft.ProductID)
	if err != nil {
		if domain.IsNotFound(err) {
			return reject("Không tìm thấy thông tin sản phẩm. Vui lòng thử lại!"), nil
		}
		return reply{}, err
	}

	unitPrice := pricing.DiscountedPrice(product.Price, product.Discount)
	order, err := e.orders.CreateOrder(ctx, draft.NewOrder(e.opts.UserID, method, unitPrice))
	if err != nil {
		return reply{}, err
	}
	e.metrics.IncrOrderCreated()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("order.id", order.ID))

	draft.PaymentMethod = method
	draft.CalculatedPrice = unitPrice
	draft.TotalAmount = order.TotalAmount
	draft.OrderID = order.ID

	// The order exists from here on; a session failure must not hide its id.
	if err := e.remember(ctx, t, func(s *domain.SessionState) {
		s.Draft = draft
	}); err != nil {
		e.logger.Warn("session update after order creation failed",
			zap.String("session", t.session),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	e.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("product_id", draft.ProductID),
		zap.String("payment_method", string(method)),
		zap.Float64("total_amount", order.TotalAmount),
	)

	text := formatOrderSummary(order, product, draft) +
		"\n\nVui lòng xác nhận thông tin đơn hàng trên. Bạn có muốn nhận hóa đơn qua email không? (Có/Không)"
	return advance(text, chatdomain.NewContext(t.session, chatdomain.CtxOrderConfirmation, map[string]any{
		chatdomain.ParamOrderID: order.ID,
		chatdomain.ParamOrder:   draft,
	})), nil
}
