package service

import (
	"context"
	"fmt"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/phrases"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"

	"go.uber.org/zap"
)

// orderChain lists the contexts cleared when a conversation closes.
var orderChain = []chatdomain.ContextName{
	chatdomain.CtxSelectedProduct,
	chatdomain.CtxProductSize,
	chatdomain.CtxProductColor,
	chatdomain.CtxProductQuantity,
	chatdomain.CtxDeliveryInfo,
	chatdomain.CtxOrderConfirmation,
	chatdomain.CtxWaitingForEmail,
}

// ============================================================
// Order confirmation
// ============================================================

func (e *Engine) handleConfirmOrder(ctx context.Context, t *turn) (reply, error) {
	orderCtx, hasOrderCtx := t.find(chatdomain.CtxOrderConfirmation)
	orderID := ""
	if hasOrderCtx {
		orderID = chatdomain.Params(orderCtx.Parameters).String(chatdomain.ParamOrderID)
	}

	state, err := e.sessions.Load(ctx, t.session)
	if err != nil {
		return reply{}, err
	}
	if orderID == "" {
		orderID = state.Draft.OrderID
	}
	if orderID == "" {
		return hardStop(fmt.Sprintf("Xin lỗi, không thể xác định đơn hàng. Vui lòng bắt đầu lại từ bước chọn sản phẩm hoặc liên hệ %s.", e.opts.SupportContact)), nil
	}

	answer := t.params.String(chatdomain.SlotConfirmEmail)
	if answer == "" {
		answer = t.text
	}
	email := domain.ExtractEmail(answer)
	decision := e.phrases.Confirm(answer)
	if decision == phrases.Unknown && email != "" {
		decision = phrases.Yes
	}

	e.logger.Debug("order confirmation answer",
		zap.String("order_id", orderID),
		zap.String("decision", decision.String()),
	)

	// Unknown asks again instead of closing as "no email wanted".
	if decision == phrases.Ambiguous || decision == phrases.Unknown {
		keep := chatdomain.NewContext(t.session, chatdomain.CtxOrderConfirmation, map[string]any{
			chatdomain.ParamOrderID: orderID,
		})
		if hasOrderCtx && orderCtx.Has(chatdomain.ParamOrder) {
			keep.Parameters[chatdomain.ParamOrder] = orderCtx.Parameters[chatdomain.ParamOrder]
		}
		return reject(fmt.Sprintf("Xin lỗi, tôi chưa rõ ý bạn. Bạn có muốn nhận hóa đơn đơn hàng #%s qua email không? Vui lòng trả lời \"Có\" hoặc \"Không\".", orderID), keep), nil
	}

	order, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		if domain.IsNotFound(err) {
			return reject(fmt.Sprintf("Không tìm thấy đơn hàng #%s. Vui lòng liên hệ với chúng tôi qua số điện thoại %s.", orderID, e.opts.SupportContact)), nil
		}
		return reply{}, err
	}

	if decision == phrases.No {
		if err := e.closeSession(ctx, t); err != nil {
			return reply{}, err
		}
		return closed("✅ Đơn hàng đã được xác nhận!\n💌 Cảm ơn bạn đã mua hàng! Chúng tôi sẽ liên hệ sớm để xác nhận.", e.expireChain(t)...), nil
	}

	if email == "" {
		email = state.Draft.Email
	}
	if email == "" && hasOrderCtx {
		var draft domain.OrderDraft
		if err := chatdomain.DecodeValue(orderCtx.Parameters[chatdomain.ParamOrder], &draft); err == nil {
			email = draft.Email
		}
	}
	if email == "" {
		email = order.Email
	}
	if email == "" {
		return advance("📧 Vui lòng cung cấp địa chỉ email của bạn để nhận hóa đơn.",
			chatdomain.NewContext(t.session, chatdomain.CtxWaitingForEmail, map[string]any{
				chatdomain.ParamOrderID: order.ID,
			})), nil
	}

	return e.deliverInvoice(ctx, t, order, email,
		fmt.Sprintf("✅ Đơn hàng đã được xác nhận!\n📧 Hóa đơn đã được gửi đến %s.\n💌 Cảm ơn bạn đã mua hàng!", email))
}

// ============================================================
// Late email
// ============================================================

func (e *Engine) handleProvideLateEmail(ctx context.Context, t *turn) (reply, error) {
	waiting, _ := t.find(chatdomain.CtxWaitingForEmail)
	orderID := chatdomain.Params(waiting.Parameters).String(chatdomain.ParamOrderID)

	email := t.params.String(chatdomain.SlotEmail)
	if email == "" {
		email = domain.ExtractEmail(t.text)
	}
	if !domain.LooksLikeEmail(email) {
		return reject("Địa chỉ email không hợp lệ. Vui lòng cung cấp email chính xác.",
			chatdomain.NewContext(t.session, chatdomain.CtxWaitingForEmail, map[string]any{
				chatdomain.ParamOrderID: orderID,
			})), nil
	}

	order, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		if domain.IsNotFound(err) {
			return reject(fmt.Sprintf("Không tìm thấy đơn hàng #%s. Vui lòng liên hệ %s.", orderID, e.opts.SupportContact)), nil
		}
		return reply{}, err
	}

	return e.deliverInvoice(ctx, t, order, email,
		fmt.Sprintf("✅ Hóa đơn đã được gửi đến %s.\n💌 Cảm ơn bạn đã mua hàng!", email))
}

// ============================================================
// Shared closing steps
// ============================================================

// deliverInvoice stores email on the order when it changed, mails the
// invoice and closes the conversation. A failed send keeps the
// conversation open and tells the user the invoice did not go out.
func (e *Engine) deliverInvoice(ctx context.Context, t *turn, order *domain.Order, email, done string) (reply, error) {
	if order.Email != email {
		if err := e.orders.UpdateOrderEmail(ctx, order.ID, email); err != nil {
			return reply{}, err
		}
		order.Email = email
	}

	if err := e.invoices.SendInvoice(ctx, email, order); err != nil {
		e.metrics.IncrInvoice("failed")
		e.logger.Error("invoice delivery failed",
			zap.String("session", t.session),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return reply{
			text: fmt.Sprintf("⚠️ Đơn hàng #%s đã được ghi nhận nhưng không thể gửi hóa đơn đến %s. Vui lòng liên hệ %s để được hỗ trợ.",
				order.ID, email, e.opts.SupportContact),
			outcome: observability.OutcomeError,
		}, nil
	}
	e.metrics.IncrInvoice("sent")

	if err := e.closeSession(ctx, t); err != nil {
		return reply{}, err
	}
	return closed(done, e.expireChain(t)...), nil
}

func (e *Engine) closeSession(ctx context.Context, t *turn) error {
	return e.sessions.Delete(ctx, t.session)
}

// expireChain returns lifespan-0 copies of every order-chain context.
func (e *Engine) expireChain(t *turn) []chatdomain.Context {
	out := make([]chatdomain.Context, len(orderChain))
	for i, name := range orderChain {
		out[i] = chatdomain.ExpireContext(t.session, name)
	}
	return out
}
