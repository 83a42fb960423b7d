// Package service implements the dialogue engine behind POST /chatbot/chat.
//
// ============================================================
// ARCHITECTURE — transition table over replayed contexts
// ============================================================
//
// The NLU platform sends one request per utterance with the detected
// intent, the slots and the contexts still alive for the session. The
// engine keeps no conversation in memory: it rebuilds the stage from the
// contexts, looks the intent up in the transition table and runs the
// matching handler.
//
// Flow of a turn:
//  1. Handler decodes the request and calls Engine.Handle
//  2. The intent picks a transition; unknown intents use the fallback
//  3. If the transition requires an earlier context that is missing,
//     the turn stops with the transition's hard-stop reply
//  4. The handler reads slots and contexts, calls the stores and returns
//     a reply plus the contexts to set for the next turn
//  5. Any error is logged and replaced by the apology with the support
//     contact; the HTTP layer always gets a reply
//
// The session store keeps a copy of the draft order keyed by session id.
// Contexts stay the primary channel; the session copy fills in what the
// platform dropped.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/phrases"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"
	"github.com/boddenberg/shoeshop-bot-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var tracer = otel.Tracer("chat/service")

// DefaultResultLimit caps every product search so the reply stays readable.
const DefaultResultLimit = 5

// Options are the tunables of the engine.
type Options struct {
	// UserID owns every order created through the chat.
	UserID string
	// SupportContact is appended to apology replies.
	SupportContact string
	// ResultLimit caps product searches. Zero, or anything above
	// DefaultResultLimit, means DefaultResultLimit.
	ResultLimit int
}

// Engine is the slot-filling dialogue state machine.
type Engine struct {
	catalog  port.CatalogStore
	orders   port.OrderStore
	sessions port.SessionStore
	invoices port.InvoiceSender
	phrases  *phrases.Table
	metrics  *observability.Metrics
	logger   *zap.Logger
	opts     Options

	table    map[string]transition
	fallback transition
	now      func() time.Time
}

// NewEngine wires the engine to its stores.
func NewEngine(
	catalog port.CatalogStore,
	orders port.OrderStore,
	sessions port.SessionStore,
	invoices port.InvoiceSender,
	table *phrases.Table,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts Options,
) *Engine {
	if opts.ResultLimit <= 0 || opts.ResultLimit > DefaultResultLimit {
		opts.ResultLimit = DefaultResultLimit
	}
	if table == nil {
		table = phrases.Default()
	}
	e := &Engine{
		catalog:  catalog,
		orders:   orders,
		sessions: sessions,
		invoices: invoices,
		phrases:  table,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
	e.table = e.transitions()
	e.fallback = transition{intent: "default", handle: e.handleDefault}
	return e
}

// ============================================================
// Transition table
// ============================================================

// requirement names the context (and the parameter inside it) a
// transition cannot run without.
type requirement struct {
	context chatdomain.ContextName
	param   string
	missing string
}

type transition struct {
	intent   string
	requires *requirement
	handle   func(ctx context.Context, t *turn) (reply, error)
}

func (e *Engine) transitions() map[string]transition {
	selected := &requirement{
		context: chatdomain.CtxSelectedProduct,
		param:   chatdomain.ParamSelectedProduct,
		missing: "Bạn chưa chọn sản phẩm nào. Vui lòng chọn sản phẩm trước.",
	}

	list := []transition{
		{intent: chatdomain.IntentWelcome, handle: e.handleWelcome},
		{intent: chatdomain.IntentConsult, handle: e.handleConsult},
		{intent: chatdomain.IntentSearchByCategory, handle: e.handleSearchByCategory},
		{intent: chatdomain.IntentSearchByPrice, handle: e.handleSearchByPrice},
		{intent: chatdomain.IntentSearchByBrand, handle: e.handleSearchByBrand},
		{
			intent: chatdomain.IntentSelectProduct,
			requires: &requirement{
				context: chatdomain.CtxProductList,
				missing: "Không tìm thấy danh sách sản phẩm. Vui lòng tìm kiếm sản phẩm trước.",
			},
			handle: e.handleSelectProduct,
		},
		{
			intent: chatdomain.IntentSelectFilteredProduct,
			requires: &requirement{
				context: chatdomain.CtxFilteredProducts,
				param:   chatdomain.ParamFilteredProducts,
				missing: "Không tìm thấy danh sách sản phẩm đã lọc. Vui lòng tìm kiếm sản phẩm lại.",
			},
			handle: e.handleSelectFilteredProduct,
		},
		{intent: chatdomain.IntentChooseSize, requires: selected, handle: e.handleChooseSize},
		{intent: chatdomain.IntentChooseColor, requires: selected, handle: e.handleChooseColor},
		{intent: chatdomain.IntentChooseQuantity, requires: selected, handle: e.handleChooseQuantity},
		{intent: chatdomain.IntentCollectDeliveryInfo, handle: e.handleCollectDeliveryInfo},
		{intent: chatdomain.IntentChoosePaymentMethod, handle: e.handleChoosePaymentMethod},
		{intent: chatdomain.IntentConfirmOrder, handle: e.handleConfirmOrder},
		{
			intent: chatdomain.IntentProvideLateEmail,
			requires: &requirement{
				context: chatdomain.CtxWaitingForEmail,
				param:   chatdomain.ParamOrderID,
				missing: "Xin lỗi, không thể xác định đơn hàng để gửi email. Vui lòng liên hệ %s.",
			},
			handle: e.handleProvideLateEmail,
		},
	}

	table := make(map[string]transition, len(list))
	for _, tr := range list {
		table[tr.intent] = tr
	}
	return table
}

// ============================================================
// Turn handling
// ============================================================

// turn is the request of one utterance, split into what handlers read.
type turn struct {
	session  string
	text     string
	params   chatdomain.Params
	contexts chatdomain.ContextSet
	stage    chatdomain.Stage
}

func (t *turn) find(name chatdomain.ContextName) (chatdomain.Context, bool) {
	return t.contexts.Find(name)
}

// reply is a handler result.
type reply struct {
	text     string
	contexts []chatdomain.Context
	outcome  string
}

func advance(text string, contexts ...chatdomain.Context) reply {
	return reply{text: text, contexts: contexts, outcome: observability.OutcomeAdvanced}
}

func reject(text string, contexts ...chatdomain.Context) reply {
	return reply{text: text, contexts: contexts, outcome: observability.OutcomeRejected}
}

func hardStop(text string, contexts ...chatdomain.Context) reply {
	return reply{text: text, contexts: contexts, outcome: observability.OutcomeHardStop}
}

func closed(text string, contexts ...chatdomain.Context) reply {
	return reply{text: text, contexts: contexts, outcome: observability.OutcomeClosed}
}

// Handle runs one dialogue turn. It always returns a response.
func (e *Engine) Handle(ctx context.Context, req *chatdomain.WebhookRequest) *chatdomain.WebhookResponse {
	ctx, span := tracer.Start(ctx, "Engine.Handle")
	defer span.End()
	start := e.now()

	intent := req.QueryResult.Intent.DisplayName
	tr, known := e.table[intent]
	if !known {
		tr = e.fallback
	}

	t := &turn{
		session:  req.Session,
		text:     norm.NFC.String(req.QueryResult.QueryText),
		params:   req.QueryResult.Parameters,
		contexts: req.QueryResult.OutputContexts,
	}
	if t.params == nil {
		t.params = chatdomain.Params{}
	}
	t.stage = t.contexts.Stage()

	span.SetAttributes(
		attribute.String("dialogue.intent", tr.intent),
		attribute.String("dialogue.stage", t.stage.String()),
	)
	e.logger.Debug("dialogue turn parameters",
		zap.String("session", t.session),
		zap.String("intent", intent),
		zap.Any("parameters", t.params),
	)

	res := e.run(ctx, tr, t)

	span.SetAttributes(attribute.String("dialogue.outcome", res.outcome))
	e.metrics.RecordTurn(tr.intent, res.outcome, e.now().Sub(start))
	e.logger.Info("dialogue turn",
		zap.String("session", t.session),
		zap.String("intent", tr.intent),
		zap.String("stage", t.stage.String()),
		zap.String("outcome", res.outcome),
		zap.Int("contexts", len(res.contexts)),
	)

	return &chatdomain.WebhookResponse{
		FulfillmentText: res.text,
		OutputContexts:  res.contexts,
	}
}

func (e *Engine) run(ctx context.Context, tr transition, t *turn) reply {
	if req := tr.requires; req != nil {
		c, ok := t.find(req.context)
		if !ok || (req.param != "" && !c.Has(req.param)) {
			return hardStop(e.withSupport(req.missing))
		}
	}

	res, err := tr.handle(ctx, t)
	if err != nil {
		return e.apologize(t, tr.intent, err)
	}
	return res
}

// apologize logs err and turns it into the generic apology.
func (e *Engine) apologize(t *turn, intent string, err error) reply {
	service := "internal"
	var ext *domain.ErrExternalService
	var open *domain.ErrCircuitOpen
	switch {
	case errors.As(err, &ext):
		service = ext.Service
	case errors.As(err, &open):
		service = open.Service
	}
	e.metrics.IncrExternalError(service)

	e.logger.Error("dialogue turn failed",
		zap.String("session", t.session),
		zap.String("intent", intent),
		zap.String("service", service),
		zap.Error(err),
	)
	return reply{text: e.apologyText(), outcome: observability.OutcomeError}
}

func (e *Engine) apologyText() string {
	return fmt.Sprintf("Xin lỗi, đã có lỗi xảy ra. Vui lòng thử lại sau hoặc liên hệ hỗ trợ %s.", e.opts.SupportContact)
}

// withSupport fills a %s placeholder with the support contact.
func (e *Engine) withSupport(text string) string {
	if !strings.Contains(text, "%s") {
		return text
	}
	return fmt.Sprintf(text, e.opts.SupportContact)
}

// ============================================================
// Simple replies
// ============================================================

func (e *Engine) handleWelcome(context.Context, *turn) (reply, error) {
	return reply{
		text: "Xin chào! Tôi là trợ lý ảo của cửa hàng giày.\n" +
			"Tôi có thể giúp bạn:\n" +
			"1. Tư vấn sản phẩm\n" +
			"2. Tìm giày theo danh mục\n" +
			"3. Tìm giày theo giá\n" +
			"4. Tìm giày theo thương hiệu\n" +
			"Bạn cần giúp đỡ gì ạ?",
		outcome: observability.OutcomeAdvanced,
	}, nil
}

func (e *Engine) handleDefault(context.Context, *turn) (reply, error) {
	return reject("Xin lỗi, tôi không hiểu yêu cầu của bạn. Vui lòng thử lại hoặc hỏi theo cách khác."), nil
}
