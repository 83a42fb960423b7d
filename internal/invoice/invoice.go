// Package invoice renders the HTML receipt of a chat order and mails it.
package invoice

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/port"
	"github.com/boddenberg/shoeshop-bot-go/internal/pricing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("invoice")

//go:embed invoice.html.tmpl
var invoiceTemplate string

// DefaultSupportEmail is printed in the invoice footer.
const DefaultSupportEmail = "support@shoesstore.com"

// view is everything the template prints, already formatted.
type view struct {
	OrderID         string
	Recipient       string
	Date            string
	Address         string
	PaymentMethod   string
	ProductName     string
	Size            string
	Color           string
	UnitPrice       string
	Quantity        int
	LineTotal       string
	DiscountPercent string
	DiscountAmount  string
	Total           string
	SupportPhone    string
	SupportEmail    string
}

// Renderer turns an order into the invoice HTML.
type Renderer struct {
	tmpl         *template.Template
	supportPhone string
	supportEmail string
	now          func() time.Time
}

// NewRenderer parses the embedded template.
func NewRenderer(supportPhone, supportEmail string) *Renderer {
	if supportEmail == "" {
		supportEmail = DefaultSupportEmail
	}
	return &Renderer{
		tmpl:         template.Must(template.New("invoice").Parse(invoiceTemplate)),
		supportPhone: supportPhone,
		supportEmail: supportEmail,
		now:          time.Now,
	}
}

// WithClock fixes the invoice date; used by tests.
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	r.now = now
	return r
}

// ErrNoLines is returned for an order without product lines.
var ErrNoLines = errors.New("invoice: order has no product lines")

// Render builds the invoice for the first line of order. product is the
// catalog product of that line; its list price and discount are shown,
// while totals come from the order itself.
func (r *Renderer) Render(order *domain.Order, product domain.Product) (string, error) {
	line, ok := order.FirstLine()
	if !ok {
		return "", ErrNoLines
	}

	listPrice := product.Price
	if listPrice == 0 {
		listPrice = line.Price
	}
	percent := pricing.DiscountPercent(product.Discount)
	quantity := line.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	lineTotal := line.Price * float64(quantity)
	total := order.TotalAmount
	if total == 0 {
		total = lineTotal
	}

	v := view{
		OrderID:         order.ID,
		Recipient:       orDefault(order.RecipientName, "Quý khách"),
		Date:            r.now().Format("02/01/2006 15:04"),
		Address:         orDefault(order.ShippingAddress, domain.AddressNotProvided),
		PaymentMethod:   string(order.PaymentMethod),
		ProductName:     orDefault(product.Name, "Sản phẩm"),
		Size:            orDefault(line.Size, domain.UnknownVariant),
		Color:           orDefault(line.Color, domain.UnknownVariant),
		UnitPrice:       pricing.FormatVND(listPrice),
		Quantity:        quantity,
		LineTotal:       pricing.FormatVND(lineTotal),
		DiscountPercent: pricing.FormatPercent(percent),
		DiscountAmount:  pricing.FormatVND(listPrice * percent / 100),
		Total:           pricing.FormatVND(total),
		SupportPhone:    r.supportPhone,
		SupportEmail:    r.supportEmail,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return buf.String(), nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// ============================================================
// Notifier
// ============================================================

// Notifier renders invoices and hands them to a Mailer. Delivery errors
// are returned so the caller can tell the user the invoice was not sent.
type Notifier struct {
	renderer *Renderer
	mailer   port.Mailer
	logger   *zap.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(renderer *Renderer, mailer port.Mailer, logger *zap.Logger) *Notifier {
	return &Notifier{renderer: renderer, mailer: mailer, logger: logger}
}

// SendInvoice mails the invoice of order to the given address. The order
// must come from OrderStore.GetOrder so its line product is populated.
func (n *Notifier) SendInvoice(ctx context.Context, to string, order *domain.Order) error {
	ctx, span := tracer.Start(ctx, "Notifier.SendInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID))

	if !strings.Contains(to, "@") {
		return &domain.ErrValidation{Field: "email", Message: "Email không hợp lệ"}
	}

	line, ok := order.FirstLine()
	if !ok {
		return ErrNoLines
	}
	product := domain.Product{ID: line.ProductID}
	if line.Product != nil {
		product = *line.Product
	}

	html, err := n.renderer.Render(order, product)
	if err != nil {
		return err
	}

	msg := domain.EmailMessage{To: to, Subject: domain.InvoiceSubject, HTML: html}
	if err := n.mailer.Send(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send invoice for order %s: %w", order.ID, err)
	}

	n.logger.Info("invoice sent",
		zap.String("order_id", order.ID),
		zap.String("to", to),
	)
	return nil
}
