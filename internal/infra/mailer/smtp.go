// Package mailer implements port.Mailer: an SMTP transport for real
// delivery and a log-only transport for local runs.
package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"
)

var tracer = otel.Tracer("mailer")

// ErrNotConfigured is returned when SMTP credentials are missing.
var ErrNotConfigured = errors.New("mail transport not configured: SMTP_USERNAME and SMTP_PASSWORD are required")

// SMTPConfig holds the transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends HTML mail through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	guard  *resilience.Guard
	logger *zap.Logger
	send   sendFunc
	now    func() time.Time
}

// NewSMTPMailer creates an SMTP mailer. Sends are never retried: a second
// attempt after a timeout may deliver the invoice twice.
func NewSMTPMailer(cfg SMTPConfig, guard *resilience.Guard, logger *zap.Logger) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg, guard: guard, logger: logger, send: smtp.SendMail, now: time.Now}
}

// Send delivers msg or returns the transport error.
func (m *SMTPMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	ctx, span := tracer.Start(ctx, "SMTP.Send")
	defer span.End()

	if m.cfg.Username == "" || m.cfg.Password == "" {
		m.logger.Error("mailer: smtp credentials missing")
		return ErrNotConfigured
	}

	body, err := buildMessage(m.cfg.From, m.cfg.FromName, msg, m.now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	m.logger.Info("mailer: sending", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	err = m.guard.Write(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return m.send(addr, auth, m.cfg.From, []string{msg.To}, body)
	})
	if err != nil {
		m.logger.Error("mailer: send failed", zap.String("to", msg.To), zap.Error(err))
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return open
		}
		return &domain.ErrExternalService{Service: "smtp", Err: err}
	}

	m.logger.Info("mailer: sent", zap.String("to", msg.To))
	return nil
}

// buildMessage assembles an RFC 5322 message with a base64 HTML body.
func buildMessage(from, fromName string, msg domain.EmailMessage, date time.Time) ([]byte, error) {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return nil, &domain.ErrValidation{Field: "to", Message: err.Error()}
	}

	sender := (&mail.Address{Name: fromName, Address: from}).String()
	html := msg.HTML
	if html == "" {
		html = "<p>Không có nội dung hóa đơn.</p>"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", sender)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(html))
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded + "\r\n")

	return buf.Bytes(), nil
}
