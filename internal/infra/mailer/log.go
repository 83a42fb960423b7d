package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
)

// LogMailer records messages instead of delivering them. It backs local
// runs and the end-to-end tests.
type LogMailer struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []domain.EmailMessage
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg domain.EmailMessage) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("mailer: message logged, not delivered",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("htmlBytes", len(msg.HTML)),
	)
	return nil
}

// Sent returns a copy of every message passed to Send.
func (m *LogMailer) Sent() []domain.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EmailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
