// Package port defines the interface the webhook handler depends on.
//
// The handler only needs something that turns one fulfillment request
// into one fulfillment response; the dialogue engine implements it and
// tests substitute a stub.
package port

import (
	"context"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
)

// DialogueEngine handles one webhook turn. It never fails: every error is
// turned into a reply text.
type DialogueEngine interface {
	Handle(ctx context.Context, req *chatdomain.WebhookRequest) *chatdomain.WebhookResponse
}
