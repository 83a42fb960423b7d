// Package infra holds the outbound side of the chat module: a client that
// plays the NLU platform and posts fulfillment requests to a running
// webhook.
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("chat/infra")

// ============================================================
// WebhookClient — POST {baseURL}/chatbot/chat
// ============================================================

// WebhookClient calls the fulfillment webhook the way the NLU platform
// does. Turns are not idempotent (a payment turn creates an order), so
// every call goes through guard.Write and is sent once.
type WebhookClient struct {
	httpClient *http.Client
	baseURL    string
	authHeader string
	guard      *resilience.Guard
}

// NewWebhookClient creates the client. baseURL is the server root, without
// /chatbot/chat.
func NewWebhookClient(httpClient *http.Client, baseURL string, guard *resilience.Guard) *WebhookClient {
	return &WebhookClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		guard:      guard,
	}
}

// WithBearer sets a bearer token on every request.
func (c *WebhookClient) WithBearer(token string) *WebhookClient {
	if token != "" {
		c.authHeader = "Bearer " + token
	}
	return c
}

// WithBasicAuth sets basic credentials on every request.
func (c *WebhookClient) WithBasicAuth(user, password string) *WebhookClient {
	if user != "" {
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth(user, password)
		c.authHeader = req.Header.Get("Authorization")
	}
	return c
}

// Send posts one turn and decodes the reply.
func (c *WebhookClient) Send(ctx context.Context, req *chatdomain.WebhookRequest) (*chatdomain.WebhookResponse, error) {
	ctx, span := tracer.Start(ctx, "WebhookClient.Send")
	defer span.End()
	span.SetAttributes(attribute.String("chat.intent", req.QueryResult.Intent.DisplayName))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request: %w", err)
	}

	var out chatdomain.WebhookResponse
	err = c.guard.Write(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chatbot/chat", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create http request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.authHeader != "" {
			httpReq.Header.Set("Authorization", c.authHeader)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http call to webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return &domain.ErrUnauthorized{Message: "webhook rejected the credentials"}
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
