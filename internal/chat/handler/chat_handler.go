// Package handler implements the fulfillment webhook route
// POST /chatbot/chat, the entry point of the shoe-shop chatbot.
//
// ============================================================
// CONTRACT WITH THE NLU PLATFORM
// ============================================================
//
// Request:  {"session": "...", "queryResult": {"intent": {...}, "parameters": {...}, "outputContexts": [...]}}
// Response: {"fulfillmentText": "...", "outputContexts": [...]}
//
// The platform shows fulfillmentText to the user as-is, so every dialogue
// failure is already a reply text by the time it reaches this layer. Only a
// body that cannot be decoded is answered with a non-200 status.
package handler

import (
	"encoding/json"
	"net/http"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chat/handler")

// maxBodyBytes bounds the webhook body; real requests are a few KB.
const maxBodyBytes = 1 << 20

// ============================================================
// WebhookHandler — POST /chatbot/chat
// ============================================================

// WebhookHandler returns the http.HandlerFunc for POST /chatbot/chat.
// The handler is thin: decode, delegate to the engine, encode.
func WebhookHandler(engine port.DialogueEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /chatbot/chat")
		defer span.End()

		var req chatdomain.WebhookRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			logger.Warn("webhook: invalid body", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid request body: expected a fulfillment request")
			return
		}
		if req.QueryResult.Parameters == nil {
			req.QueryResult.Parameters = chatdomain.Params{}
		}

		span.SetAttributes(
			attribute.String("chat.session", req.Session),
			attribute.String("chat.intent", req.QueryResult.Intent.DisplayName),
		)

		resp := engine.Handle(ctx, &req)
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
