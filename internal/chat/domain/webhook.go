// Package domain defines the wire types of the NLU fulfillment webhook and
// the conversation contexts that carry dialogue state between turns.
//
// ============================================================
// HOW STATE TRAVELS
// ============================================================
//
// The NLU platform (Dialogflow ES) calls POST /chatbot/chat once per user
// utterance. Each request carries the detected intent, the extracted slot
// parameters, the raw utterance and every context that is still alive for
// the session. The webhook answers with a reply text and, when the dialogue
// advances, the contexts to set for the next turn. The platform stores them
// and decrements their lifespan every turn, so the server reconstructs the
// conversation from the request alone.
package domain

// ============================================================
// Webhook — request/response exchanged with the NLU platform
// ============================================================

// WebhookRequest is the fulfillment request body.
type WebhookRequest struct {
	ResponseID  string      `json:"responseId,omitempty"`
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

// QueryResult holds what the platform understood from the utterance.
type QueryResult struct {
	QueryText      string     `json:"queryText"`
	Parameters     Params     `json:"parameters"`
	Intent         Intent     `json:"intent"`
	OutputContexts ContextSet `json:"outputContexts"`
	LanguageCode   string     `json:"languageCode,omitempty"`
}

// Intent is the matched intent; only DisplayName drives the dialogue.
type Intent struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// WebhookResponse is the fulfillment response body.
type WebhookResponse struct {
	FulfillmentText string    `json:"fulfillmentText"`
	OutputContexts  []Context `json:"outputContexts,omitempty"`
}
