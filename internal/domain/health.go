package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz and GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual backend.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	Error       string `json:"error,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// DialogueMetrics is returned by GET /v1/metrics/dialogue.
type DialogueMetrics struct {
	TotalTurns     int64            `json:"totalTurns"`
	TurnsByOutcome map[string]int64 `json:"turnsByOutcome"`
	OrdersCreated  int64            `json:"ordersCreated"`
	InvoicesSent   int64            `json:"invoicesSent"`
	InvoicesFailed int64            `json:"invoicesFailed"`
	ErrorRate      float64          `json:"errorRate"`
	CacheHitRate   float64          `json:"cacheHitRate"`
	Period         string           `json:"period"`
}
