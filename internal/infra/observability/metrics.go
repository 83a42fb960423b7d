package observability

import (
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Turn outcomes recorded per dialogue turn.
const (
	OutcomeAdvanced = "advanced"  // a context was emitted, the dialogue moved on
	OutcomeRejected = "rejected"  // corrective reply, state unchanged
	OutcomeHardStop = "hard_stop" // required earlier context missing
	OutcomeError    = "error"     // store/mail failure turned into an apology
	OutcomeClosed   = "closed"    // conversation finished
)

var outcomes = []string{OutcomeAdvanced, OutcomeRejected, OutcomeHardStop, OutcomeError, OutcomeClosed}

// Metrics holds all Prometheus metrics for the webhook.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	ordersCreated  prometheus.Counter
	invoicesTotal  *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbot_turns_total",
				Help: "Dialogue turns handled, by intent and outcome.",
			},
			[]string{"intent", "outcome"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopbot_turn_duration_seconds",
				Help:    "Duration of dialogue turns by intent.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"intent"},
		),
		ordersCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shopbot_orders_created_total",
				Help: "Orders persisted from the chat flow.",
			},
		),
		invoicesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbot_invoices_total",
				Help: "Invoice emails by delivery status.",
			},
			[]string{"status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbot_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbot_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbot_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordTurn counts one dialogue turn and observes its duration.
func (m *Metrics) RecordTurn(intent, outcome string, d time.Duration) {
	m.turnsTotal.WithLabelValues(intent, outcome).Inc()
	m.turnDuration.WithLabelValues(intent).Observe(d.Seconds())
}

// IncrOrderCreated counts a persisted order.
func (m *Metrics) IncrOrderCreated() {
	m.ordersCreated.Inc()
}

// IncrInvoice counts an invoice attempt; status is "sent" or "failed".
func (m *Metrics) IncrInvoice(status string) {
	m.invoicesTotal.WithLabelValues(status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetDialogueSnapshot returns a summary suitable for the
// GET /v1/metrics/dialogue endpoint.
func (m *Metrics) GetDialogueSnapshot() *domain.DialogueMetrics {
	// Prometheus counters expose cumulative values; sum the label
	// combinations that have been observed.
	byOutcome := make(map[string]int64, len(outcomes))
	var total float64
	for _, outcome := range outcomes {
		v := sumCounterVec(m.turnsTotal, map[string]string{"outcome": outcome})
		byOutcome[outcome] = int64(v)
		total += v
	}

	errorRate := float64(0)
	if total > 0 {
		errorRate = float64(byOutcome[OutcomeError]) / total
	}

	hits := sumCounterVec(m.cacheHits, nil)
	misses := sumCounterVec(m.cacheMisses, nil)
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.DialogueMetrics{
		TotalTurns:     int64(total),
		TurnsByOutcome: byOutcome,
		OrdersCreated:  int64(getCounterValue(m.ordersCreated)),
		InvoicesSent:   int64(getCounterValue(m.invoicesTotal.WithLabelValues("sent"))),
		InvoicesFailed: int64(getCounterValue(m.invoicesTotal.WithLabelValues("failed"))),
		ErrorRate:      errorRate,
		CacheHitRate:   cacheHitRate,
		Period:         "all_time",
	}
}

// getCounterValue extracts the current float64 value of a counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every child of cv whose labels include match.
func sumCounterVec(cv *prometheus.CounterVec, match map[string]string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var sum float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		if labelsMatch(m.GetLabel(), match) {
			sum += m.Counter.GetValue()
		}
	}
	return sum
}

func labelsMatch(pairs []*dto.LabelPair, match map[string]string) bool {
	for name, want := range match {
		found := false
		for _, p := range pairs {
			if p.GetName() == name && p.GetValue() == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
