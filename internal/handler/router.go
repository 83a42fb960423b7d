package handler

import (
	"context"
	"net/http"
	"time"

	chathandler "github.com/boddenberg/shoeshop-bot-go/internal/chat/handler"
	chatport "github.com/boddenberg/shoeshop-bot-go/internal/chat/port"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"
	"github.com/boddenberg/shoeshop-bot-go/internal/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// healthTimeout bounds one round of backend pings.
const healthTimeout = 2 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
// engine may be nil in tests that only exercise the operational endpoints.
func NewRouter(
	engine chatport.DialogueEngine,
	checkers []port.HealthChecker,
	auth AuthConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(checkers, logger))
	r.Get("/readyz", readyzHandler(checkers, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/v1/metrics/dialogue", dialogueMetricsHandler(metrics))

	// =============================================
	// 💬 Fulfillment webhook
	// POST /chatbot/chat
	// =============================================
	if engine != nil {
		r.Group(func(r chi.Router) {
			r.Use(WebhookAuthMiddleware(auth, logger))
			r.Post("/chatbot/chat", chathandler.WebhookHandler(engine, logger))
		})
	}

	return r
}

// ============================================================
// Health & metrics
// ============================================================

// healthzHandler is the liveness probe: it always answers 200 and reports
// unreachable backends as degraded.
func healthzHandler(checkers []port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checkHealth(r.Context(), checkers, logger)
		writeJSON(w, http.StatusOK, status)
	}
}

// readyzHandler is the readiness probe: 503 while any backend is down.
func readyzHandler(checkers []port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checkHealth(r.Context(), checkers, logger)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
			status.Status = "unhealthy"
		}
		writeJSON(w, code, status)
	}
}

func checkHealth(ctx context.Context, checkers []port.HealthChecker, logger *zap.Logger) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	now := time.Now().Format(time.RFC3339)
	services := make([]domain.ServiceHealth, len(checkers)+1)
	services[0] = domain.ServiceHealth{Name: "shopbot-api", Status: "healthy", LastChecked: now}

	var g errgroup.Group
	for i, c := range checkers {
		i, c := i, c
		g.Go(func() error {
			start := time.Now()
			err := c.Ping(ctx)
			s := domain.ServiceHealth{
				Name:        c.Name(),
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				logger.Warn("health check failed", zap.String("service", c.Name()), zap.Error(err))
				s.Status = "degraded"
				s.Error = err.Error()
			}
			services[i+1] = s
			return nil
		})
	}
	g.Wait()

	overall := "healthy"
	for _, s := range services {
		if s.Status != "healthy" {
			overall = "degraded"
			break
		}
	}
	return domain.HealthStatus{Status: overall, Services: services}
}

func dialogueMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetDialogueSnapshot())
	}
}
