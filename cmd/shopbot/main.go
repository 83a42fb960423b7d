package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/chat/phrases"
	chatservice "github.com/boddenberg/shoeshop-bot-go/internal/chat/service"
	"github.com/boddenberg/shoeshop-bot-go/internal/config"
	"github.com/boddenberg/shoeshop-bot-go/internal/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/handler"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/cache"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/firestore"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/mailer"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/memory"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/mongodb"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/observability"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/session"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/supabase"
	"github.com/boddenberg/shoeshop-bot-go/internal/invoice"
	"github.com/boddenberg/shoeshop-bot-go/internal/port"
	"github.com/boddenberg/shoeshop-bot-go/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.String("mail_backend", cfg.MailBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)
	if cfg.UsesPlaceholderUser() {
		logger.Warn("chat orders are bound to the shared placeholder customer; set CHAT_ORDER_USER_ID",
			zap.String("user_id", cfg.ChatOrderUserID),
		)
	}

	// --- Tracing ---
	shutdown := observability.NoopTracer()
	if cfg.TracingEnabled {
		var err error
		shutdown, err = observability.InitTracer(cfg.OTLPEndpoint, "shoeshop-bot")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Stores ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var (
		catalogStore port.CatalogStore
		orderStore   port.OrderStore
		checkers     []port.HealthChecker
	)

	switch cfg.StoreBackend {
	case "supabase":
		if cfg.SupabaseURL == "" {
			logger.Fatal("STORE_BACKEND=supabase requires SUPABASE_URL")
		}
		logger.Info("using Supabase as catalog/order backend", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey,
			resilience.NewGuard("supabase", resilienceCfg), logger)
		catalog := supabase.NewCatalogStore(client)
		catalogStore = catalog
		orderStore = supabase.NewOrderStore(client, catalog)
		checkers = append(checkers, client)

	case "firestore":
		if cfg.FirestoreProjectID == "" {
			logger.Fatal("STORE_BACKEND=firestore requires FIRESTORE_PROJECT_ID")
		}
		logger.Info("using Firestore as catalog/order backend", zap.String("project_id", cfg.FirestoreProjectID))
		store, err := firestore.NewStore(context.Background(), cfg.FirestoreProjectID,
			resilience.NewGuard("firestore", resilienceCfg), logger)
		if err != nil {
			logger.Fatal("failed to create firestore client", zap.Error(err))
		}
		defer store.Close()
		catalogStore = store
		orderStore = store
		checkers = append(checkers, store)

	case "mongodb":
		if cfg.MongoURI == "" {
			logger.Fatal("STORE_BACKEND=mongodb requires MONGODB_URI")
		}
		logger.Info("using MongoDB as catalog/order backend", zap.String("database", cfg.MongoDatabase))
		store, err := mongodb.NewStore(context.Background(), cfg.MongoURI, cfg.MongoDatabase,
			resilience.NewGuard("mongodb", resilienceCfg), logger)
		if err != nil {
			logger.Fatal("failed to create mongodb client", zap.Error(err))
		}
		defer store.Close(context.Background())
		catalogStore = store
		orderStore = store
		checkers = append(checkers, store)

	default:
		logger.Info("using in-memory demo catalog")
		categories, products := memory.DemoCatalog()
		catalog := memory.NewCatalogStore(categories, products)
		catalogStore = catalog
		orderStore = memory.NewOrderStore(catalog)
		checkers = append(checkers, catalog)
	}

	// --- Cache ---
	categoryCache := cache.New[[]domain.Category](cfg.CacheTTL)
	defer categoryCache.Close()
	catalog := service.NewCachedCatalog(catalogStore, categoryCache, metrics, logger)

	// --- Sessions ---
	var sessions port.SessionStore
	switch cfg.SessionBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		store := session.NewRedisStore(rdb, cfg.SessionTTL, logger)
		sessions = store
		checkers = append(checkers, store)
		logger.Info("using Redis session store", zap.String("addr", cfg.RedisAddr))
	default:
		store := session.NewMemoryStore(cfg.SessionTTL)
		defer store.Close()
		sessions = store
	}

	// --- Mail ---
	var mail port.Mailer
	switch cfg.MailBackend {
	case "smtp":
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		}, resilience.NewGuard("smtp", resilienceCfg), logger)
		logger.Info("using SMTP mail transport", zap.String("host", cfg.SMTPHost))
	default:
		mail = mailer.NewLogMailer(logger)
		logger.Warn("invoice emails are logged, not sent; set MAIL_BACKEND=smtp")
	}
	notifier := invoice.NewNotifier(invoice.NewRenderer(cfg.SupportContact, cfg.MailFrom), mail, logger)

	// --- Dialogue ---
	table := phrases.Default()
	if cfg.PhrasesFile != "" {
		loaded, err := phrases.Load(cfg.PhrasesFile)
		if err != nil {
			logger.Fatal("failed to load phrases", zap.String("path", cfg.PhrasesFile), zap.Error(err))
		}
		table = loaded
	}

	engine := chatservice.NewEngine(catalog, orderStore, sessions, notifier, table, metrics, logger, chatservice.Options{
		UserID:         cfg.ChatOrderUserID,
		SupportContact: cfg.SupportContact,
		ResultLimit:    cfg.SearchResultLimit,
	})

	// --- Router ---
	auth := handler.AuthConfig{
		JWTSecret:         []byte(cfg.WebhookJWTSecret),
		BasicUser:         cfg.WebhookBasicUser,
		BasicPasswordHash: cfg.WebhookBasicPasswordHash,
	}
	if !auth.Enabled() {
		logger.Warn("webhook auth disabled; set WEBHOOK_JWT_SECRET or WEBHOOK_BASIC_USER")
	}
	router := handler.NewRouter(engine, checkers, auth, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
