package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultChatOrderUserID is the customer id stamped on every order created
// through the chatbot. The webhook carries no authenticated identity, so all
// chat orders belong to this account unless CHAT_ORDER_USER_ID binds them to
// a real one.
const DefaultChatOrderUserID = "65ae3051ed28e2cc2cf25b8c"

// DefaultSupportContact is appended to every apology reply.
const DefaultSupportContact = "0382385129"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint   string
	TracingEnabled bool

	// Catalog / order backend: memory, supabase, firestore or mongodb
	StoreBackend string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Firestore
	FirestoreProjectID string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Session fallback store: memory or redis
	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Mail: log or smtp
	MailBackend  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	// Dialogue
	ChatOrderUserID   string
	SupportContact    string
	SearchResultLimit int
	PhrasesFile       string // optional YAML override for the keyword tables

	// Webhook auth (both optional; webhook is open when neither is set)
	WebhookJWTSecret         string
	WebhookBasicUser         string
	WebhookBasicPasswordHash string // bcrypt
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 20),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),

		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "shoeshop"),

		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),

		MailBackend:  strings.ToLower(getEnv("MAIL_BACKEND", "log")),
		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", ""),
		MailFromName: getEnv("MAIL_FROM_NAME", "Cửa hàng giày"),

		ChatOrderUserID:   getEnv("CHAT_ORDER_USER_ID", DefaultChatOrderUserID),
		SupportContact:    getEnv("SUPPORT_CONTACT", DefaultSupportContact),
		SearchResultLimit: getEnvInt("SEARCH_RESULT_LIMIT", 5),
		PhrasesFile:       getEnv("PHRASES_FILE", ""),

		WebhookJWTSecret:         getEnv("WEBHOOK_JWT_SECRET", ""),
		WebhookBasicUser:         getEnv("WEBHOOK_BASIC_USER", ""),
		WebhookBasicPasswordHash: getEnv("WEBHOOK_BASIC_PASSWORD_HASH", ""),
	}
}

// UsesPlaceholderUser reports whether chat orders are bound to the shared
// placeholder customer instead of a configured one.
func (c *Config) UsesPlaceholderUser() bool {
	return c.ChatOrderUserID == DefaultChatOrderUserID
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
