package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"seminarbuchung/internal/cache"
	"seminarbuchung/internal/database"
	"seminarbuchung/internal/external"
	"seminarbuchung/internal/messaging"
	"seminarbuchung/internal/pricing"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// Performance monitoring
	PprofEnabled bool
	PprofPort    string

	Database database.Config

	NATSEnabled bool
	NATS        messaging.Config

	ValkeyEnabled bool
	Valkey        cache.Config

	ElasticsearchEnabled bool
	Elasticsearch        ElasticsearchConfig

	Pricing pricing.Config
	PayPal  external.PayPalConfig

	RateLimit RateLimitConfig
	Admin     AdminConfig
	Reconcile ReconcileConfig
}

// RateLimitConfig is a token bucket per client ip and route for public POST routes
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

type AdminConfig struct {
	User     string
	Password string
}

// ReconcileConfig drives the capture reconciliation job in cmd/consumers
type ReconcileConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
}

// Load загружает конфигурацию из .env и переменных окружения
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		PprofEnabled: getEnvBool("PPROF_ENABLED", false),
		PprofPort:    getEnv("PPROF_PORT", "6060"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "seminar"),
			Password:           getEnv("DB_PASSWORD", "seminar"),
			DBName:             getEnv("DB_NAME", "seminarbuchung"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATSEnabled: getEnvBool("NATS_ENABLED", true),
		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "seminarbuchung"),
			ClientID:  getEnv("NATS_CLIENT_ID", "seminar-api"),
		},

		ValkeyEnabled: getEnvBool("VALKEY_ENABLED", true),
		Valkey: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			DB:       getEnvInt("VALKEY_DB", 0),
		},

		ElasticsearchEnabled: getEnvBool("ELASTICSEARCH_ENABLED", false),
		Elasticsearch:        LoadElasticsearchConfig(),

		Pricing: pricing.Config{
			DefaultVATRate:   getEnvFloat("VAT_DEFAULT_RATE", 19),
			PricesIncludeVAT: getEnvBool("PRICES_INCLUDE_VAT", true),
		},

		PayPal: external.PayPalConfig{
			Mode:         getEnv("PAYPAL_MODE", external.PayPalModeSandbox),
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: getEnv("PAYPAL_CLIENT_SECRET", os.Getenv("PAYPAL_SECRET")),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
			BaseURL:      os.Getenv("PAYPAL_BASE_URL"),
			Timeout:      time.Duration(getEnvInt("PAYPAL_TIMEOUT_SEC", 15)) * time.Second,
		},

		RateLimit: loadRateLimit(),

		Admin: AdminConfig{
			User:     os.Getenv("ADMIN_USER"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},

		Reconcile: ReconcileConfig{
			Interval:  time.Duration(getEnvInt("RECONCILE_INTERVAL_SEC", 300)) * time.Second,
			MinAge:    time.Duration(getEnvInt("RECONCILE_MIN_AGE_MIN", 10)) * time.Minute,
			BatchSize: getEnvInt("RECONCILE_BATCH_SIZE", 50),
		},
	}
}

func loadRateLimit() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
		Capacity:       getEnvInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   getEnvInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: time.Duration(getEnvInt("RATE_LIMIT_REFILL_INTERVAL_MS", 2000)) * time.Millisecond,
		TTL:            time.Duration(getEnvInt("RATE_LIMIT_TTL_SEC", 600)) * time.Second,
		Prefix:         getEnv("RATE_LIMIT_PREFIX", "rl"),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
