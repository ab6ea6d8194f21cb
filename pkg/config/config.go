package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	StorageDriver string
	DatabaseURL   string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string
	StorageBucket              string

	AuthProvider      string
	JWTSecret         string
	JWTExpiry         int64
	SessionCookieName string

	CatalogProvider string
	CatalogBaseURL  string
	CatalogTimeout  time.Duration

	EscrowAcceptWindow     time.Duration
	TradeWindow            time.Duration
	SweepInterval          time.Duration
	TradeTimeoutEscalation bool
	CurrencyScale          int32

	SSEHeartbeat      time.Duration
	ChatRatePerMinute int
	AttachmentExpiry  time.Duration

	RealtimePGBridge bool
	OTLPEndpoint     string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		StorageDriver: getEnv("STORAGE_DRIVER", "memory"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StorageBucket:              getEnv("STORAGE_BUCKET", ""),

		AuthProvider:      getEnv("AUTH_PROVIDER", "jwt"),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:         getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "session"),

		CatalogProvider: getEnv("CATALOG_PROVIDER", "memory"),
		CatalogBaseURL:  getEnv("CATALOG_BASE_URL", ""),
		CatalogTimeout:  getEnvAsDuration("CATALOG_TIMEOUT", 5*time.Second),

		EscrowAcceptWindow:     getEnvAsDuration("ESCROW_ACCEPT_WINDOW", 24*time.Hour),
		TradeWindow:            getEnvAsDuration("TRADE_WINDOW", 72*time.Hour),
		SweepInterval:          getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
		TradeTimeoutEscalation: getEnvAsBool("TRADE_TIMEOUT_ESCALATION", true),
		CurrencyScale:          int32(getEnvAsInt64("CURRENCY_SCALE", 2)),

		SSEHeartbeat:      getEnvAsDuration("SSE_HEARTBEAT", 25*time.Second),
		ChatRatePerMinute: int(getEnvAsInt64("CHAT_RATE_PER_MINUTE", 30)),
		AttachmentExpiry:  getEnvAsDuration("ATTACHMENT_URL_EXPIRY", 15*time.Minute),

		RealtimePGBridge: getEnvAsBool("REALTIME_PG_BRIDGE", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// Accepts Go duration strings ("90s", "24h").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
