// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
)

// Auth modes.
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Moderation providers.
const (
	ModerationNone      = "none"
	ModerationOpenAI    = "openai"
	ModerationAnthropic = "anthropic"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Document store
	StoreBackend   string
	MongoURI       string
	MongoDatabase  string
	MongoUsername  string
	MongoPassword  string
	FirebaseCreds  string
	FirebaseProjID string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Auth settings
	AuthMode  string
	JWTSecret string

	// Live query snapshot cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// Read surfaces
	NotificationLimit int
	MessagePageLimit  int

	// Moderation
	ModerationProvider string
	AnthropicAPIKey    string
	OpenAIAPIKey       string
	ModerationModel    string

	// Push
	PushEnabled bool

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS
	CORSOrigins []string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),

		// Document store
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "community"),
		MongoUsername:  getEnv("MONGO_USERNAME", ""),
		MongoPassword:  getEnv("MONGO_PASSWORD", ""),
		FirebaseCreds:  getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseProjID: getEnv("FIREBASE_PROJECT_ID", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Auth
		AuthMode:  strings.ToLower(getEnv("AUTH_MODE", AuthJWT)),
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Snapshot cache
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SnapshotTTL:   getDurationEnv("SNAPSHOT_TTL", 10*time.Minute),

		// Read surfaces
		NotificationLimit: getIntEnv("NOTIFICATION_LIMIT", 50),
		MessagePageLimit:  getIntEnv("MESSAGE_PAGE_LIMIT", 200),

		// Moderation
		ModerationProvider: strings.ToLower(getEnv("MODERATION_PROVIDER", ModerationNone)),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		ModerationModel:    getEnv("MODERATION_MODEL", ""),

		// Push
		PushEnabled: getBoolEnv("PUSH_ENABLED", false),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// CORS
		CORSOrigins: getListEnv("CORS_ORIGINS", []string{"https://*", "http://*"}),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
