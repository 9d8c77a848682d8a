package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string
	LogFile string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SNSRegion                 string
	SNSPlatformApplicationARN string // empty disables push delivery
	SNSTopicPrefix            string
	PushTimeout               time.Duration

	RedisURL     string // empty keeps realtime delivery process-local
	RedisChannel string

	NATSURL     string // empty disables event intake
	NATSSubject string

	RecipientCacheTTL time.Duration
	DeviceRateLimit   float64
	DeviceRateBurst   int
	TrustProxy        bool // take the client address from X-Forwarded-For / X-Real-Ip

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Notifications       string
	DeviceRegistrations string
	Users               string
}

// IsProduction reports whether the service runs with production logging defaults.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),
		LogFile: getEnv("LOG_FILE", "logs/notify.log"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Notifications:       getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			DeviceRegistrations: getEnv("DYNAMO_TABLE_DEVICE_REGISTRATIONS", "device_registrations"),
			Users:               getEnv("DYNAMO_TABLE_USERS", "users"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),

		SNSRegion:                 getEnv("SNS_REGION", "us-east-1"),
		SNSPlatformApplicationARN: getEnv("SNS_PLATFORM_APPLICATION_ARN", ""),
		SNSTopicPrefix:            getEnv("SNS_TOPIC_PREFIX", "elearning-"),
		PushTimeout:               getEnvDuration("PUSH_TIMEOUT", 10*time.Second),

		RedisURL:     getEnv("REDIS_URL", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "realtime:emits"),

		NATSURL:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "notify.events.>"),

		RecipientCacheTTL: getEnvDuration("RECIPIENT_CACHE_TTL", time.Minute),
		DeviceRateLimit:   getEnvFloat("DEVICE_RATE_LIMIT", 2),
		DeviceRateBurst:   getEnvInt("DEVICE_RATE_BURST", 5),
		TrustProxy:        getEnvBool("TRUST_PROXY", false),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

// getEnvDuration accepts Go duration strings ("30s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
