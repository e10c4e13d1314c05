package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	// Shared secret the telephony provider sends on every webhook delivery.
	WebhookSecret string

	GeminiAPIKey string
	GeminiModel  string

	SMSProviderURL string
	SMSAPIKey      string

	LinksServiceURL string
	LinksAPIKey     string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueue       string
	AsynqConcurrency int

	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	RecordingBucket       string
	RecordingMaxSizeBytes int64

	EmailEnabled  bool
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	EmailFrom     string
	EmailFromName string

	// Calls stuck in-progress longer than this are swept to missed.
	StaleCallMaxAge time.Duration

	WebhookRateLimit float64
	WebhookRateBurst int
}

// Load reads configuration from the environment (.env honored in development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		SMSProviderURL: getEnv("SMS_PROVIDER_URL", ""),
		SMSAPIKey:      getEnv("SMS_API_KEY", ""),

		LinksServiceURL: getEnv("LINKS_SERVICE_URL", ""),
		LinksAPIKey:     getEnv("LINKS_API_KEY", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: boolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueue:       getEnv("ASYNQ_QUEUE", "callops"),
		AsynqConcurrency: intEnv("ASYNQ_CONCURRENCY", 10),

		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           boolEnv("MINIO_USE_SSL", false),
		RecordingBucket:       getEnv("MINIO_BUCKET_RECORDINGS", "call-recordings"),
		RecordingMaxSizeBytes: int64Env("RECORDING_MAX_SIZE_BYTES", 200*1024*1024),

		EmailEnabled:  boolEnv("EMAIL_ENABLED", false),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      intEnv("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "CallOps"),

		StaleCallMaxAge: durationEnv("STALE_CALL_MAX_AGE", 4*time.Hour),

		WebhookRateLimit: floatEnv("WEBHOOK_RATE_LIMIT", 50),
		WebhookRateBurst: intEnv("WEBHOOK_RATE_BURST", 100),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if cfg.EmailEnabled && (cfg.SMTPHost == "" || cfg.EmailFrom == "") {
		return nil, fmt.Errorf("SMTP_HOST and EMAIL_FROM_ADDRESS are required when EMAIL_ENABLED is true")
	}

	return cfg, nil
}

// Interface-segregated getters: consumers depend on the subset they need.

func (c *Config) GetEnv() string { return c.Env }

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }

func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetStaleCallMaxAge() time.Duration { return c.StaleCallMaxAge }

func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetRecordingBucket() string { return c.RecordingBucket }
func (c *Config) GetRecordingMaxSizeBytes() int64 { return c.RecordingMaxSizeBytes }
func (c *Config) IsMinIOEnabled() bool      { return c.MinIOEndpoint != "" }

func (c *Config) GetSMSProviderURL() string { return c.SMSProviderURL }
func (c *Config) GetSMSAPIKey() string      { return c.SMSAPIKey }

func (c *Config) GetLinksServiceURL() string { return c.LinksServiceURL }
func (c *Config) GetLinksAPIKey() string     { return c.LinksAPIKey }

func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string  { return c.GeminiModel }

func (c *Config) IsEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetEmailFrom() string       { return c.EmailFrom }
func (c *Config) GetEmailFromName() string   { return c.EmailFromName }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

func intEnv(key string, fallback int) int {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func int64Env(key string, fallback int64) int64 {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
