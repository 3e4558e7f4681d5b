package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration loaded from environment
// variables. It is resolved once in main and passed down explicitly.
type Config struct {
	Env      string
	HTTPAddr string

	StorageMode string // "memory" or "mongo"
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string
	CalendarTTL   time.Duration

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	PaymentProvider   string
	PaystackSecretKey string
	PaystackBaseURL   string
	StripeSecretKey   string
	StripeWebhookKey  string
	StripeBaseURL     string
	StripeTolerance   time.Duration

	MailerBaseURL string
	MailerAPIKey  string
	MailerFrom    string

	BookingRequestTTL time.Duration
	ExpirySweepEvery  time.Duration
	DefaultPrepDays   int
	SearchHorizonDays int
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		StorageMode:       strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "shortstay"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KafkaTopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", ""),
		PaymentProvider:   strings.ToLower(getEnv("PAYMENT_PROVIDER", "paystack")),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookKey:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeBaseURL:     getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		MailerBaseURL:     getEnv("MAILER_BASE_URL", ""),
		MailerAPIKey:      os.Getenv("MAILER_API_KEY"),
		MailerFrom:        getEnv("MAILER_FROM", "bookings@shortstay.app"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.CalendarTTL, err = parseDurationEnv("CALENDAR_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.StripeTolerance, err = parseDurationEnv("STRIPE_SIGNATURE_TOLERANCE", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.BookingRequestTTL, err = parseDurationEnv("BOOKING_REQUEST_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ExpirySweepEvery, err = parseDurationEnv("EXPIRY_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DefaultPrepDays, err = parseIntEnv("DEFAULT_PREP_DAYS", 0); err != nil {
		return Config{}, err
	}
	if cfg.SearchHorizonDays, err = parseIntEnv("SEARCH_HORIZON_DAYS", 365); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.StorageMode == "mongo" && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
	}
	switch cfg.PaymentProvider {
	case "paystack", "stripe":
	default:
		return Config{}, fmt.Errorf("invalid PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
