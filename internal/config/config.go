package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `validate:"required"`
	JWTSecret   string `validate:"required"`
	MongoURI    string `validate:"required"`
	DBName      string `validate:"required"`
	SkipAuth    bool
	Environment string `validate:"oneof=development staging production"`
	AppId       string

	// Secrets codec key for tenant credentials and webhook auth values
	EncryptionKey string `validate:"required"`

	Scheduler SchedulerConfig
	Source    SourceConfig
	Webhook   WebhookConfig
	Guard     GuardConfig
	Catalog   CatalogConfig
	SMTP      SMTPConfig
	Kafka     KafkaConfig

	LogRetentionDays int    `validate:"gte=1"`
	DashboardURL     string // used for links in alerts and emails
}

type SchedulerConfig struct {
	Interval      time.Duration `validate:"gte=1s"`
	MaxConcurrent int           `validate:"gte=1"`
	RunTimeout    time.Duration `validate:"gt=0"`
}

type SourceConfig struct {
	MaxAttempts        int           `validate:"gte=1"`
	BaseDelay          time.Duration `validate:"gte=0"`
	Timeout            time.Duration `validate:"gt=0"`
	ReconcileBatchSize int           `validate:"gte=1"`
}

type WebhookConfig struct {
	DefaultMaxRetries int           `validate:"gte=0,lte=10"`
	DefaultRetryDelay time.Duration `validate:"gte=0"`
	DefaultTimeout    time.Duration `validate:"gt=0"`
}

type GuardConfig struct {
	Backend       string        `validate:"oneof=memory redis"`
	TTL           time.Duration `validate:"gt=0"`
	RedisAddr     string        `validate:"required_if=Backend redis"`
	RedisPassword string
	RedisDB       int
}

type CatalogConfig struct {
	Backend     string `validate:"oneof=mongo postgres"`
	PostgresDSN string `validate:"required_if=Backend postgres"`
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether outbound email is configured
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:        getEnv("DB_NAME", "catalog-sync"),
		SkipAuth:      getEnvBool("SKIP_AUTH", false),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AppId:         getEnv("APP_ID", "catalog-sync"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		Scheduler: SchedulerConfig{
			Interval:      getEnvDuration("SCHEDULER_INTERVAL", 60*time.Second),
			MaxConcurrent: getEnvInt("SCHEDULER_MAX_CONCURRENT", 10),
			RunTimeout:    getEnvDuration("RUN_TIMEOUT", 15*time.Minute),
		},
		Source: SourceConfig{
			MaxAttempts:        getEnvInt("SOURCE_MAX_ATTEMPTS", 3),
			BaseDelay:          getEnvDuration("SOURCE_BASE_DELAY", 2*time.Second),
			Timeout:            getEnvDuration("SOURCE_TIMEOUT", 30*time.Second),
			ReconcileBatchSize: getEnvInt("RECONCILE_BATCH_SIZE", 5),
		},
		Webhook: WebhookConfig{
			DefaultMaxRetries: getEnvInt("WEBHOOK_DEFAULT_MAX_RETRIES", 3),
			DefaultRetryDelay: getEnvDuration("WEBHOOK_DEFAULT_RETRY_DELAY", time.Second),
			DefaultTimeout:    getEnvDuration("WEBHOOK_DEFAULT_TIMEOUT", 10*time.Second),
		},
		Guard: GuardConfig{
			Backend:       getEnv("GUARD_BACKEND", "memory"),
			TTL:           getEnvDuration("GUARD_TTL", 30*time.Minute),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Catalog: CatalogConfig{
			Backend:     getEnv("CATALOG_BACKEND", "mongo"),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "catalog-sync.outcomes"),
		},
		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 90),
		DashboardURL:     getEnv("DASHBOARD_URL", "http://localhost:3000"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints on the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs with production defaults
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Invalid duration for %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
