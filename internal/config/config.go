package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DSN           string
	MigrationsDir string
	HTTPPort      string
	Username      string
	Password      string

	KafkaBrokers []string
	FeedGroupID  string
	FeedTopic    string
	AlertTopic   string

	EmailBridgeURL string

	DedupePath      string
	DedupeRetention time.Duration

	SentinelInterval time.Duration
	OutboxInterval   time.Duration
	CacheInterval    time.Duration
}

func LoadConfig() *Config {
	// Missing .env is fine, env vars may come from the environment itself.
	_ = godotenv.Load()

	brokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	return &Config{
		DSN:           getEnv("APP_DSN", "host=localhost user=postgres password=postgres dbname=coldchain sslmode=disable"),
		MigrationsDir: getEnv("APP_MIGRATIONS", "migrations"),
		HTTPPort:      getEnv("APP_PORT", "9000"),
		Username:      getEnv("APP_USER", "admin"),
		Password:      getEnv("APP_PASS", "secret"),

		KafkaBrokers: strings.Split(brokersStr, ","),
		FeedGroupID:  getEnv("KAFKA_FEED_GROUP_ID", "coldchain-feed"),
		FeedTopic:    getEnv("KAFKA_FEED_TOPIC", "temperature-readings"),
		AlertTopic:   getEnv("KAFKA_ALERT_TOPIC", "temperature-alerts"),

		EmailBridgeURL: getEnv("EMAIL_BRIDGE_URL", "http://localhost:5001/send-alert"),

		DedupePath:      getEnv("DEDUPE_PATH", "notifications.json"),
		DedupeRetention: getEnvDuration("DEDUPE_RETENTION", 30*24*time.Hour),

		SentinelInterval: getEnvDuration("SENTINEL_INTERVAL", 5*time.Second),
		OutboxInterval:   getEnvDuration("OUTBOX_INTERVAL", 2*time.Second),
		CacheInterval:    getEnvDuration("CACHE_INTERVAL", 10*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}
