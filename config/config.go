package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	BaseURL     string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PayMongo configuration
	PayMongo PayMongoConfig

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUUID         string

	// Revenue configuration (amounts in centavos)
	PlatformFeePercent int64
	MinPayoutAmount    int64

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

type PayMongoConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PayMongo
		PayMongo: PayMongoConfig{
			SecretKey:     getEnv("PAYMONGO_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYMONGO_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("PAYMONGO_BASE_URL", "https://api.paymongo.com/v1"),
			Timeout:       getEnvAsDuration("PAYMONGO_TIMEOUT", "10s"),
		},

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "event-marketplace-server"),

		// Revenue
		PlatformFeePercent: int64(getEnvAsInt("PLATFORM_FEE_PERCENT", 5)),
		MinPayoutAmount:    int64(getEnvAsInt("MIN_PAYOUT_AMOUNT", 1000)),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
