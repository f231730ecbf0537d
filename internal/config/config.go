package config

import (
	"os"
	"time"
)

const (
	// How long an assigned amount stays claimable before the session expires
	SessionTTL = 600 * time.Second

	// Centavo offsets available above each tier's base amount
	AmountPoolSize = 100

	// Notified amounts below this (centavos) are gateway test traffic
	MinWebhookAmount int64 = 100

	// How long a subscription purchase blocks repurchase/downgrade
	TierLockDuration = 30 * 24 * time.Hour

	// Standardized date format for consistency across all components
	DateTimeFormat = "2006-01-02T15:04:05.000Z"
)

type Config struct {
	Port            string
	DatabaseURL     string
	RedisAddr       string
	GatewayURL      string
	GatewayAPIKey   string
	WebhookSecret   string
	TokenSecret     string
	StaticQRPayload string
}

func Load() Config {
	return Config{
		Port:            getEnv("PORT", "9999"),
		DatabaseURL:     getEnv("DATABASE_URL", "postgres://localhost:5432/centavo?sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		GatewayURL:      os.Getenv("PAYMENT_GATEWAY_URL"),
		GatewayAPIKey:   os.Getenv("PAYMENT_GATEWAY_API_KEY"),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		TokenSecret:     os.Getenv("TOKEN_SECRET"),
		StaticQRPayload: os.Getenv("PIX_STATIC_PAYLOAD"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
