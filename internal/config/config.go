// Package config loads the process configuration into an explicit struct.
// Components never read the environment themselves.
package config

import (
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	HTTPAddr     string
	PostgresURL  string
	RedisAddr    string
	KafkaBrokers []string
	EventsTopic  string
	OTLPEndpoint string

	ProcessorBaseURL       string
	ProcessorKeyID         string
	ProcessorKeySecret     string
	ProcessorWebhookSecret string
	InternalWebhookSecret  string

	DefaultCurrency string
	FrontendURL     string

	// TestEndpointsEnabled turns on the simulate endpoint and unsigned manual
	// confirmations. Never enable in production.
	TestEndpointsEnabled bool
}

func Load() Config {
	cfg := Config{
		HTTPAddr:               env("HTTP_ADDR", ":5000"),
		PostgresURL:            env("PG_URL", ""),
		RedisAddr:              env("REDIS_ADDR", ""),
		EventsTopic:            env("EVENTS_TOPIC", "payment.events"),
		OTLPEndpoint:           env("OTLP_ENDPOINT", "http://localhost:4318"),
		ProcessorBaseURL:       env("RAZORPAY_BASE_URL", ""),
		ProcessorKeyID:         env("RAZORPAY_KEY_ID", ""),
		ProcessorKeySecret:     env("RAZORPAY_KEY_SECRET", ""),
		ProcessorWebhookSecret: env("RAZORPAY_WEBHOOK_SECRET", ""),
		InternalWebhookSecret:  env("WEBHOOK_SECRET", ""),
		DefaultCurrency:        env("DEFAULT_CURRENCY", "INR"),
		FrontendURL:            env("FRONTEND_URL", "http://localhost:3000"),
		TestEndpointsEnabled:   env("TEST_ENDPOINTS_ENABLED", "") == "true",
	}
	if brokers := env("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	// the processor reuses the API secret for webhooks unless a dedicated
	// secret is configured
	if cfg.ProcessorWebhookSecret == "" {
		cfg.ProcessorWebhookSecret = cfg.ProcessorKeySecret
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
