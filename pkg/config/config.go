package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	LogLevel    string

	ServerPort int

	DatabaseURL     string
	RunMigrations   bool
	JWTAccessSecret []byte

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	TaxServiceURL string
	TaxAPIKey     string
	TaxTimeout    time.Duration

	PaymentGatewayURL string
	PaymentAPIKey     string
	PaymentTimeout    time.Duration
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", ""),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RunMigrations:   EnvBoolDefault("RUN_MIGRATIONS", true),
		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		TaxServiceURL: os.Getenv("TAX_SERVICE_URL"),
		TaxAPIKey:     os.Getenv("TAX_API_KEY"),
		TaxTimeout:    EnvDurationDefault("TAX_TIMEOUT", 5*time.Second),

		PaymentGatewayURL: os.Getenv("PAYMENT_GATEWAY_URL"),
		PaymentAPIKey:     os.Getenv("PAYMENT_API_KEY"),
		PaymentTimeout:    EnvDurationDefault("PAYMENT_TIMEOUT", 15*time.Second),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
