package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	Database   DatabaseConfig
	JWT        JWTConfig
	OTP        OTPConfig
	Aggregator AggregatorConfig
	Sweeper    SweeperConfig
	RabbitMQ   RabbitMQConfig
	RateLimit  RateLimitConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

// AggregatorConfig holds the recharge provider credentials. Timeout applies to every call.
type AggregatorConfig struct {
	BaseURL       string
	PartnerID     string
	AuthorisedKey string
	JWTKey        string
	Timeout       time.Duration
}

type SweeperConfig struct {
	Interval    time.Duration
	BatchSize   int
	ReviewAfter time.Duration
}

// RabbitMQConfig is optional; an empty URL disables settlement events.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, using environment and defaults")
	}

	return Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DB_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		OTP: OTPConfig{
			TTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
			MaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 5),
		},
		Aggregator: AggregatorConfig{
			BaseURL:       getEnv("AGGREGATOR_BASE_URL", "https://sit.paysprint.in/service-api/api/v1/service"),
			PartnerID:     os.Getenv("AGGREGATOR_PARTNER_ID"),
			AuthorisedKey: os.Getenv("AGGREGATOR_AUTHORISED_KEY"),
			JWTKey:        os.Getenv("AGGREGATOR_JWT_KEY"),
			Timeout:       getEnvDuration("AGGREGATOR_TIMEOUT", 15*time.Second),
		},
		Sweeper: SweeperConfig{
			Interval:    getEnvDuration("SWEEP_INTERVAL", time.Minute),
			BatchSize:   getEnvInt("SWEEP_BATCH_SIZE", 50),
			ReviewAfter: getEnvDuration("REVIEW_AFTER", 24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        os.Getenv("RABBITMQ_URL"),
			Exchange:   getEnv("RABBITMQ_EXCHANGE", "wallet.recharges"),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", "wallet.recharges.settled"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst: getEnvInt("RATE_LIMIT_BURST", 20),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		log.Printf("invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
