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
	Server   ServerConfig
	Backend  BackendConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Checkout CheckoutConfig
	Orders   OrdersConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type CheckoutConfig struct {
	TaxRate float64
}

type OrdersConfig struct {
	PageSize        int
	RefreshInterval time.Duration
}

type PaymentConfig struct {
	MinLatency time.Duration
	MaxLatency time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	backendTimeout, _ := strconv.Atoi(getEnv("BACKEND_TIMEOUT_SECONDS", "15"))
	taxRate, _ := strconv.ParseFloat(getEnv("CHECKOUT_TAX_RATE", "0.15"), 64)
	pageSize, _ := strconv.Atoi(getEnv("ORDERS_PAGE_SIZE", "10"))
	refreshSecs, _ := strconv.Atoi(getEnv("ORDERS_REFRESH_SECONDS", "0"))
	minLatencyMs, _ := strconv.Atoi(getEnv("PAYMENT_MIN_LATENCY_MS", "500"))
	maxLatencyMs, _ := strconv.Atoi(getEnv("PAYMENT_MAX_LATENCY_MS", "2000"))
	kafkaEnabled, _ := strconv.ParseBool(getEnv("KAFKA_ENABLED", "false"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:5000/api"),
			Timeout: time.Duration(backendTimeout) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Enabled: kafkaEnabled,
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC_STORE_EVENTS", "storefront-events"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Checkout: CheckoutConfig{
			TaxRate: taxRate,
		},
		Orders: OrdersConfig{
			PageSize:        pageSize,
			RefreshInterval: time.Duration(refreshSecs) * time.Second,
		},
		Payment: PaymentConfig{
			MinLatency: time.Duration(minLatencyMs) * time.Millisecond,
			MaxLatency: time.Duration(maxLatencyMs) * time.Millisecond,
		},
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
