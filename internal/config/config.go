package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds application level configuration loaded from environment variables.
// Every component receives it explicitly at construction time; nothing reads
// the environment on its own.
type Config struct {
	ServerPort string
	MySQLDSN   string
	RedisAddr  string
	RedisDB    int
	RedisPass  string

	// SpaceRemit API credentials. Live and test keys are separate pairs;
	// TestMode selects which pair signs outbound requests.
	APIBaseURL    string
	LiveSecretKey string
	LivePublicKey string
	TestSecretKey string
	TestPublicKey string
	TestMode      bool

	// Webhook signature policy. An empty secret skips verification unless
	// WebhookRequireSignature forces unsigned webhooks to be rejected.
	WebhookSecret           string
	WebhookRequireSignature bool

	// StoreBaseURL is the storefront the browser return paths redirect to.
	StoreBaseURL string

	// Admin API
	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
	SwaggerHost       string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		MySQLDSN:   getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:    getEnvInt("REDIS_DB", 0),
		RedisPass:  os.Getenv("REDIS_PASSWORD"),

		APIBaseURL:    getEnv("SPACEREMIT_API_URL", "https://spaceremit.com/apiinfo-v2"),
		LiveSecretKey: os.Getenv("SPACEREMIT_LIVE_SECRET_KEY"),
		LivePublicKey: os.Getenv("SPACEREMIT_LIVE_PUBLIC_KEY"),
		TestSecretKey: os.Getenv("SPACEREMIT_TEST_SECRET_KEY"),
		TestPublicKey: os.Getenv("SPACEREMIT_TEST_PUBLIC_KEY"),
		TestMode:      getEnvBool("SPACEREMIT_TEST_MODE", false),

		WebhookSecret:           os.Getenv("WEBHOOK_SECRET"),
		WebhookRequireSignature: getEnvBool("WEBHOOK_REQUIRE_SIGNATURE", false),

		StoreBaseURL: getEnv("STORE_BASE_URL", "http://localhost:3000"),

		JWTSecret:         getEnv("JWT_SECRET", "change-me"),
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		SwaggerHost:       os.Getenv("SWAGGER_HOST"),
	}
}

// ServerKey returns the secret key for the active mode.
func (c *Config) ServerKey() string {
	if c.TestMode {
		return c.TestSecretKey
	}
	return c.LiveSecretKey
}

// PublicKey returns the public key for the active mode.
func (c *Config) PublicKey() string {
	if c.TestMode {
		return c.TestPublicKey
	}
	return c.LivePublicKey
}

// OrderReceivedURL is the storefront thank-you page for an order.
func (c *Config) OrderReceivedURL(orderID uint64, orderKey string) string {
	return fmt.Sprintf("%s/order-received/%d?key=%s", c.StoreBaseURL, orderID, orderKey)
}

// OrderCancelURL is the storefront cancel page for an order.
func (c *Config) OrderCancelURL(orderID uint64) string {
	return fmt.Sprintf("%s/order/%d/cancel", c.StoreBaseURL, orderID)
}

// OrderPaymentURL is the storefront payment page, used while a payment is
// still pending or processing.
func (c *Config) OrderPaymentURL(orderID uint64) string {
	return fmt.Sprintf("%s/order/%d/pay", c.StoreBaseURL, orderID)
}

// CheckoutURL is the storefront checkout page, the safe fallback when an
// order cannot be resolved.
func (c *Config) CheckoutURL() string {
	return c.StoreBaseURL + "/checkout"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}
