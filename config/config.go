package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string
	Port               string
	GoEnv              string
	Auth0Domain        string
	Auth0Audience      string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	LogLevel           string
	CORSAllowedOrigins []string

	// Payment gateway
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	Currency          string

	// Email collaborator
	EmailServiceURL string
	EmailAPIKey     string
	EmailFrom       string

	// Booking rules
	ServiceTimezone string
	OrderTxTimeout  time.Duration
	SignupBonus     decimal.Decimal
	ReferralBonus   decimal.Decimal

	// Notification fan-out
	NotificationWorkers   int
	NotificationQueueSize int

	// Shared secret for the scheduled threshold sweep trigger
	CronSecret string
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// In production the environment is set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	signupBonus, err := getEnvDecimal("SIGNUP_BONUS", "100")
	if err != nil {
		return nil, err
	}
	referralBonus, err := getEnvDecimal("REFERRAL_BONUS", "50")
	if err != nil {
		return nil, err
	}

	config := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		Port:                  getEnv("PORT", "8080"),
		GoEnv:                 getEnv("GO_ENV", "development"),
		Auth0Domain:           getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:         getEnv("AUTH0_AUDIENCE", ""),
		AWSRegion:             getEnv("AWS_REGION", "ap-south-1"),
		AWSS3Bucket:           getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RazorpayKeyID:         getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
		Currency:              getEnv("CURRENCY", "INR"),
		EmailServiceURL:       getEnv("EMAIL_SERVICE_URL", ""),
		EmailAPIKey:           getEnv("EMAIL_API_KEY", ""),
		EmailFrom:             getEnv("EMAIL_FROM", "no-reply@homeservices.local"),
		ServiceTimezone:       getEnv("SERVICE_TIMEZONE", "Asia/Kolkata"),
		OrderTxTimeout:        getEnvDuration("ORDER_TX_TIMEOUT", 10*time.Second),
		SignupBonus:           signupBonus,
		ReferralBonus:         referralBonus,
		NotificationWorkers:   getEnvInt("NOTIFICATION_WORKERS", 4),
		NotificationQueueSize: getEnvInt("NOTIFICATION_QUEUE_SIZE", 100),
		CronSecret:            getEnv("CRON_SECRET", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := time.LoadLocation(c.ServiceTimezone); err != nil {
		return fmt.Errorf("SERVICE_TIMEZONE %q is invalid: %w", c.ServiceTimezone, err)
	}
	if c.OrderTxTimeout <= 0 {
		return fmt.Errorf("ORDER_TX_TIMEOUT must be positive")
	}
	if c.NotificationWorkers <= 0 || c.NotificationQueueSize <= 0 {
		return fmt.Errorf("NOTIFICATION_WORKERS and NOTIFICATION_QUEUE_SIZE must be positive")
	}
	if c.SignupBonus.IsNegative() || c.ReferralBonus.IsNegative() {
		return fmt.Errorf("SIGNUP_BONUS and REFERRAL_BONUS cannot be negative")
	}
	if c.IsProduction() && c.RazorpayKeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_SECRET is required in production")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// Location returns the timezone service slots are expressed in.
// Validate guarantees the zone loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ServiceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetConfig returns the configuration produced by the last successful Load
func GetConfig() *Config {
	return appConfig
}

// SetConfig replaces the active configuration (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// getEnv retrieves an environment variable or returns a default value
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
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s (%q), using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using default %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnv(key, defaultValue)
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
