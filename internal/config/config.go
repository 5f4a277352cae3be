package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Auth behaviour (OTP, refresh token list, password hashing)
	Auth AuthConfig

	// SMS delivery (Twilio)
	SMS SMSConfig

	// Outbound email (SendGrid)
	Email EmailConfig

	// Push notifications (FCM)
	Push PushConfig

	// Object storage for uploads (S3)
	Storage StorageConfig

	// Scheduled housekeeping jobs
	Cron CronConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string
	Environment    string // development, staging, production
	LogLevel       string // debug, info, warn, error
	RequestTimeout time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// AuthConfig holds OTP and session behaviour
type AuthConfig struct {
	OTPLength        int
	OTPExpiryMinutes int
	OTPMaxAttempts   int
	RefreshTokenCap  int // max refresh tokens kept per user (multi-device)
	BcryptCost       int
}

// SMSConfig holds Twilio SMS configuration
type SMSConfig struct {
	Mode       string // "dev" returns the OTP in the response, "production" sends real SMS
	AccountSID string
	AuthToken  string
	FromNumber string
}

// EmailConfig holds SendGrid configuration
type EmailConfig struct {
	Mode      string // "dev" logs instead of sending
	APIKey    string
	FromEmail string
	FromName  string
}

// PushConfig holds FCM push gateway configuration
type PushConfig struct {
	Mode      string // "dev" logs instead of sending
	Endpoint  string
	ServerKey string
}

// StorageConfig holds S3 upload configuration
type StorageConfig struct {
	Bucket        string
	Region        string
	PublicBaseURL string
	MaxUploadMB   int
}

// CronConfig holds scheduler configuration
type CronConfig struct {
	Enabled                bool
	Timezone               string
	ApartmentIdleThreshold time.Duration // deactivate apartments idle longer than this
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			RequestTimeout: time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 2592000)) * time.Second,
		},
		Auth: AuthConfig{
			OTPLength:        getEnvAsInt("OTP_LENGTH", 6),
			OTPExpiryMinutes: getEnvAsInt("OTP_EXPIRY_MINUTES", 5),
			OTPMaxAttempts:   getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
			RefreshTokenCap:  getEnvAsInt("REFRESH_TOKEN_CAP", 5),
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
		},
		SMS: SMSConfig{
			Mode:       getEnv("SMS_MODE", "dev"),
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Email: EmailConfig{
			Mode:      getEnv("EMAIL_MODE", "dev"),
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM_ADDRESS", "noreply@smartresidence.app"),
			FromName:  getEnv("EMAIL_FROM_NAME", "SmartResidence"),
		},
		Push: PushConfig{
			Mode:      getEnv("PUSH_MODE", "dev"),
			Endpoint:  getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
			ServerKey: getEnv("FCM_SERVER_KEY", ""),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("S3_BUCKET", ""),
			Region:        getEnv("S3_REGION", "ap-south-1"),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
			MaxUploadMB:   getEnvAsInt("UPLOAD_MAX_MB", 10),
		},
		Cron: CronConfig{
			Enabled:                getEnvAsBool("CRON_ENABLED", true),
			Timezone:               getEnv("CRON_TIMEZONE", "Asia/Colombo"),
			ApartmentIdleThreshold: time.Duration(getEnvAsInt("APARTMENT_IDLE_THRESHOLD_DAYS", 90)) * 24 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.Auth.RefreshTokenCap < 1 {
		return fmt.Errorf("REFRESH_TOKEN_CAP must be at least 1")
	}

	if _, err := time.LoadLocation(c.Cron.Timezone); err != nil {
		return fmt.Errorf("invalid CRON_TIMEZONE %q: %w", c.Cron.Timezone, err)
	}

	// External gateways only have to be configured in production mode
	if c.SMS.Mode == "production" {
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required in production SMS mode")
		}
		if c.SMS.FromNumber == "" {
			return fmt.Errorf("TWILIO_FROM_NUMBER is required in production SMS mode")
		}
	}

	if c.Email.Mode == "production" && c.Email.APIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is required in production email mode")
	}

	if c.Push.Mode == "production" && c.Push.ServerKey == "" {
		return fmt.Errorf("FCM_SERVER_KEY is required in production push mode")
	}

	if c.Server.Environment == "production" && c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required in production")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
