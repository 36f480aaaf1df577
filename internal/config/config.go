// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Env           string
	PublicBaseURL string
	APIKey        string
	Database      DatabaseConfig
	Redis         RedisConfig
	Server        ServerConfig
	Logging       LoggingConfig
	CORS          CORSConfig
	JWT           JWTConfig
	Session       SessionConfig
	Google        GoogleOAuthConfig
	SMTP          SMTPConfig
	SendGrid      SendGridConfig
	Supabase      SupabaseConfig
	Bunny         BunnyConfig
	QPay          QPayConfig
	Byl           BylConfig
	Payments      PaymentsConfig
	Rollbar       RollbarConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SessionConfig holds settings of the OAuth session cookie
type SessionConfig struct {
	Secret string
	Secure bool
}

// GoogleOAuthConfig holds Google OAuth client settings
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// FrontendRedirectURL is where the browser lands after a successful OAuth login
	FrontendRedirectURL string
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendGridConfig holds SendGrid API settings. Empty APIKey means SMTP is used.
type SendGridConfig struct {
	APIKey   string
	FromName string
}

// SupabaseConfig holds Supabase Storage settings used for images
type SupabaseConfig struct {
	URL    string
	Key    string
	Bucket string
}

// BunnyConfig holds Bunny Stream settings used for lesson videos
type BunnyConfig struct {
	LibraryID    string
	APIKey       string
	TicketExpiry time.Duration
}

// QPayConfig holds QPay merchant API settings
type QPayConfig struct {
	BaseURL     string
	Username    string
	Password    string
	InvoiceCode string
}

// BylConfig holds Byl API settings
type BylConfig struct {
	BaseURL    string
	ProjectID  string
	Token      string
	HookSecret string
}

// PaymentsConfig holds payment reconciliation settings
type PaymentsConfig struct {
	ExpiryWindow             time.Duration
	BankTransferExpiryWindow time.Duration
	SweepSchedule            string
	SkipWebhookSignature     bool
}

// RollbarConfig holds Rollbar error reporting settings. Empty Token disables reporting.
type RollbarConfig struct {
	Token string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	cfg.Env = getEnvDefault("APP_ENV", "production")
	cfg.PublicBaseURL = strings.TrimRight(getEnvDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/")
	cfg.APIKey = os.Getenv("API_KEY")

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPort, err := getEnvInt("DB_PORT", 0)
	if err != nil {
		return nil, err
	}
	if dbPort == 0 {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}

	cfg.Logging.Level = getEnvDefault("LOG_LEVEL", "info")

	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	if cfg.JWT.AccessTokenExpiry, err = getEnvDuration("JWT_ACCESS_TOKEN_EXPIRY", time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWT.RefreshTokenExpiry, err = getEnvDuration("JWT_REFRESH_TOKEN_EXPIRY", 7*24*time.Hour); err != nil {
		return nil, err
	}

	// Session cookie falls back to the JWT secret
	cfg.Session.Secret = getEnvDefault("SESSION_SECRET", jwtSecret)
	cfg.Session.Secure = cfg.Env != "development"

	cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.Google.RedirectURL = getEnvDefault("GOOGLE_REDIRECT_URL", cfg.PublicBaseURL+"/api/v1/auth/google/callback")
	cfg.Google.FrontendRedirectURL = getEnvDefault("FRONTEND_URL", "/")

	// Redis configuration
	cfg.Redis.Host = getEnvDefault("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = getEnvInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// Email configuration
	cfg.SMTP.Host = getEnvDefault("SMTP_HOST", "localhost")
	if cfg.SMTP.Port, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = getEnvDefault("SMTP_FROM", "noreply@onlinecourse.mn")
	cfg.SendGrid.APIKey = os.Getenv("SENDGRID_API_KEY")
	cfg.SendGrid.FromName = getEnvDefault("SENDGRID_FROM_NAME", "Online Course")

	// Media hosting
	cfg.Supabase.URL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	cfg.Supabase.Key = os.Getenv("SUPABASE_KEY")
	cfg.Supabase.Bucket = getEnvDefault("SUPABASE_BUCKET", "uploads")

	cfg.Bunny.LibraryID = os.Getenv("BUNNY_LIBRARY_ID")
	cfg.Bunny.APIKey = os.Getenv("BUNNY_API_KEY")
	if cfg.Bunny.TicketExpiry, err = getEnvDuration("BUNNY_TICKET_EXPIRY", time.Hour); err != nil {
		return nil, err
	}

	// Payment providers
	cfg.QPay.BaseURL = strings.TrimRight(getEnvDefault("QPAY_BASE_URL", "https://merchant.qpay.mn"), "/")
	cfg.QPay.Username = os.Getenv("QPAY_USERNAME")
	cfg.QPay.Password = os.Getenv("QPAY_PASSWORD")
	cfg.QPay.InvoiceCode = os.Getenv("QPAY_INVOICE_CODE")

	cfg.Byl.BaseURL = strings.TrimRight(getEnvDefault("BYL_BASE_URL", "https://byl.mn"), "/")
	cfg.Byl.ProjectID = os.Getenv("BYL_PROJECT_ID")
	cfg.Byl.Token = os.Getenv("BYL_TOKEN")
	cfg.Byl.HookSecret = os.Getenv("BYL_HOOK_SECRET")

	if cfg.Payments.ExpiryWindow, err = getEnvDuration("PAYMENT_EXPIRY_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Payments.BankTransferExpiryWindow, err = getEnvDuration("BANK_TRANSFER_EXPIRY_WINDOW", 72*time.Hour); err != nil {
		return nil, err
	}
	cfg.Payments.SweepSchedule = getEnvDefault("PAYMENT_SWEEP_SCHEDULE", "@every 1m")
	// The bypass is only honoured in development
	cfg.Payments.SkipWebhookSignature = cfg.Env == "development" && os.Getenv("WEBHOOK_SKIP_SIGNATURE") == "true"

	cfg.Rollbar.Token = os.Getenv("ROLLBAR_TOKEN")

	return cfg, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true&clientFoundRows=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// RedisAddr returns the Redis address in host:port form
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// WebhookSkipRequested reports whether signature skipping was requested outside development
func WebhookSkipRequested(cfg *Config) bool {
	return cfg.Env != "development" && os.Getenv("WEBHOOK_SKIP_SIGNATURE") == "true"
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseOrigins parses comma-separated origins, defaulting to allow all
func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
