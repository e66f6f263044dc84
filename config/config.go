package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
)

const secretPrefix = "storefront/"

// Config holds all configuration for the storefront API.
type Config struct {
	Port string
	Env  string

	Postgres PostgresConfig
	RedisURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	OTP OTPConfig

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string

	S3Bucket        string
	S3PublicBaseURL string
	ImageUploadTTL  time.Duration
	MaxImageBytes   int64

	SMTP   SMTPConfig
	Twilio TwilioConfig

	OrderTopicARN        string
	NotificationQueueURL string

	CloudWatchEnabled     bool
	CloudWatchNamespace   string
	CloudWatchLogsEnabled bool
	CloudWatchLogGroup    string

	AllowedOrigins []string
	AdminEmail     string
	AdminPassword  string
	RequestTimeout time.Duration
}

type PostgresConfig struct {
	User     string
	Password string
	DB       string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
}

// DSN returns the libpq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode, p.TimeZone,
	)
}

type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	Length         int
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether outbound email is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Enabled reports whether outbound SMS is configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// LoadConfig reads configuration from the environment (and .env when present)
// with an optional Secrets Manager override.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()

	if getEnvBool("AWS_USE_SECRETS", false) {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		if err := ApplySecrets(ctx, cfg, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults only.
func FromEnv() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("APP_ENV", "development"),
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DB:       os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		OTP: OTPConfig{
			TTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
			ResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", time.Minute),
			MaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
			Length:         getEnvInt("OTP_LENGTH", 6),
		},

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            strings.ToLower(getEnv("CURRENCY", "usd")),

		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		ImageUploadTTL:  getEnvDuration("IMAGE_UPLOAD_TTL", 15*time.Minute),
		MaxImageBytes:   int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20)),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},

		OrderTopicARN:        os.Getenv("SNS_ORDER_TOPIC_ARN"),
		NotificationQueueURL: os.Getenv("NOTIFICATION_QUEUE_URL"),

		CloudWatchEnabled:     getEnvBool("CLOUDWATCH_ENABLED", false),
		CloudWatchNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),
		CloudWatchLogsEnabled: getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
		CloudWatchLogGroup:    getEnv("CLOUDWATCH_LOG_GROUP", "/storefront/api"),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// ApplySecrets overrides credentials with the JSON secrets stored under the
// storefront/ prefix. Missing keys leave the env value in place.
func ApplySecrets(ctx context.Context, cfg *Config, sm aws_pkg.SecretGetter) error {
	db, err := aws_pkg.GetSecretJSON(ctx, sm, secretPrefix+"DB_CREDENTIALS")
	if err != nil {
		return fmt.Errorf("load db credentials: %w", err)
	}
	override(&cfg.Postgres.User, db, "POSTGRES_USER")
	override(&cfg.Postgres.Password, db, "POSTGRES_PASSWORD")
	override(&cfg.Postgres.DB, db, "POSTGRES_DB")
	override(&cfg.Postgres.Host, db, "POSTGRES_HOST")
	override(&cfg.Postgres.Port, db, "POSTGRES_PORT")

	if jwt, err := aws_pkg.GetSecretJSON(ctx, sm, secretPrefix+"JWT"); err == nil {
		override(&cfg.JWTSecret, jwt, "JWT_SECRET")
	}
	if stripe, err := aws_pkg.GetSecretJSON(ctx, sm, secretPrefix+"STRIPE"); err == nil {
		override(&cfg.StripeSecretKey, stripe, "STRIPE_SECRET_KEY")
		override(&cfg.StripeWebhookSecret, stripe, "STRIPE_WEBHOOK_SECRET")
	}
	return nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("POSTGRES_USER not set")
	}
	if c.Postgres.DB == "" {
		return fmt.Errorf("POSTGRES_DB not set")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}
	return nil
}

func override(dst *string, m map[string]string, key string) {
	if v, ok := m[key]; ok && v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "/")); part != "" {
			out = append(out, part)
		}
	}
	return out
}
