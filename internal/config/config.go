package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StoreS3 = "s3"
	StoreDB = "db"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type RecognizerConfig struct {
	APIKey     string
	URL        string
	Regions    string
	Timeout    time.Duration
	MaxRetries int
	Rate       float64
}

type StorageConfig struct {
	Mode          string
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// ViolationConfig holds what gets written for vehicles caught by a camera.
type ViolationConfig struct {
	Type                string
	FineAmount          float64
	OfficerName         string
	ConfidenceThreshold float64
}

type NATSConfig struct {
	URL     string
	Subject string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Recognizer  RecognizerConfig
	Storage     StorageConfig
	Violation   ViolationConfig
	NATS        NATSConfig
}

// Load reads app.env (if present) and the environment, applies defaults and
// checks enumerated values. Required settings differ per binary, so callers
// pick the Require* checks they need.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Recognizer: RecognizerConfig{
			APIKey:     v.GetString("PLATE_API_KEY"),
			URL:        v.GetString("SNAPSHOT_API_URL"),
			Regions:    v.GetString("PLATE_REGIONS"),
			Timeout:    v.GetDuration("PLATE_API_TIMEOUT"),
			MaxRetries: v.GetInt("PLATE_API_MAX_RETRIES"),
			Rate:       v.GetFloat64("PLATE_API_RATE"),
		},
		Storage: StorageConfig{
			Mode:          strings.ToLower(v.GetString("STORE_IMAGES")),
			Bucket:        strings.TrimSpace(v.GetString("S3_BUCKET")),
			Endpoint:      strings.TrimSpace(v.GetString("S3_ENDPOINT")),
			Region:        strings.TrimSpace(v.GetString("S3_REGION")),
			AccessKey:     strings.TrimSpace(v.GetString("AWS_ACCESS_KEY_ID")),
			SecretKey:     strings.TrimSpace(v.GetString("AWS_SECRET_ACCESS_KEY")),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("S3_PUBLIC_BASE_URL")), "/"),
		},
		Violation: ViolationConfig{
			Type:                v.GetString("VIOLATION_TYPE"),
			FineAmount:          v.GetFloat64("FINE_AMOUNT"),
			OfficerName:         v.GetString("OFFICER_NAME"),
			ConfidenceThreshold: v.GetFloat64("CONFIDENCE_THRESHOLD"),
		},
		NATS: NATSConfig{
			URL:     v.GetString("NATS_URL"),
			Subject: v.GetString("NATS_SUBJECT"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("SNAPSHOT_API_URL", "https://api.platerecognizer.com/v1/plate-reader/")
	v.SetDefault("PLATE_REGIONS", "sa")
	v.SetDefault("PLATE_API_TIMEOUT", 30*time.Second)
	v.SetDefault("PLATE_API_MAX_RETRIES", 3)
	v.SetDefault("PLATE_API_RATE", 1.0)
	v.SetDefault("STORE_IMAGES", StoreS3)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("VIOLATION_TYPE", "دخول موقف خاص بدون تصريح")
	v.SetDefault("FINE_AMOUNT", 1000)
	v.SetDefault("OFFICER_NAME", "نظام تلقائي")
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.0)
	v.SetDefault("NATS_SUBJECT", "plates.violations")
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DB.Driver)
	}
	switch cfg.Storage.Mode {
	case StoreS3, StoreDB:
	default:
		return fmt.Errorf("STORE_IMAGES must be %q or %q, got %q", StoreS3, StoreDB, cfg.Storage.Mode)
	}
	if cfg.Violation.ConfidenceThreshold < 0 || cfg.Violation.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1]")
	}
	return nil
}

// RequireDB checks the database settings.
func (c *Config) RequireDB() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	return nil
}

// RequireServer checks everything the HTTP service needs.
func (c *Config) RequireServer() error {
	if err := c.RequireDB(); err != nil {
		return err
	}
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}

// RequireRecognizer checks the plate-reader API settings.
func (c *Config) RequireRecognizer() error {
	if c.Recognizer.APIKey == "" || c.Recognizer.URL == "" {
		return fmt.Errorf("PLATE_API_KEY and SNAPSHOT_API_URL are required")
	}
	return nil
}

// RequireStorage checks the S3 settings when images are stored in a bucket.
func (c *Config) RequireStorage() error {
	if c.Storage.Mode != StoreS3 {
		return nil
	}
	if c.Storage.Bucket == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("STORE_IMAGES=s3 requires S3_BUCKET, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	return nil
}
