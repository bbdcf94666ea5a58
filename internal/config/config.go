// Package config provides configuration for the uploader CLI and the development backend
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
	Backend    BackendConfig
	Upload     UploadConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Logging    LoggingConfig
	CORS       CORSConfig
	JWT        JWTConfig
	S3         S3Config
	SignedURL  SignedURLConfig
	GC         GCConfig
	MediaPath  string
	MaxUpload  int64
	BaseURL    string
	MetricsNS  string
}

// BackendConfig holds settings the CLI uses to reach the backend API
type BackendConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// UploadConfig holds upload orchestration settings
type UploadConfig struct {
	// MaxParallel limits concurrent file pipelines per batch; 0 means unlimited
	MaxParallel int
}

// DatabaseConfig holds database connection settings.
// Host is empty when the development backend runs in memory.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
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
	Secret            string
	AccessTokenExpiry time.Duration
}

// S3Config holds object storage settings.
// Bucket is empty when uploads go to local storage.
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	PresignTTL   time.Duration
}

// SignedURLConfig holds settings for locally signed upload URLs
type SignedURLConfig struct {
	Secret string
	TTL    time.Duration
}

// GCConfig holds settings of the orphaned upload sweeper
type GCConfig struct {
	Schedule   string
	PendingTTL time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}
	var err error

	// Backend API configuration (CLI)
	cfg.Backend.BaseURL = strings.TrimRight(os.Getenv("BACKEND_BASE_URL"), "/")
	cfg.Backend.AccessToken = os.Getenv("BACKEND_ACCESS_TOKEN")
	if cfg.Backend.Timeout, err = getEnvDuration("HTTP_TIMEOUT", "0s"); err != nil {
		return nil, err
	}

	if cfg.Upload.MaxParallel, err = getEnvInt("UPLOAD_MAX_PARALLEL", "0"); err != nil {
		return nil, err
	}
	if cfg.Upload.MaxParallel < 0 {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_PARALLEL: must not be negative")
	}

	// Database configuration (optional, development backend falls back to memory)
	cfg.Database.Host = os.Getenv("DB_HOST")
	if cfg.Database.Host != "" {
		if cfg.Database.Port, err = getEnvInt("DB_PORT", "3306"); err != nil {
			return nil, err
		}
		cfg.Database.User = os.Getenv("DB_USER")
		if cfg.Database.User == "" {
			return nil, fmt.Errorf("DB_USER is required")
		}
		cfg.Database.Password = os.Getenv("DB_PASSWORD")
		cfg.Database.DBName = os.Getenv("DB_NAME")
		if cfg.Database.DBName == "" {
			return nil, fmt.Errorf("DB_NAME is required")
		}
	}

	// Server configuration
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", "8080"); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	cfg.MediaPath = os.Getenv("MEDIA_BASE_PATH")
	if cfg.MediaPath == "" {
		cfg.MediaPath = "./media"
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_SIZE", "524288000") // 500MB
	if err != nil {
		return nil, err
	}
	cfg.MaxUpload = int64(maxUpload)

	// Logging configuration
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	if cfg.JWT.AccessTokenExpiry, err = getEnvDuration("JWT_ACCESS_TOKEN_EXPIRY", "1h"); err != nil {
		return nil, err
	}

	// S3 configuration (optional)
	cfg.S3.Bucket = os.Getenv("S3_BUCKET")
	cfg.S3.Region = os.Getenv("S3_REGION")
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	cfg.S3.BaseEndpoint = os.Getenv("S3_BASE_ENDPOINT")
	cfg.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	if cfg.S3.PresignTTL, err = getEnvDuration("S3_PRESIGN_TTL", "15m"); err != nil {
		return nil, err
	}

	// Signed upload URLs for local storage
	cfg.SignedURL.Secret = os.Getenv("SIGNED_URL_SECRET")
	if cfg.SignedURL.TTL, err = getEnvDuration("SIGNED_URL_TTL", "1h"); err != nil {
		return nil, err
	}

	// Orphaned upload sweeper
	cfg.GC.Schedule = os.Getenv("GC_SCHEDULE")
	if cfg.GC.Schedule == "" {
		cfg.GC.Schedule = "@every 10m"
	}
	if cfg.GC.PendingTTL, err = getEnvDuration("PENDING_UPLOAD_TTL", "24h"); err != nil {
		return nil, err
	}

	cfg.MetricsNS = os.Getenv("METRICS_NAMESPACE")
	if cfg.MetricsNS == "" {
		cfg.MetricsNS = "media_uploader"
	}

	return cfg, nil
}

// ValidateClient checks the settings required by the uploader CLI
func (c *Config) ValidateClient() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	return nil
}

// ValidateServer checks the settings required by the development backend
func (c *Config) ValidateServer() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.S3.Bucket == "" && c.SignedURL.Secret == "" {
		return fmt.Errorf("SIGNED_URL_SECRET is required when S3_BUCKET is not set")
	}
	if c.S3.Bucket != "" && (c.S3.AccessKey == "" || c.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}
	if c.MaxUpload <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// UseDatabase reports whether a MySQL database is configured
func (c *Config) UseDatabase() bool {
	return c.Database.Host != ""
}

// UseS3 reports whether S3 object storage is configured
func (c *Config) UseS3() bool {
	return c.S3.Bucket != ""
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

func getEnvInt(key, def string) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key, def string) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// parseOrigins parses comma-separated origins, allowing all when none are given
func parseOrigins(raw string) []string {
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
