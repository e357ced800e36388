package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment

	// Server configuration
	ServerPort string
	ServerHost string
	// PublicURL is the externally visible base used for short links and pagination
	PublicURL string

	// Database configuration
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis configuration, optional
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT configuration
	JWTSecret string
	JWTTTL    time.Duration

	// Media storage
	StorageBackend string
	MediaRoot      string
	MediaURL       string
	S3BucketName   string
	AWSRegion      string

	PageSize          int
	RecipeCreateLimit int
	CORSOrigins       []string
	LogLevel          string
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	cfg := &Config{Environment: env}

	switch env {
	case CI:
		loadCIConfig(cfg)
	case Development, Test:
		// .env is optional; a missing file is not an error
		_ = godotenv.Load()
		loadDevConfig(cfg)
	case Production:
		loadProdConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadCIConfig reads everything from plain environment variables
func loadCIConfig(cfg *Config) {
	loadCommon(cfg)
	cfg.DBPassword = getEnv("DB_PASSWORD", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
}

// loadDevConfig prefers environment variables and falls back to docker secrets, then to local defaults
func loadDevConfig(cfg *Config) {
	loadCommon(cfg)
	cfg.DBPassword = envOrSecret("DB_PASSWORD", "db_password", "postgres")
	cfg.RedisPassword = envOrSecret("REDIS_PASSWORD", "redis_password", "")
	cfg.JWTSecret = envOrSecret("JWT_SECRET", "jwt_secret", "foodgram-development-secret")
}

// loadProdConfig reads sensitive values from docker secrets only
func loadProdConfig(cfg *Config) {
	loadCommon(cfg)
	cfg.DBPassword = readSecret("db_password")
	cfg.RedisPassword = readSecret("redis_password")
	cfg.JWTSecret = readSecret("jwt_secret")
}

func loadCommon(cfg *Config) {
	cfg.ServerHost = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.ServerPort = getEnv("SERVER_PORT", "8000")
	cfg.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8000"), "/")

	cfg.DBDriver = getEnv("DB_DRIVER", DriverPostgres)
	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBPort = getEnv("DB_PORT", "5432")
	cfg.DBUser = getEnv("DB_USER", "postgres")
	cfg.DBName = getEnv("DB_NAME", "foodgram")
	cfg.DBSSLMode = getEnv("DB_SSL_MODE", "disable")
	cfg.SQLitePath = getEnv("SQLITE_PATH", "foodgram.db")

	cfg.RedisURL = getEnv("REDIS_URL", "")
	cfg.RedisHost = getEnv("REDIS_HOST", "")
	cfg.RedisPort = getEnv("REDIS_PORT", "6379")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.JWTTTL = getEnvDuration("JWT_TTL", 24*time.Hour)

	cfg.StorageBackend = getEnv("STORAGE_BACKEND", StorageLocal)
	cfg.MediaRoot = getEnv("MEDIA_ROOT", "media")
	cfg.MediaURL = strings.TrimRight(getEnv("MEDIA_URL", cfg.PublicURL+"/media"), "/")
	cfg.S3BucketName = getEnv("S3_BUCKET_NAME", "")
	cfg.AWSRegion = getEnv("AWS_REGION", "us-east-1")

	cfg.PageSize = getEnvInt("PAGE_SIZE", 6)
	cfg.RecipeCreateLimit = getEnvInt("RECIPE_CREATE_LIMIT", 30)
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
}

// RedisEnabled reports whether any redis endpoint was configured
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}

// PostgresDSN builds the key/value connection string understood by both lib/pq and pgx
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

func envOrSecret(key, secret, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	if value := readSecret(secret); value != "" {
		return value
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
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
