package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("ENV", "test")
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "foodgram")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "foodgram")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PUBLIC_URL", "https://foodgram.example/")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, Test, cfg.Environment)
	assert.Equal(t, "db", cfg.DBHost)
	assert.Equal(t, "5433", cfg.DBPort)
	assert.Equal(t, "secret", cfg.DBPassword)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "https://foodgram.example", cfg.PublicURL)
	assert.Equal(t, "https://foodgram.example/media", cfg.MediaURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadConfigWithDefaults(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("ENV", "test")
	t.Setenv("SECRETS_DIR", t.TempDir())
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_DRIVER", "JWT_SECRET", "REDIS_URL", "REDIS_HOST", "PAGE_SIZE", "STORAGE_BACKEND"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, 6, cfg.PageSize)
	assert.Equal(t, StorageLocal, cfg.StorageBackend)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadConfigReadsSecrets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("from-secret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("pg-secret"), 0o600))

	t.Setenv("CI", "")
	t.Setenv("ENV", "production")
	t.Setenv("SECRETS_DIR", dir)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "ignored-in-production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-secret", cfg.JWTSecret)
	assert.Equal(t, "pg-secret", cfg.DBPassword)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:    Production,
			DBDriver:       DriverPostgres,
			DBHost:         "db",
			DBName:         "foodgram",
			StorageBackend: StorageLocal,
			JWTSecret:      "x",
			JWTTTL:         time.Hour,
			PageSize:       6,
		}
	}

	assert.NoError(t, ValidateConfig(valid()))

	cfg := valid()
	cfg.DBDriver = DriverSQLite
	assert.ErrorContains(t, ValidateConfig(cfg), "sqlite is not allowed in production")

	cfg = valid()
	cfg.JWTSecret = ""
	assert.ErrorContains(t, ValidateConfig(cfg), "jwt_secret")

	cfg = valid()
	cfg.StorageBackend = StorageS3
	assert.ErrorContains(t, ValidateConfig(cfg), "S3_BUCKET_NAME")

	cfg = valid()
	cfg.DBDriver = "mysql"
	assert.ErrorContains(t, ValidateConfig(cfg), "unsupported driver")
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("CI", "true")
	assert.Equal(t, CI, GetEnvironment())

	t.Setenv("CI", "")
	t.Setenv("ENV", "production")
	assert.Equal(t, Production, GetEnvironment())
	assert.True(t, GetEnvironment().IsProduction())

	t.Setenv("ENV", "")
	assert.Equal(t, Development, GetEnvironment())
	assert.True(t, GetEnvironment().ConsoleLogs())
}

func TestParseEnvironment(t *testing.T) {
	tests := map[string]Environment{
		"prod":        Production,
		" Production": Production,
		"testing":     Test,
		"ci":          CI,
		"staging":     Development,
		"":            Development,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseEnvironment(in), in)
	}
	assert.False(t, CI.ConsoleLogs())
}
