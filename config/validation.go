package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	var errs []ValidationError

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBHost == "" || cfg.DBName == "" {
			errs = append(errs, ValidationError{"DB_HOST", "postgres driver needs a host and database name"})
		}
	case DriverSQLite:
		if cfg.Environment.IsProduction() {
			errs = append(errs, ValidationError{"DB_DRIVER", "sqlite is not allowed in production"})
		}
	default:
		errs = append(errs, ValidationError{"DB_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DBDriver)})
	}

	switch cfg.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if cfg.S3BucketName == "" {
			errs = append(errs, ValidationError{"S3_BUCKET_NAME", "required when STORAGE_BACKEND=s3"})
		}
	default:
		errs = append(errs, ValidationError{"STORAGE_BACKEND", fmt.Sprintf("unsupported backend %q", cfg.StorageBackend)})
	}

	if cfg.JWTSecret == "" {
		if cfg.Environment == CI {
			errs = append(errs, ValidationError{"JWT_SECRET", "environment variable is required in CI environment"})
		} else {
			errs = append(errs, ValidationError{"jwt_secret", "secret is required"})
		}
	}
	if cfg.JWTTTL <= 0 {
		errs = append(errs, ValidationError{"JWT_TTL", "must be positive"})
	}
	if cfg.PageSize <= 0 {
		errs = append(errs, ValidationError{"PAGE_SIZE", "must be positive"})
	}

	if len(errs) > 0 {
		lines := make([]string, len(errs))
		for i, e := range errs {
			lines[i] = e.Error()
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(lines, "\n"))
	}
	return nil
}
