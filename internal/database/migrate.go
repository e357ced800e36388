package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one numbered schema step with its rollback
type Migration struct {
	Name string
	Up   string
	Down string
}

// RunMigrations brings the schema up to date. SQLite databases are created
// from the models; postgres uses the embedded SQL migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		logger.Logger.Info().Msg("using gorm auto-migration for sqlite")
		return db.WithContext(ctx).AutoMigrate(models.All()...)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("error getting sql handle: %w", err)
	}
	_, err = MigrateUp(ctx, sqlDB)
	return err
}

// OpenSQL opens a plain postgres handle for the migrate command
func OpenSQL(cfg *config.Config) (*sql.DB, error) {
	if cfg.DBDriver != config.DriverPostgres {
		return nil, fmt.Errorf("sql migrations require the %s driver, got %q", config.DriverPostgres, cfg.DBDriver)
	}
	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return db, nil
}

// LoadMigrations returns the embedded migrations sorted by name
func LoadMigrations() ([]Migration, error) {
	entries, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	byName := map[string]*Migration{}
	for _, path := range entries {
		file := strings.TrimPrefix(path, "migrations/")
		var name string
		var up bool
		switch {
		case strings.HasSuffix(file, ".up.sql"):
			name, up = strings.TrimSuffix(file, ".up.sql"), true
		case strings.HasSuffix(file, ".down.sql"):
			name = strings.TrimSuffix(file, ".down.sql")
		default:
			continue
		}
		content, err := migrationFiles.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		m, ok := byName[name]
		if !ok {
			m = &Migration{Name: name}
			byName[name] = m
		}
		if up {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	out := make([]Migration, 0, len(byName))
	for _, m := range byName {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up file", m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM migrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// MigrateUp applies every pending migration and returns the names applied
func MigrateUp(ctx context.Context, db *sql.DB) ([]string, error) {
	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	done, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(done))
	for _, name := range done {
		applied[name] = true
	}

	var ran []string
	for _, m := range migrations {
		if applied[m.Name] {
			logger.Logger.Debug().Str("migration", m.Name).Msg("skipping migration (already applied)")
			continue
		}
		if err := runInTx(ctx, db, m.Up, `INSERT INTO migrations (name) VALUES ($1)`, m.Name); err != nil {
			return ran, fmt.Errorf("failed to execute migration %s: %w", m.Name, err)
		}
		logger.Logger.Info().Str("migration", m.Name).Msg("applied migration")
		ran = append(ran, m.Name)
	}
	return ran, nil
}

// MigrateDown rolls back the last steps applied migrations
func MigrateDown(ctx context.Context, db *sql.DB, steps int) ([]string, error) {
	if steps <= 0 {
		return nil, nil
	}
	migrations, err := LoadMigrations()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byName[m.Name] = m
	}
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	done, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(done) - 1; i >= 0 && len(reverted) < steps; i-- {
		m, ok := byName[done[i]]
		if !ok || m.Down == "" {
			return reverted, fmt.Errorf("migration %s cannot be rolled back", done[i])
		}
		if err := runInTx(ctx, db, m.Down, `DELETE FROM migrations WHERE name = $1`, m.Name); err != nil {
			return reverted, fmt.Errorf("failed to roll back migration %s: %w", m.Name, err)
		}
		logger.Logger.Info().Str("migration", m.Name).Msg("rolled back migration")
		reverted = append(reverted, m.Name)
	}
	return reverted, nil
}

func runInTx(ctx context.Context, db *sql.DB, script, record, name string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, record, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
