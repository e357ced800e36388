package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const serviceName = "foodgram"

// NewRootCommand assembles the foodgram CLI
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Foodgram recipe sharing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newLoadDataCommand(),
		newCreateAdminCommand(),
		newSeedDemoCommand(),
		newSetupBucketCommand(),
	)
	return root
}

// Execute runs the CLI with ctx, which is cancelled on shutdown signals
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// bootstrap loads configuration and initializes logging
func bootstrap() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(serviceName, cfg.Environment.ConsoleLogs())
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// openDatabase connects and brings the schema up to date
func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(ctx, db); err != nil {
		closeDatabase(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// openRedis returns nil when redis is not configured
func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		logger.Logger.Warn().Msg("redis not configured; token revocation, short link cache and rate limiting are disabled")
		return nil, nil
	}
	return database.NewRedisClient(ctx, cfg)
}
