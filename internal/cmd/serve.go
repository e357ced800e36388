package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := bootstrap()
			if err != nil {
				return err
			}

			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			rdb, err := openRedis(ctx, cfg)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			deps, err := server.NewDeps(ctx, cfg, db, rdb)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, deps)
			if err != nil {
				return err
			}

			if err := srv.Run(ctx); err != nil {
				return err
			}
			logger.Logger.Info().Msg("server stopped")
			return nil
		},
	}
}
