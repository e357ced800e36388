package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	var down bool
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			db, err := database.OpenSQL(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if down {
				reverted, err := database.MigrateDown(cmd.Context(), db, steps)
				if err != nil {
					return err
				}
				logger.Logger.Info().Strs("migrations", reverted).Msg("rollback complete")
				return nil
			}

			applied, err := database.MigrateUp(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
				return nil
			}
			logger.Logger.Info().Strs("migrations", applied).Msg("migrations complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back instead of applying")
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back with --down")
	return cmd
}
