package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

func newSetupBucketCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-bucket",
		Short: "Allow public reads of recipe images and avatars in the S3 bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.StorageBackend != config.StorageS3 {
				return fmt.Errorf("setup-bucket requires STORAGE_BACKEND=%s, got %q", config.StorageS3, cfg.StorageBackend)
			}
			s3cfg, err := config.NewS3Config(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := s3cfg.SetupBucketPolicy(cmd.Context()); err != nil {
				return fmt.Errorf("failed to apply bucket policy: %w", err)
			}
			logger.Logger.Info().Str("bucket", s3cfg.BucketName).Msg("public read policy applied")
			return nil
		},
	}
}
