package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pageza/foodgram/backend/internal/cmd"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
