package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/config"
	"github.com/monimoni12/naos/internal/logging"
)

func main() {
	logger := logging.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration error", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(afero.NewOsFs(), cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}
