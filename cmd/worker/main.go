package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/app"
	"github.com/Ste11an/facelessflow/internal/config"
	"github.com/Ste11an/facelessflow/internal/logging"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}
	defer a.Close()
	if a.InProcess() {
		logger.Fatal("the worker needs postgres and redis; the in-memory mode runs inside the api binary")
	}

	// Redis lists are safe to consume from many worker instances.
	a.NewProcessor().Listen(ctx)
}
