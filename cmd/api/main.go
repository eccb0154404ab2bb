package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/app"
	"github.com/Ste11an/facelessflow/internal/config"
	"github.com/Ste11an/facelessflow/internal/cronrunner"
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

	// With in-memory stores nothing else can reach the queue, so run the
	// worker and the cron jobs here.
	if a.InProcess() {
		go a.NewProcessor().Listen(ctx)
		if cfg.Cron.Enabled {
			runner := cronrunner.New(logger.Named("cron"), ctx)
			if err := a.RegisterCron(runner); err != nil {
				logger.Fatal("cron register failed", zap.Error(err))
			}
			runner.Start()
			defer runner.Stop()
		}
	}

	server := NewServer(a)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
