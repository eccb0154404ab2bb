package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/app"
	"github.com/Ste11an/facelessflow/internal/config"
	"github.com/Ste11an/facelessflow/internal/cronrunner"
	"github.com/Ste11an/facelessflow/internal/logging"
)

// The scheduler only enqueues work: due schedules and render polls. Claims
// are conditional writes, so running more than one instance is safe.
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
		logger.Fatal("the scheduler needs postgres and redis; the in-memory mode runs inside the api binary")
	}

	runner := cronrunner.New(logger.Named("cron"), ctx)
	if err := a.RegisterCron(runner); err != nil {
		logger.Fatal("cron register failed", zap.Error(err))
	}
	runner.Start()
	logger.Info("scheduler started",
		zap.String("schedule_dispatch", cfg.Cron.ScheduleDispatch),
		zap.String("render_poll", cfg.Cron.RenderPoll))

	<-ctx.Done()
	logger.Info("shutdown requested")
	runner.Stop()
}
