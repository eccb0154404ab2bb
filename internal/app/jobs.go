package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/cronrunner"
	"github.com/Ste11an/facelessflow/worker"
)

// NewProcessor returns a worker listening on every task queue.
func (a *App) NewProcessor() *worker.Processor {
	p := worker.NewProcessor(a.Source, a.Logger.Named("worker"), a.Config.Worker.PollTimeout, a.Config.Worker.TaskTimeout)
	h := &worker.Handlers{Orchestrator: a.Orchestrator, Schedules: a.Schedules, Logger: a.Logger.Named("tasks")}
	h.RegisterAll(p)
	return p
}

// RegisterCron adds the periodic jobs: due schedule dispatch and render
// polling. In-process apps poll renders directly instead of through the queue.
func (a *App) RegisterCron(r *cronrunner.Runner) error {
	cfg := a.Config.Cron
	if _, err := r.Add("schedule_dispatch", cfg.ScheduleDispatch, func(ctx context.Context) error {
		_, err := a.Schedules.DispatchDue(ctx)
		return err
	}); err != nil {
		return err
	}

	poll := func(ctx context.Context) error {
		stalled, stallErr := a.Orchestrator.FailStalled(ctx, a.Schedules.BatchSize)
		if stalled > 0 {
			a.Logger.Warn("stalled assemblies failed", zap.Int("count", stalled))
		}
		n, err := a.Schedules.DispatchRenderPolls(ctx)
		if n > 0 {
			a.Logger.Debug("render polls queued", zap.Int("count", n))
		}
		return errors.Join(stallErr, err)
	}
	if a.InProcess() {
		poll = func(ctx context.Context) error {
			n, err := a.Orchestrator.PollProcessing(ctx, a.Schedules.BatchSize)
			if n > 0 {
				a.Logger.Info("render statuses applied", zap.Int("count", n))
			}
			return err
		}
	}
	_, err := r.Add("render_poll", cfg.RenderPoll, poll)
	return err
}
