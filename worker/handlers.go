package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/assembly"
	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/scheduling"
	"github.com/Ste11an/facelessflow/tasks"
)

// Handlers binds the task queues to the orchestrator and the scheduler.
type Handlers struct {
	Orchestrator *assembly.Orchestrator
	Schedules    *scheduling.Service
	Logger       *zap.Logger
}

// RegisterAll registers a handler for every queue in tasks.All.
func (h *Handlers) RegisterAll(p *Processor) {
	p.Register(tasks.QueueVideoAssemble, h.HandleAssemble)
	p.Register(tasks.QueueRenderPoll, h.HandleRenderPoll)
	p.Register(tasks.QueueVideoPublish, h.HandlePublish)
}

func (h *Handlers) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// HandleAssemble processes tasks from QueueVideoAssemble. A redelivered task
// for a video that already left pending is dropped.
func (h *Handlers) HandleAssemble(ctx context.Context, payload string) error {
	var task tasks.AssemblePayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}
	h.log().Info("assembling video", zap.String("video_id", task.VideoID))

	err := h.Orchestrator.Assemble(ctx, task.VideoID)
	if apperr.Is(err, apperr.KindNotFound) {
		h.log().Warn("video not found, task dropped", zap.String("video_id", task.VideoID))
		return nil
	}
	return err
}

// HandleRenderPoll processes tasks from QueueRenderPoll.
func (h *Handlers) HandleRenderPoll(ctx context.Context, payload string) error {
	var task tasks.RenderPollPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}
	applied, err := h.Orchestrator.PollRender(ctx, task.VideoID)
	if err != nil {
		return err
	}
	if applied {
		h.log().Info("render status applied", zap.String("video_id", task.VideoID))
	}
	return nil
}

// HandlePublish processes tasks from QueueVideoPublish. Schedule-triggered
// tasks record their outcome on the schedule.
func (h *Handlers) HandlePublish(ctx context.Context, payload string) error {
	var task tasks.PublishPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}
	if task.ScheduleID != "" {
		return h.Schedules.Run(ctx, task.ScheduleID)
	}

	results, err := h.Orchestrator.Publish(ctx, task.VideoID, task.Platforms)
	if err != nil {
		return err
	}
	platforms := task.Platforms
	if len(platforms) == 0 {
		for p := range results {
			platforms = append(platforms, p)
		}
	}
	if failed := assembly.Failed(results, platforms); len(failed) > 0 {
		h.log().Warn("publish incomplete", zap.String("video_id", task.VideoID), zap.Strings("failed", failed))
	}
	return nil
}
