// Package scheduling publishes videos at their scheduled time. Due schedules
// are claimed and handed to the worker through the publish queue; the worker
// calls Run, which publishes and records the outcome on the schedule.
package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
	"github.com/Ste11an/facelessflow/tasks"
)

// VideoPublisher is satisfied by assembly.Orchestrator.
type VideoPublisher interface {
	Publish(ctx context.Context, videoID string, platforms []string) (models.PublishResults, error)
}

type Service struct {
	Repo      repository.Repository
	Queue     tasks.Queue
	Publisher VideoPublisher
	Logger    *zap.Logger
	// Lease is how long a claimed schedule stays claimed before another
	// dispatch may pick it up again.
	Lease     time.Duration
	BatchSize int
	Now       func() time.Time
}

func NewService(repo repository.Repository, queue tasks.Queue, publisher VideoPublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Repo:      repo,
		Queue:     queue,
		Publisher: publisher,
		Logger:    logger,
		Lease:     10 * time.Minute,
		BatchSize: 50,
		Now:       time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

type CreateInput struct {
	VideoID       string    `json:"video_id" binding:"required"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
	Platforms     []string  `json:"platforms"`
}

// Create schedules one of ownerID's videos. Platforms default to the video's
// targets and must be a subset of them.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Schedule, error) {
	video, err := s.Repo.GetVideo(ctx, in.VideoID)
	if err != nil {
		return nil, err
	}
	if video.OwnerID != ownerID {
		return nil, apperr.NotFound("video")
	}
	if video.Status == models.VideoFailed {
		return nil, apperr.Precondition("video failed to render and cannot be scheduled")
	}
	if !in.ScheduledTime.After(s.now()) {
		return nil, apperr.Validation("scheduled_time must be in the future")
	}

	targets := video.Platform.Targets()
	platforms := in.Platforms
	if len(platforms) == 0 {
		platforms = targets
	}
	seen := map[string]bool{}
	var unique []string
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if !slices.Contains(targets, p) {
			return nil, apperr.Validation("video does not target platform %q", p)
		}
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}

	sched := &models.Schedule{
		VideoID:       video.ID,
		SeriesID:      video.SeriesID,
		OwnerID:       ownerID,
		ScheduledTime: in.ScheduledTime.UTC(),
		Platforms:     unique,
		Status:        models.ScheduleScheduled,
	}
	if err := s.Repo.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	s.log().Info("schedule created",
		zap.String("schedule_id", sched.ID),
		zap.String("video_id", video.ID),
		zap.Time("scheduled_time", sched.ScheduledTime))
	return sched, nil
}

// Cancel deletes a schedule that has not been dispatched yet.
func (s *Service) Cancel(ctx context.Context, ownerID, id string) error {
	ok, err := s.Repo.DeleteSchedule(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if !ok {
		sched, err := s.Repo.GetSchedule(ctx, id)
		if err != nil || sched.OwnerID != ownerID {
			return apperr.NotFound("schedule")
		}
		if sched.Status == models.ScheduleScheduled {
			return apperr.Precondition("schedule is being published and can no longer be cancelled")
		}
		return apperr.Precondition("schedule is %s and can no longer be cancelled", sched.Status)
	}
	return nil
}

// DispatchDue claims every due schedule and enqueues a publish task for it.
// It returns how many were enqueued.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	now := s.now()
	staleBefore := now.Add(-s.Lease)
	due, err := s.Repo.ListDueSchedules(ctx, now, staleBefore, s.BatchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	var errs []error
	for _, sched := range due {
		ok, err := s.Repo.ClaimSchedule(ctx, sched.ID, now, staleBefore)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		payload := tasks.PublishPayload{VideoID: sched.VideoID, Platforms: sched.Platforms, ScheduleID: sched.ID}
		if err := s.Queue.Enqueue(ctx, tasks.QueueVideoPublish, payload); err != nil {
			errs = append(errs, fmt.Errorf("enqueue schedule %s: %w", sched.ID, err))
			if rerr := s.Repo.ReleaseSchedule(ctx, sched.ID); rerr != nil {
				s.log().Error("failed to release schedule", zap.String("schedule_id", sched.ID), zap.Error(rerr))
			}
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		s.log().Info("schedules dispatched", zap.Int("count", dispatched))
	}
	return dispatched, errors.Join(errs...)
}

// Run publishes the video of a claimed schedule. A video still rendering
// releases the schedule for a later dispatch; a failed video fails it.
func (s *Service) Run(ctx context.Context, scheduleID string) error {
	sched, err := s.Repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.Status != models.ScheduleScheduled {
		return nil
	}
	logger := s.log().With(zap.String("schedule_id", sched.ID), zap.String("video_id", sched.VideoID))

	video, err := s.Repo.GetVideo(ctx, sched.VideoID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return s.Complete(ctx, sched.ID, nil, apperr.Precondition("video no longer exists"))
		}
		return err
	}
	switch video.Status {
	case models.VideoPending, models.VideoProcessing:
		logger.Info("video not ready, schedule released", zap.String("status", string(video.Status)))
		return s.Repo.ReleaseSchedule(ctx, sched.ID)
	case models.VideoFailed:
		return s.Complete(ctx, sched.ID, nil, apperr.Precondition("video failed: %s", video.ErrorMessage))
	}

	results, err := s.Publisher.Publish(ctx, video.ID, sched.Platforms)
	return s.Complete(ctx, sched.ID, results, err)
}

// Complete records the outcome of a schedule's publish. The schedule is
// published only if every one of its platforms succeeded.
func (s *Service) Complete(ctx context.Context, scheduleID string, results models.PublishResults, publishErr error) error {
	sched, err := s.Repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}

	own := models.PublishResults{}
	var failures []string
	for _, p := range sched.Platforms {
		outcome, ok := results[p]
		if ok {
			own[p] = outcome
		}
		if !ok || outcome.Status != models.PublishSucceeded {
			msg := outcome.Error
			if msg == "" {
				msg = "not published"
			}
			failures = append(failures, p+": "+msg)
		}
	}

	to := models.SchedulePublished
	patch := repository.SchedulePatch{}
	if len(own) > 0 {
		b, err := json.Marshal(own)
		if err != nil {
			return err
		}
		patch.Results = b
	}
	switch {
	case publishErr != nil:
		to = models.ScheduleFailed
		patch.ErrorMessage = repository.Ptr(apperr.Message(publishErr))
	case len(failures) > 0:
		to = models.ScheduleFailed
		patch.ErrorMessage = repository.Ptr(strings.Join(failures, "; "))
	}

	ok, err := s.Repo.TransitionSchedule(ctx, sched.ID, models.ScheduleScheduled, to, patch)
	if err != nil {
		return err
	}
	if ok {
		s.log().Info("schedule completed", zap.String("schedule_id", sched.ID), zap.String("status", string(to)))
	}
	return nil
}

// DispatchRenderPolls enqueues a render poll for every processing video that
// has a render job. Workers apply the results.
func (s *Service) DispatchRenderPolls(ctx context.Context) (int, error) {
	videos, err := s.Repo.ListVideosByStatus(ctx, models.VideoProcessing, s.BatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, v := range videos {
		if v.RenderJobID == "" {
			continue
		}
		if err := s.Queue.Enqueue(ctx, tasks.QueueRenderPoll, tasks.RenderPollPayload{VideoID: v.ID}); err != nil {
			errs = append(errs, fmt.Errorf("enqueue render poll %s: %w", v.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
