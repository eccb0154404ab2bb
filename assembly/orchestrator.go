// Package assembly drives a video from pending to a terminal state: parse the
// approved script, synthesize the voiceover, submit the render, apply render
// status reports and publish to the targeted platforms.
package assembly

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/processing"
	"github.com/Ste11an/facelessflow/providers"
	"github.com/Ste11an/facelessflow/publish"
	"github.com/Ste11an/facelessflow/repository"
	"github.com/Ste11an/facelessflow/storage"
)

// MetadataSource generates publish copy for a video. Satisfied by
// processing.MetadataGenerator.
type MetadataSource interface {
	Generate(ctx context.Context, userID string, series models.Series, script string, existingTitles []string) (processing.VideoMetadata, error)
}

type Options struct {
	Timeline processing.TimelineOptions
	// VoiceID overrides the synthesizer's default voice.
	VoiceID string
	// StallAfter is how long a processing video may sit without a render job
	// before the sweep fails it. Must exceed the worker task timeout.
	StallAfter time.Duration
}

const (
	defaultStallAfter = 30 * time.Minute
	// cleanupTimeout bounds writes that must land after the task context ends.
	cleanupTimeout = 10 * time.Second
)

type Orchestrator struct {
	Repo       repository.Repository
	Voice      providers.VoiceSynthesizer
	Render     providers.RenderService
	Publishers publish.Registry
	Blobs      storage.BlobStore
	// Metadata is optional. Failures only log.
	Metadata MetadataSource
	Logger   *zap.Logger
	Options  Options
	Now      func() time.Time
}

func New(repo repository.Repository, voice providers.VoiceSynthesizer, render providers.RenderService, publishers publish.Registry, blobs storage.BlobStore, logger *zap.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Repo:       repo,
		Voice:      voice,
		Render:     render,
		Publishers: publishers,
		Blobs:      blobs,
		Logger:     logger,
		Options:    opts,
		Now:        time.Now,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// detached returns a context that outlives ctx's cancellation, for the state
// writes that keep a video out of limbo.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Assemble runs every step up to render submission. Any failure after the
// video is loaded moves it to failed with a user-facing message, and the error
// is returned as well.
func (o *Orchestrator) Assemble(ctx context.Context, videoID string) error {
	video, err := o.Repo.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video.Status != models.VideoPending {
		return apperr.Precondition("video is %s, assembly only starts from pending", video.Status)
	}
	logger := o.log().With(zap.String("video_id", video.ID), zap.String("owner_id", video.OwnerID))

	script, err := o.Repo.GetScript(ctx, video.ScriptID)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	if script.Status != models.ScriptApproved {
		return o.fail(ctx, video, apperr.Precondition("script must be approved before assembly"))
	}
	if len(video.MediaAssets) == 0 {
		return o.fail(ctx, video, apperr.Precondition("select at least one media asset before assembly"))
	}

	ok, err := o.Repo.TransitionVideo(ctx, video.ID, []models.VideoStatus{models.VideoPending}, models.VideoProcessing, repository.VideoPatch{
		ErrorMessage: repository.Ptr(""),
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Precondition("video assembly already started")
	}
	video.Status = models.VideoProcessing
	logger.Info("assembly started", zap.Int("assets", len(video.MediaAssets)))

	// Parse first so a malformed script never costs a voiceover.
	scenes, err := processing.CollectScenes(script.Content, video.MediaAssets)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	if len(scenes) == 0 {
		return o.fail(ctx, video, apperr.Validation("script contains no timestamped scenes"))
	}
	narration := processing.Narration(scenes)
	if narration == "" {
		return o.fail(ctx, video, apperr.Validation("script contains no narration"))
	}

	o.applyMetadata(ctx, video, script, logger)

	voice, err := o.Voice.Synthesize(ctx, video.OwnerID, video.ID, narration, o.Options.VoiceID)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	video.VoiceoverKey, video.VoiceoverURL = voice.Key, voice.URL
	if err := o.Repo.UpdateVideo(ctx, video.ID, repository.VideoPatch{
		VoiceoverURL: repository.Ptr(voice.URL),
		VoiceoverKey: repository.Ptr(voice.Key),
	}); err != nil {
		return o.fail(ctx, video, err)
	}

	edit, err := processing.BuildTimeline(scenes, voice.URL, o.Options.Timeline)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	jobID, err := o.Render.Submit(ctx, video.OwnerID, edit)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	// The render is running now; record it even if ctx ended meanwhile.
	recordCtx, cancel := detached(ctx)
	err = o.Repo.UpdateVideo(recordCtx, video.ID, repository.VideoPatch{
		RenderJobID:  repository.Ptr(jobID),
		RenderStatus: repository.Ptr(providers.RenderQueued),
	})
	cancel()
	if err != nil {
		return o.fail(ctx, video, err)
	}

	logger.Info("render submitted", zap.String("render_job_id", jobID), zap.Int("scenes", len(scenes)))
	return nil
}

func (o *Orchestrator) applyMetadata(ctx context.Context, video *models.Video, script *models.Script, logger *zap.Logger) {
	if o.Metadata == nil || len(video.Tags) > 0 {
		return
	}
	series, err := o.Repo.GetSeries(ctx, video.OwnerID, video.SeriesID)
	if err != nil {
		logger.Warn("metadata skipped: series lookup failed", zap.Error(err))
		return
	}
	siblings, err := o.Repo.ListVideos(ctx, video.OwnerID, video.SeriesID)
	if err != nil {
		logger.Warn("metadata skipped: video lookup failed", zap.Error(err))
		return
	}
	var titles []string
	for _, v := range siblings {
		if v.ID != video.ID && v.Title != "" {
			titles = append(titles, v.Title)
		}
	}

	meta, err := o.Metadata.Generate(ctx, video.OwnerID, *series, script.Content, titles)
	if err != nil {
		logger.Warn("metadata generation failed", zap.Error(err))
		return
	}
	patch := repository.VideoPatch{Tags: meta.Tags}
	if video.Title == "" || video.Title == script.Title {
		patch.Title = repository.Ptr(meta.Title)
		video.Title = meta.Title
	}
	if video.Description == "" {
		patch.Description = repository.Ptr(meta.Description)
		video.Description = meta.Description
	}
	video.Tags = meta.Tags
	if err := o.Repo.UpdateVideo(ctx, video.ID, patch); err != nil {
		logger.Warn("metadata not saved", zap.Error(err))
	}
}

// fail moves video to failed, releases its voiceover and returns cause. The
// writes run detached from ctx so a cancelled task still settles the video.
func (o *Orchestrator) fail(ctx context.Context, video *models.Video, cause error) error {
	ctx, cancel := detached(ctx)
	defer cancel()
	msg := apperr.Message(cause)
	ok, err := o.Repo.TransitionVideo(ctx, video.ID,
		[]models.VideoStatus{models.VideoPending, models.VideoProcessing},
		models.VideoFailed,
		repository.VideoPatch{ErrorMessage: repository.Ptr(msg)})
	if err != nil {
		o.log().Error("failed to mark video failed", zap.String("video_id", video.ID), zap.Error(err))
	}
	if ok {
		video.Status, video.ErrorMessage = models.VideoFailed, msg
		o.releaseVoiceover(ctx, video)
	}
	o.log().Warn("assembly failed",
		zap.String("video_id", video.ID),
		zap.String("kind", string(apperr.KindOf(cause))),
		zap.Error(cause))
	return cause
}

func (o *Orchestrator) releaseVoiceover(ctx context.Context, video *models.Video) {
	if video.VoiceoverKey == "" || o.Blobs == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := o.Blobs.Delete(ctx, video.VoiceoverKey); err != nil {
		o.log().Warn("voiceover cleanup failed", zap.String("video_id", video.ID), zap.String("key", video.VoiceoverKey), zap.Error(err))
		return
	}
	if err := o.Repo.UpdateVideo(ctx, video.ID, repository.VideoPatch{VoiceoverKey: repository.Ptr("")}); err != nil {
		o.log().Warn("voiceover key not cleared", zap.String("video_id", video.ID), zap.Error(err))
	}
}

// PollRender asks the render service for the job state of one processing video.
func (o *Orchestrator) PollRender(ctx context.Context, videoID string) (bool, error) {
	video, err := o.Repo.GetVideo(ctx, videoID)
	if err != nil {
		return false, err
	}
	if video.Status != models.VideoProcessing {
		return false, nil
	}
	if video.RenderJobID == "" {
		return false, apperr.Precondition("render has not been submitted yet")
	}
	state, err := o.Render.Status(ctx, video.OwnerID, video.RenderJobID)
	if err != nil {
		return false, err
	}
	return o.apply(ctx, video, state)
}

// ApplyRenderStatus records a render status report for jobID. It reports
// whether the video changed; duplicate and stale reports return false.
func (o *Orchestrator) ApplyRenderStatus(ctx context.Context, state providers.RenderState) (bool, error) {
	if state.ID == "" {
		return false, apperr.Validation("render job id is required")
	}
	video, err := o.Repo.GetVideoByRenderJob(ctx, state.ID)
	if err != nil {
		return false, err
	}
	return o.apply(ctx, video, state)
}

func (o *Orchestrator) apply(ctx context.Context, video *models.Video, state providers.RenderState) (bool, error) {
	logger := o.log().With(zap.String("video_id", video.ID), zap.String("render_job_id", video.RenderJobID))
	from := []models.VideoStatus{models.VideoProcessing}

	switch state.Status {
	case providers.RenderDone:
		if state.URL == "" {
			return o.applyFailure(ctx, video, "render finished without a video url", logger)
		}
		ok, err := o.Repo.TransitionVideo(ctx, video.ID, from, models.VideoReady, repository.VideoPatch{
			RenderStatus: repository.Ptr(providers.RenderDone),
			VideoURL:     repository.Ptr(state.URL),
		})
		if err != nil || !ok {
			return false, err
		}
		logger.Info("render ready", zap.String("video_url", state.URL))
		o.releaseVoiceover(ctx, video)
		return true, nil

	case providers.RenderFailed:
		msg := state.Error
		if msg == "" {
			msg = "render failed"
		}
		return o.applyFailure(ctx, video, msg, logger)

	default:
		if state.Status == "" || state.Status == video.RenderStatus || video.Status != models.VideoProcessing {
			return false, nil
		}
		ok, err := o.Repo.TransitionVideo(ctx, video.ID, from, models.VideoProcessing, repository.VideoPatch{
			RenderStatus: repository.Ptr(state.Status),
		})
		return ok, err
	}
}

func (o *Orchestrator) applyFailure(ctx context.Context, video *models.Video, msg string, logger *zap.Logger) (bool, error) {
	ok, err := o.Repo.TransitionVideo(ctx, video.ID, []models.VideoStatus{models.VideoProcessing}, models.VideoFailed, repository.VideoPatch{
		RenderStatus: repository.Ptr(providers.RenderFailed),
		ErrorMessage: repository.Ptr(msg),
	})
	if err != nil || !ok {
		return false, err
	}
	logger.Warn("render failed", zap.String("error", msg))
	o.releaseVoiceover(ctx, video)
	return true, nil
}

func (o *Orchestrator) stallAfter() time.Duration {
	if o.Options.StallAfter > 0 {
		return o.Options.StallAfter
	}
	return defaultStallAfter
}

// stalled reports whether v is processing without a render job and has not
// been touched for longer than the stall window.
func (o *Orchestrator) stalled(v models.Video) bool {
	return v.Status == models.VideoProcessing && v.RenderJobID == "" &&
		o.now().Sub(v.UpdatedAt) > o.stallAfter()
}

func (o *Orchestrator) failStalled(ctx context.Context, v models.Video) (bool, error) {
	ok, err := o.Repo.TransitionVideo(ctx, v.ID, []models.VideoStatus{models.VideoProcessing}, models.VideoFailed, repository.VideoPatch{
		ErrorMessage: repository.Ptr("assembly was interrupted before the render was submitted, please try again"),
	})
	if err != nil || !ok {
		return false, err
	}
	o.log().Warn("stalled assembly failed", zap.String("video_id", v.ID), zap.Time("updated_at", v.UpdatedAt))
	o.releaseVoiceover(ctx, &v)
	return true, nil
}

// FailStalled fails up to limit processing videos whose assembly died before
// a render job was recorded, and returns how many it moved.
func (o *Orchestrator) FailStalled(ctx context.Context, limit int) (int, error) {
	videos, err := o.Repo.ListVideosByStatus(ctx, models.VideoProcessing, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, v := range videos {
		if !o.stalled(v) {
			continue
		}
		ok, err := o.failStalled(ctx, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// PollProcessing polls up to limit processing videos and returns how many
// changed. Stalled assemblies without a render job are failed along the way.
func (o *Orchestrator) PollProcessing(ctx context.Context, limit int) (int, error) {
	videos, err := o.Repo.ListVideosByStatus(ctx, models.VideoProcessing, limit)
	if err != nil {
		return 0, err
	}
	applied := 0
	var errs []error
	for _, v := range videos {
		if v.RenderJobID == "" {
			if !o.stalled(v) {
				continue
			}
			ok, err := o.failStalled(ctx, v)
			if err != nil {
				errs = append(errs, err)
			} else if ok {
				applied++
			}
			continue
		}
		ok, err := o.PollRender(ctx, v.ID)
		if err != nil {
			o.log().Warn("render poll failed", zap.String("video_id", v.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, errors.Join(errs...)
}
