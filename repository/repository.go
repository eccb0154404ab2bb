// Package repository is the data-store seam. Handlers, the orchestrator and the
// scheduler depend on Repository; cmd wires the gorm store, tests the memory store.
package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/Ste11an/facelessflow/models"
)

type Repository interface {
	Ping(ctx context.Context) error

	CreateSeries(ctx context.Context, s *models.Series) error
	GetSeries(ctx context.Context, ownerID, id string) (*models.Series, error)
	ListSeries(ctx context.Context, ownerID string) ([]models.Series, error)
	UpdateSeries(ctx context.Context, s *models.Series) error

	CreateScript(ctx context.Context, s *models.Script) error
	GetScript(ctx context.Context, id string) (*models.Script, error)
	ListScripts(ctx context.Context, ownerID, seriesID string) ([]models.Script, error)
	UpdateScript(ctx context.Context, s *models.Script) error

	CreateVideo(ctx context.Context, v *models.Video) error
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	GetVideoByRenderJob(ctx context.Context, renderJobID string) (*models.Video, error)
	ListVideos(ctx context.Context, ownerID, seriesID string) ([]models.Video, error)
	ListVideosByStatus(ctx context.Context, status models.VideoStatus, limit int) ([]models.Video, error)
	// TransitionVideo moves a video to status to only if its current status is in
	// from, applying patch in the same write. It reports whether the row changed.
	TransitionVideo(ctx context.Context, id string, from []models.VideoStatus, to models.VideoStatus, patch VideoPatch) (bool, error)
	UpdateVideo(ctx context.Context, id string, patch VideoPatch) error
	// MergePublishResults folds outcomes into the stored per-platform publish
	// results in one atomic read-modify-write. A ready video whose targets have
	// all succeeded after the merge moves to published in the same write. It
	// returns the row as written.
	MergePublishResults(ctx context.Context, id string, outcomes models.PublishResults, targets []string) (*models.Video, error)

	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)
	ListSchedules(ctx context.Context, ownerID string) ([]models.Schedule, error)
	// ListDueSchedules returns scheduled rows at or before now that are unclaimed
	// or whose claim is older than staleBefore.
	ListDueSchedules(ctx context.Context, now, staleBefore time.Time, limit int) ([]models.Schedule, error)
	ClaimSchedule(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	ReleaseSchedule(ctx context.Context, id string) error
	TransitionSchedule(ctx context.Context, id string, from, to models.ScheduleStatus, patch SchedulePatch) (bool, error)
	DeleteSchedule(ctx context.Context, ownerID, id string) (bool, error)

	GetAPIKeys(ctx context.Context, userID string) (*models.APIKeySet, error)
	UpsertAPIKeys(ctx context.Context, set *models.APIKeySet) error

	ListAnalytics(ctx context.Context, ownerID, videoID string) ([]models.Analytics, error)
}

// VideoPatch lists the video columns a write may change. Nil fields are left alone.
type VideoPatch struct {
	Title          *string
	Description    *string
	Tags           []string
	ThumbnailURL   *string
	RenderJobID    *string
	RenderStatus   *string
	VideoURL       *string
	VoiceoverURL   *string
	VoiceoverKey   *string
	ErrorMessage   *string
	PublishResults datatypes.JSON
}

func (p VideoPatch) Columns() map[string]any {
	cols := map[string]any{}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	set("title", p.Title)
	set("description", p.Description)
	set("thumbnail_url", p.ThumbnailURL)
	set("render_job_id", p.RenderJobID)
	set("render_status", p.RenderStatus)
	set("video_url", p.VideoURL)
	set("voiceover_url", p.VoiceoverURL)
	set("voiceover_key", p.VoiceoverKey)
	set("error_message", p.ErrorMessage)
	if p.Tags != nil {
		cols["tags"] = pqArray(p.Tags)
	}
	if p.PublishResults != nil {
		cols["publish_results"] = p.PublishResults
	}
	return cols
}

func (p VideoPatch) Apply(v *models.Video) {
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&v.Title, p.Title)
	apply(&v.Description, p.Description)
	apply(&v.ThumbnailURL, p.ThumbnailURL)
	apply(&v.RenderJobID, p.RenderJobID)
	apply(&v.RenderStatus, p.RenderStatus)
	apply(&v.VideoURL, p.VideoURL)
	apply(&v.VoiceoverURL, p.VoiceoverURL)
	apply(&v.VoiceoverKey, p.VoiceoverKey)
	apply(&v.ErrorMessage, p.ErrorMessage)
	if p.Tags != nil {
		v.Tags = pqArray(p.Tags)
	}
	if p.PublishResults != nil {
		v.PublishResults = append(datatypes.JSON(nil), p.PublishResults...)
	}
}

// SchedulePatch lists the schedule columns a status transition may change.
type SchedulePatch struct {
	Results      datatypes.JSON
	ErrorMessage *string
}

func (p SchedulePatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.Results != nil {
		cols["results"] = p.Results
	}
	if p.ErrorMessage != nil {
		cols["error_message"] = *p.ErrorMessage
	}
	return cols
}

func (p SchedulePatch) Apply(s *models.Schedule) {
	if p.Results != nil {
		s.Results = append(datatypes.JSON(nil), p.Results...)
	}
	if p.ErrorMessage != nil {
		s.ErrorMessage = *p.ErrorMessage
	}
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }
