package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoProcessing VideoStatus = "processing"
	VideoReady      VideoStatus = "ready"
	VideoPublished  VideoStatus = "published"
	VideoFailed     VideoStatus = "failed"
)

// Terminal reports whether rendering has finished for a video in status s.
func (s VideoStatus) Terminal() bool {
	return s == VideoReady || s == VideoPublished || s == VideoFailed
}

type Video struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	SeriesID     string         `gorm:"type:uuid;not null;index" json:"series_id"`
	ScriptID     string         `gorm:"type:uuid;not null;index" json:"script_id"`
	OwnerID      string         `gorm:"not null;index" json:"owner_id"`
	Title        string         `gorm:"size:255" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Status       VideoStatus    `gorm:"size:16;not null;default:'pending';index" json:"status"`
	Platform     Platform       `gorm:"size:16;not null" json:"platform"`
	MediaAssets  pq.StringArray `gorm:"type:text[]" json:"media_assets"`
	Tags         pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`

	// Render job bookkeeping is kept apart from the playable result.
	RenderJobID  string `gorm:"index" json:"render_job_id,omitempty"`
	RenderStatus string `gorm:"size:32" json:"render_status,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`

	VoiceoverURL string `gorm:"type:text" json:"voiceover_url,omitempty"`
	VoiceoverKey string `json:"-"`

	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	PublishResults datatypes.JSON `gorm:"type:jsonb" json:"publish_results,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

type PublishStatus string

const (
	PublishSucceeded PublishStatus = "published"
	PublishFailed    PublishStatus = "failed"
)

// PublishOutcome is the result of one publish attempt on one platform.
type PublishOutcome struct {
	Status     PublishStatus `json:"status"`
	ExternalID string        `json:"external_id,omitempty"`
	URL        string        `json:"url,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
}

// PublishResults maps platform name to its latest outcome.
type PublishResults map[string]PublishOutcome

// AllPublished reports whether every platform in targets has a successful outcome.
func (r PublishResults) AllPublished(targets []string) bool {
	if len(targets) == 0 {
		return false
	}
	for _, p := range targets {
		if r[p].Status != PublishSucceeded {
			return false
		}
	}
	return true
}

// Merge folds in into r. A stored success is never replaced by a later
// failure for the same platform.
func (r PublishResults) Merge(in PublishResults) {
	for p, o := range in {
		if r[p].Status == PublishSucceeded && o.Status != PublishSucceeded {
			continue
		}
		r[p] = o
	}
}

func (v *Video) Outcomes() (PublishResults, error) {
	out := PublishResults{}
	if len(v.PublishResults) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(v.PublishResults, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *Video) SetOutcomes(r PublishResults) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	v.PublishResults = datatypes.JSON(b)
	return nil
}
