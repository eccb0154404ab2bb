package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTikTok  Platform = "tiktok"
	PlatformBoth    Platform = "both"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformYouTube, PlatformTikTok, PlatformBoth:
		return true
	}
	return false
}

// Targets expands p into the concrete platforms a video is published to.
func (p Platform) Targets() []string {
	switch p {
	case PlatformYouTube:
		return []string{string(PlatformYouTube)}
	case PlatformTikTok:
		return []string{string(PlatformTikTok)}
	case PlatformBoth:
		return []string{string(PlatformYouTube), string(PlatformTikTok)}
	}
	return nil
}

type SeriesStatus string

const (
	SeriesActive   SeriesStatus = "active"
	SeriesPaused   SeriesStatus = "paused"
	SeriesArchived SeriesStatus = "archived"
)

type Series struct {
	ID            string       `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID       string       `gorm:"not null;index" json:"owner_id"`
	Title         string       `gorm:"not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description,omitempty"`
	Platform      Platform     `gorm:"size:16;not null;default:'youtube'" json:"platform"`
	Topic         string       `gorm:"not null" json:"topic"`
	ContentPrompt string       `gorm:"type:text;not null" json:"content_prompt"`
	Status        SeriesStatus `gorm:"size:16;not null;default:'active';index" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	// Video count (computed field, not persisted)
	VideoCount int `gorm:"-" json:"video_count"`
}

func (Series) TableName() string {
	return "series"
}

func (s *Series) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
