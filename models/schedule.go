package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	SchedulePublished ScheduleStatus = "published"
	ScheduleFailed    ScheduleStatus = "failed"
)

type Schedule struct {
	ID            string         `gorm:"primaryKey;type:uuid" json:"id"`
	VideoID       string         `gorm:"type:uuid;not null;index" json:"video_id"`
	SeriesID      string         `gorm:"type:uuid;not null;index" json:"series_id"`
	OwnerID       string         `gorm:"not null;index" json:"owner_id"`
	ScheduledTime time.Time      `gorm:"not null;index" json:"scheduled_time"`
	Platforms     pq.StringArray `gorm:"type:text[];not null" json:"platforms"`
	Status        ScheduleStatus `gorm:"size:16;not null;default:'scheduled';index" json:"status"`
	// DispatchedAt is set while a publish task for this schedule is in flight.
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty"`
	Results      datatypes.JSON `gorm:"type:jsonb" json:"results,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Schedule) TableName() string {
	return "schedules"
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
