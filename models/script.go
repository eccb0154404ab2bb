package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScriptStatus string

const (
	ScriptDraft    ScriptStatus = "draft"
	ScriptApproved ScriptStatus = "approved"
)

type Script struct {
	ID               string       `gorm:"primaryKey;type:uuid" json:"id"`
	SeriesID         string       `gorm:"type:uuid;not null;index" json:"series_id"`
	OwnerID          string       `gorm:"not null;index" json:"owner_id"`
	Title            string       `gorm:"not null" json:"title"`
	Content          string       `gorm:"type:text;not null" json:"content"`
	Status           ScriptStatus `gorm:"size:16;not null;default:'draft'" json:"status"`
	ModelID          string       `gorm:"size:64" json:"model_id"`
	GenerationPrompt string       `gorm:"type:text" json:"generation_prompt,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (Script) TableName() string {
	return "scripts"
}

func (s *Script) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
