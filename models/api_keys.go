package models

import (
	"time"

	"gorm.io/datatypes"
)

// APIKeySet holds one user's provider secrets, each encoded by the credential codec.
type APIKeySet struct {
	UserID    string         `gorm:"primaryKey" json:"user_id"`
	Keys      datatypes.JSON `gorm:"type:jsonb;not null" json:"-"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (APIKeySet) TableName() string {
	return "api_keys"
}
