package models

import (
	"time"

	"gorm.io/gorm"
)

// AIResume is the persisted source record for an AI candidate persona.
// Content holds the persona document as JSON so new fields do not require
// schema changes.
type AIResume struct {
	AIResumeID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"ai_resume_id"`
	CompanyID  string         `gorm:"size:100;index:idx_ai_resume_company_position" json:"company_id"`
	PositionID *string        `gorm:"type:uuid;index" json:"position_id,omitempty"`
	Position   string         `gorm:"size:255;index:idx_ai_resume_company_position" json:"position"`
	Title      string         `gorm:"size:255" json:"title"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserResume is an optional resume uploaded by a candidate
type UserResume struct {
	UserResumeID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_resume_id"`
	UserID       string         `gorm:"size:255;not null;index" json:"user_id"`
	Title        string         `gorm:"size:255" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
