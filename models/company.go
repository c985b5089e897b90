package models

import (
	"time"

	"gorm.io/gorm"
)

// Company is a read-only profile row backing the in-memory company catalog.
// The primary key is a stable lowercase code (e.g. "naver"), not a uuid,
// because the catalog resolves display names to codes.
type Company struct {
	CompanyID           string         `gorm:"primaryKey;size:100" json:"company_id"`
	Name                string         `gorm:"not null" json:"name"`
	TalentProfile       string         `gorm:"type:text" json:"talent_profile"`
	CoreCompetencies    []string       `gorm:"serializer:json" json:"core_competencies"`
	TechFocus           []string       `gorm:"serializer:json" json:"tech_focus"`
	InterviewKeywords   []string       `gorm:"serializer:json" json:"interview_keywords"`
	CompanyCulture      string         `gorm:"type:text" json:"company_culture,omitempty"`
	TechnicalChallenges []string       `gorm:"serializer:json" json:"technical_challenges,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// Position is the position catalog referenced by resumes and interviews
type Position struct {
	PositionID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"position_id"`
	PositionName string         `gorm:"uniqueIndex;not null" json:"position_name"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
