package models

import (
	"time"

	"gorm.io/gorm"
)

// Interview is written once per completed interview by the post-interview
// evaluation pipeline. Progress state never lives here; the orchestration
// core keeps sessions in memory until completion.
type Interview struct {
	InterviewID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"interview_id"`
	UserID          string         `gorm:"size:255;index" json:"user_id"`
	CompanyID       string         `gorm:"size:100;not null;index" json:"company_id"`
	PositionID      *string        `gorm:"type:uuid;index" json:"position_id,omitempty"`
	PostingID       *string        `gorm:"size:255" json:"posting_id,omitempty"`
	UserScore       float64        `gorm:"type:decimal(5,2)" json:"user_score"`
	AIScore         float64        `gorm:"type:decimal(5,2)" json:"ai_score"`
	ImprovementPlan string         `gorm:"type:text" json:"improvement_plan,omitempty"`
	Date            time.Time      `gorm:"not null" json:"date"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	HistoryDetails []HistoryDetail `gorm:"foreignKey:InterviewID" json:"history_details,omitempty"`
}

// HistoryDetail is one evaluated question/answer pair. Each question yields
// two rows, one per answerer.
type HistoryDetail struct {
	ID              string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InterviewID     string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	Who             string         `gorm:"size:10;not null;check:who IN ('user', 'ai')" json:"who"`
	QuestionIndex   int            `gorm:"not null" json:"question_index"`
	QuestionContent string         `gorm:"type:text;not null" json:"question_content"`
	QuestionIntent  string         `gorm:"type:text" json:"question_intent"`
	QuestionLevel   int            `gorm:"not null;default:3" json:"question_level"`
	Answer          string         `gorm:"type:text" json:"answer"`
	Feedback        string         `gorm:"type:text" json:"feedback"`
	Sequence        int            `gorm:"not null" json:"sequence"`
	Duration        float64        `json:"duration"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Interview Interview `gorm:"foreignKey:InterviewID" json:"interview"`
}
