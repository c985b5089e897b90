package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaFile records object-storage metadata for an uploaded artifact,
// typically a gaze-tracking video bound to a finalized interview.
type MediaFile struct {
	MediaID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"media_id"`
	UserID      string         `gorm:"size:255;index" json:"user_id"`
	InterviewID string         `gorm:"type:uuid;not null;index" json:"interview_id"`
	FileName    string         `gorm:"size:500;not null" json:"file_name"`
	FileType    string         `gorm:"size:50" json:"file_type"`
	S3Key       string         `gorm:"size:1000;not null" json:"s3_key"`
	S3URL       string         `gorm:"size:2000" json:"s3_url"`
	FileSize    int64          `json:"file_size"`
	Duration    float64        `json:"duration"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// GazeAnalysis stores the scored output of the external gaze engine once it
// has been linked to an interview.
type GazeAnalysis struct {
	GazeID            string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"gaze_id"`
	InterviewID       string         `gorm:"type:uuid;not null;uniqueIndex" json:"interview_id"`
	UserID            string         `gorm:"size:255;index" json:"user_id"`
	GazeScore         float64        `gorm:"type:decimal(5,2)" json:"gaze_score"`
	JitterScore       float64        `gorm:"type:decimal(5,2)" json:"jitter_score"`
	ComplianceScore   float64        `gorm:"type:decimal(5,2)" json:"compliance_score"`
	StabilityRating   string         `gorm:"size:50" json:"stability_rating"`
	GazePoints        string         `gorm:"type:text" json:"gaze_points"`
	CalibrationPoints string         `gorm:"type:text" json:"calibration_points"`
	VideoMetadata     string         `gorm:"type:text" json:"video_metadata"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}
