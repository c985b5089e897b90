package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veriview/backend/models"
	"gorm.io/gorm"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Company{},
		&models.Position{},
		&models.AIResume{},
		&models.UserResume{},
		&models.Interview{},
		&models.HistoryDetail{},
		&models.MediaFile{},
		&models.GazeAnalysis{},
	)
}

// Company operations

func (r *GORMRepository) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&company).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get company", "error", err, "company_id", companyID)
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (r *GORMRepository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := r.db.WithContext(ctx).Find(&companies).Error; err != nil {
		slog.Error("Failed to list companies", "error", err)
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

func (r *GORMRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		slog.Error("Failed to create company", "error", err, "company_id", company.CompanyID)
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// Position operations

func (r *GORMRepository) GetPositionByName(ctx context.Context, name string) (*models.Position, error) {
	var position models.Position
	if err := r.db.WithContext(ctx).Where("position_name = ?", name).First(&position).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get position", "error", err, "position_name", name)
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &position, nil
}

func (r *GORMRepository) CreatePosition(ctx context.Context, position *models.Position) error {
	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		slog.Error("Failed to create position", "error", err, "position_name", position.PositionName)
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

// Resume operations

func (r *GORMRepository) GetAIResume(ctx context.Context, companyID, position string) (*models.AIResume, error) {
	var resume models.AIResume
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND position = ?", companyID, position).
		Order("created_at DESC").
		First(&resume).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get AI resume", "error", err, "company_id", companyID, "position", position)
		return nil, fmt.Errorf("failed to get AI resume: %w", err)
	}
	return &resume, nil
}

func (r *GORMRepository) CreateAIResume(ctx context.Context, resume *models.AIResume) error {
	if err := r.db.WithContext(ctx).Create(resume).Error; err != nil {
		slog.Error("Failed to create AI resume", "error", err, "company_id", resume.CompanyID)
		return fmt.Errorf("failed to create AI resume: %w", err)
	}
	slog.Info("AI resume created", "ai_resume_id", resume.AIResumeID, "company_id", resume.CompanyID)
	return nil
}

func (r *GORMRepository) GetUserResume(ctx context.Context, userResumeID string) (*models.UserResume, error) {
	var resume models.UserResume
	if err := r.db.WithContext(ctx).Where("user_resume_id = ?", userResumeID).First(&resume).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user resume", "error", err, "user_resume_id", userResumeID)
		return nil, fmt.Errorf("failed to get user resume: %w", err)
	}
	return &resume, nil
}

// Interview operations

func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err, "company_id", interview.CompanyID)
		return fmt.Errorf("failed to create interview: %w", err)
	}
	slog.Info("Interview created", "interview_id", interview.InterviewID, "user_id", interview.UserID)
	return nil
}

func (r *GORMRepository) CreateHistoryDetails(ctx context.Context, details []models.HistoryDetail) error {
	if len(details) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&details).Error; err != nil {
		slog.Error("Failed to create history details", "error", err, "count", len(details))
		return fmt.Errorf("failed to create history details: %w", err)
	}
	slog.Info("History details created", "interview_id", details[0].InterviewID, "count", len(details))
	return nil
}

func (r *GORMRepository) UpdateInterviewPlan(ctx context.Context, interviewID, plan string) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Interview{}).
		Where("interview_id = ?", interviewID).
		Update("improvement_plan", plan).Error; err != nil {
		slog.Error("Failed to update interview plan", "error", err, "interview_id", interviewID)
		return fmt.Errorf("failed to update interview plan: %w", err)
	}
	return nil
}

func (r *GORMRepository) GetInterview(ctx context.Context, interviewID string) (*models.Interview, error) {
	var interview models.Interview
	if err := r.db.WithContext(ctx).
		Preload("HistoryDetails").
		Where("interview_id = ?", interviewID).
		First(&interview).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview", "error", err, "interview_id", interviewID)
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return &interview, nil
}

// Media and gaze operations

func (r *GORMRepository) CreateMediaFile(ctx context.Context, media *models.MediaFile) error {
	if err := r.db.WithContext(ctx).Create(media).Error; err != nil {
		slog.Error("Failed to create media file", "error", err, "interview_id", media.InterviewID)
		return fmt.Errorf("failed to create media file: %w", err)
	}
	slog.Info("Media file recorded", "media_id", media.MediaID, "s3_key", media.S3Key)
	return nil
}

func (r *GORMRepository) CreateGazeAnalysis(ctx context.Context, analysis *models.GazeAnalysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		slog.Error("Failed to create gaze analysis", "error", err, "interview_id", analysis.InterviewID)
		return fmt.Errorf("failed to create gaze analysis: %w", err)
	}
	slog.Info("Gaze analysis recorded", "gaze_id", analysis.GazeID, "interview_id", analysis.InterviewID)
	return nil
}

func (r *GORMRepository) GetGazeAnalysisByInterview(ctx context.Context, interviewID string) (*models.GazeAnalysis, error) {
	var analysis models.GazeAnalysis
	if err := r.db.WithContext(ctx).Where("interview_id = ?", interviewID).First(&analysis).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get gaze analysis", "error", err, "interview_id", interviewID)
		return nil, fmt.Errorf("failed to get gaze analysis: %w", err)
	}
	return &analysis, nil
}
