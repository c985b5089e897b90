package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veriview/backend/models"
	"github.com/veriview/backend/repository"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo    *repository.GORMRepository
	catalog *CompanyCatalog
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository, catalog *CompanyCatalog) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo, catalog: catalog}
}

var defaultPositions = []string{
	"백엔드",
	"프론트엔드",
	"데이터 엔지니어",
	"안드로이드",
	"iOS",
	"DevOps",
}

// SeedDatabase seeds the companies and positions tables from the bundled
// catalog (idempotent).
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	for _, profile := range s.catalog.All() {
		if err := s.seedCompany(ctx, profile); err != nil {
			slog.Error("Failed to seed company", "company_id", profile.CompanyID, "error", err)
			return err
		}
	}

	for _, name := range defaultPositions {
		if err := s.seedPosition(ctx, name); err != nil {
			slog.Error("Failed to seed position", "position_name", name, "error", err)
			return err
		}
	}

	slog.Info("Database seeding completed",
		"companies", len(s.catalog.All()), "positions", len(defaultPositions))
	return nil
}

func (s *DatabaseSeeder) seedCompany(ctx context.Context, profile *CompanyProfile) error {
	existing, err := s.repo.GetCompany(ctx, profile.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to check company: %w", err)
	}
	if existing != nil {
		return nil
	}

	company := &models.Company{
		CompanyID:           profile.CompanyID,
		Name:                profile.DisplayName,
		TalentProfile:       profile.TalentProfile,
		CoreCompetencies:    profile.CoreCompetencies,
		TechFocus:           profile.TechFocus,
		InterviewKeywords:   profile.InterviewKeywords,
		CompanyCulture:      profile.CompanyCulture,
		TechnicalChallenges: profile.TechnicalChallenges,
	}
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return err
	}
	slog.Info("Seeded company", "company_id", profile.CompanyID)
	return nil
}

func (s *DatabaseSeeder) seedPosition(ctx context.Context, name string) error {
	existing, err := s.repo.GetPositionByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check position: %w", err)
	}
	if existing != nil {
		return nil
	}

	if err := s.repo.CreatePosition(ctx, &models.Position{PositionName: name}); err != nil {
		return err
	}
	slog.Info("Seeded position", "position_name", name)
	return nil
}
