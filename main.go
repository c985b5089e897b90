package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veriview/backend/repository"
	"github.com/veriview/backend/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config := services.LoadConfig()
	ctx := context.Background()

	server := services.NewServer(config)

	// Initialize database connections
	var (
		gormDB *gorm.DB
		repo   *repository.GORMRepository
		pool   *pgxpool.Pool
	)
	if config.Database.URL != "" {
		var err error
		gormDB, err = gorm.Open(postgres.Open(config.Database.URL), &gorm.Config{})
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		repo = repository.NewGORMRepository(gormDB)

		if err := repo.AutoMigrate(); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("Database migrations completed")

		pool, err = pgxpool.New(ctx, config.Database.URL)
		if err != nil {
			slog.Warn("Failed to create pgx pool, catalog will use bundled defaults", "error", err)
		} else {
			defer pool.Close()
		}

		server.SetDatabase(repo, gormDB, pool)
	} else {
		slog.Warn("DATABASE_URL not set, running without persistence")
	}

	if err := server.InitializeServices(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Seed reference data after the catalog is loaded
	if repo != nil && config.Database.Seed {
		seeder := services.NewDatabaseSeeder(repo, services.NewCompanyCatalog())
		if err := seeder.SeedDatabase(); err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
	}

	server.Start()
}
