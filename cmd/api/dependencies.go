package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/budget-importer/internal/domain/categorization"
	importhandler "github.com/FACorreiaa/budget-importer/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/budget-importer/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
	"github.com/FACorreiaa/budget-importer/pkg/config"
	"github.com/FACorreiaa/budget-importer/pkg/cron"
	"github.com/FACorreiaa/budget-importer/pkg/db"
	"github.com/FACorreiaa/budget-importer/pkg/storage"
)

// suggestTimeout bounds how long a preview waits for category suggestions.
const suggestTimeout = 5 * time.Second

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	ImportRepo importrepo.ImportRepository

	// Services
	CategorizationService *categorization.Service
	ImportService         *importservice.ImportService
	FileStorage           storage.Storage
	Scheduler             *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        int32(d.Config.Database.MinConns),
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	// Categories and history come from the same store as the import data
	d.CategorizationService = categorization.NewService(d.ImportRepo, nil, d.Logger)

	if d.Config.Observability.MetricsEnabled {
		d.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	d.ImportService = importservice.NewImportService(d.ImportRepo, importservice.Options{
		DateTolerance:         d.Config.Import.DateToleranceDays,
		ConfidenceThreshold:   d.Config.Import.ConfidenceThreshold,
		StartingBalanceMarker: d.Config.Import.StartingBalanceMarker,
	}, d.Logger).
		WithSuggester(newCategorizationAdapter(d.CategorizationService, suggestTimeout)).
		WithMetrics(importservice.NewMetrics(d.Registry))

	fileStorage, err := storage.New(&storage.Config{LocalPath: d.Config.Storage.LocalPath})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.Scheduler = cron.NewScheduler(fileStorage, d.Config.Storage.PurgeSchedule, d.Config.Storage.Retention(), d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.FileStorage, d.Config.Import.MaxUploadBytes, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
