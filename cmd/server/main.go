// Package main is the entry point for the score conversion and risk
// classification engine. The service loads the formula registry, serves the
// batch and results API, and runs the nightly recompute, maintenance, and
// backup jobs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geobukschool/jungsi-engine/internal/config"
	"github.com/geobukschool/jungsi-engine/internal/database"
	"github.com/geobukschool/jungsi-engine/internal/modules/admissions"
	"github.com/geobukschool/jungsi-engine/internal/modules/batch"
	"github.com/geobukschool/jungsi-engine/internal/modules/formula"
	"github.com/geobukschool/jungsi-engine/internal/modules/results"
	"github.com/geobukschool/jungsi-engine/internal/modules/students"
	"github.com/geobukschool/jungsi-engine/internal/reliability"
	"github.com/geobukschool/jungsi-engine/internal/scheduler"
	"github.com/geobukschool/jungsi-engine/internal/server"
	"github.com/geobukschool/jungsi-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting jungsi-engine")

	// Databases: students and catalog are reference data, results is
	// derived and wholly regenerable.
	studentsDB, err := database.New(database.Config{
		Path: cfg.StudentsDBPath(), Profile: database.ProfileStandard, Name: "students",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open students.db")
	}
	defer studentsDB.Close()

	catalogDB, err := database.New(database.Config{
		Path: cfg.CatalogDBPath(), Profile: database.ProfileStandard, Name: "catalog",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open catalog.db")
	}
	defer catalogDB.Close()

	resultsDB, err := database.New(database.Config{
		Path: cfg.ResultsDBPath(), Profile: database.ProfileDerived, Name: "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results.db")
	}
	defer resultsDB.Close()

	databases := map[string]*database.DB{
		"students": studentsDB,
		"catalog":  catalogDB,
		"results":  resultsDB,
	}
	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Migration failed")
		}
	}

	// Formula registry: reference data, fatal when it cannot be loaded.
	registry := formula.NewRegistry(log)
	if err := registry.LoadFile(cfg.FormulaPath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.FormulaPath).Msg("Failed to load formula definitions")
	}

	// Repositories
	studentRepo := students.NewRepository(studentsDB.Conn(), log)
	admissionsRepo := admissions.NewRepository(catalogDB.Conn(), log)
	resultsRepo := results.NewRepository(resultsDB.Conn(), log)

	// Events hub feeds live run progress to websocket subscribers.
	hub := server.NewEventsHub(log)

	orchestrator := batch.NewOrchestrator(
		studentRepo, admissionsRepo, resultsRepo, registry, hub, cfg.Concurrency, log,
	)

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		ExamYear:     cfg.ExamYear,
		FormulaPath:  cfg.FormulaPath,
		Databases:    databases,
		Registry:     registry,
		Orchestrator: orchestrator,
		ResultsRepo:  resultsRepo,
		CatalogRepo:  admissionsRepo,
		Hub:          hub,
	})

	// Scheduled jobs
	sched := scheduler.New(log)

	if err := sched.AddJob("0 0 3 * * *", scheduler.NewRecomputeJob(orchestrator, cfg.ExamYear, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register nightly recompute job")
	}

	maintenance := reliability.NewDailyMaintenanceJob(databases, resultsRepo, cfg.DataDir, log)
	if err := sched.AddJob("0 30 2 * * *", maintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	if cfg.Backup.Enabled() {
		startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		s3Client, err := reliability.NewS3Client(startupCtx, cfg.Backup, log)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}

		backupService := reliability.NewBackupService(
			s3Client, databases, cfg.DataDir, cfg.Backup.Retention, log,
		)
		if err := sched.AddJob("0 0 4 * * *", reliability.NewBackupJob(backupService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Warn().Msg("Backups not configured, skipping backup job")
	}

	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("registry_version", registry.Version()).
		Int("formulas", registry.Count()).
		Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
