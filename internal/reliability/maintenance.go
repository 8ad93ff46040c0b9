package reliability

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/geobukschool/jungsi-engine/internal/database"
)

// RunTrimmer trims old batch run audit rows.
type RunTrimmer interface {
	DeleteOlderRuns(ctx context.Context, keep int) (int64, error)
}

// DailyMaintenanceJob performs daily database maintenance: integrity
// checks, WAL checkpoints, disk space verification, and audit row trimming.
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	trimmer   RunTrimmer
	dataDir   string
	keepRuns  int
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	trimmer RunTrimmer,
	dataDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		trimmer:   trimmer,
		dataDir:   dataDir,
		keepRuns:  100,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Step 1: Integrity check for all databases
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("CRITICAL: Database integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}
	}

	// Step 2: WAL checkpoint for all databases (prevent bloat)
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
			// Not critical, continue
		}
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: Trim batch run audit rows
	if j.trimmer != nil {
		trimmed, err := j.trimmer.DeleteOlderRuns(ctx, j.keepRuns)
		if err != nil {
			j.log.Warn().Err(err).Msg("Failed to trim batch run rows")
		} else if trimmed > 0 {
			j.log.Info().Int64("trimmed", trimmed).Msg("Trimmed old batch run rows")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < 0.5 {
		return fmt.Errorf("only %.2f GB free on %s", availableGB, j.dataDir)
	}

	return nil
}

// BackupJob wraps the backup service as a scheduled job.
type BackupJob struct {
	service *BackupService
	log     zerolog.Logger
}

// NewBackupJob creates the nightly backup job.
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup set, then rotates old archives.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}
	if err := j.service.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
