package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/geobukschool/jungsi-engine/internal/modules/batch"
	"github.com/rs/zerolog"
)

// RecomputeJob runs the nightly full recompute for the active cohort.
// Formula or cut data imported during the day lands in everyone's results
// by morning even if nobody triggered a manual run.
type RecomputeJob struct {
	orchestrator *batch.Orchestrator
	examYear     int
	timeout      time.Duration
	log          zerolog.Logger
}

// NewRecomputeJob creates the nightly recompute job.
func NewRecomputeJob(orchestrator *batch.Orchestrator, examYear int, log zerolog.Logger) *RecomputeJob {
	return &RecomputeJob{
		orchestrator: orchestrator,
		examYear:     examYear,
		timeout:      2 * time.Hour,
		log:          log.With().Str("job", "nightly_recompute").Logger(),
	}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return "nightly_recompute"
}

// Run executes the full recompute. A manual run already in flight is not an
// error; the nightly pass just yields.
func (j *RecomputeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	summary, err := j.orchestrator.Run(ctx, batch.Options{ExamYear: j.examYear})
	if err != nil {
		if errors.Is(err, batch.ErrRunInProgress) {
			j.log.Info().Msg("Recompute already running, skipping nightly pass")
			return nil
		}
		return err
	}

	j.log.Info().
		Str("run_id", summary.RunID).
		Int("done", summary.StudentsDone).
		Int("failed", summary.StudentsFailed).
		Msg("Nightly recompute finished")
	return nil
}
