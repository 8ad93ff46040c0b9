package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geobukschool/jungsi-engine/internal/domain"
	"github.com/geobukschool/jungsi-engine/internal/modules/admissions"
	"github.com/geobukschool/jungsi-engine/internal/modules/formula"
	"github.com/geobukschool/jungsi-engine/internal/modules/normalizer"
	"github.com/geobukschool/jungsi-engine/internal/modules/results"
	"github.com/geobukschool/jungsi-engine/internal/modules/risk"
	"github.com/geobukschool/jungsi-engine/internal/modules/scoring"
	"github.com/geobukschool/jungsi-engine/internal/modules/students"
)

// ErrRunInProgress is returned when a run is requested while another run is
// still active. Runs never overlap; the caller retries later.
var ErrRunInProgress = errors.New("batch run already in progress")

// StudentStore provides student master data for the pipeline.
type StudentStore interface {
	ListIDs(ctx context.Context, examYear int) ([]int64, error)
	GetScoreSheet(ctx context.Context, studentID int64) (*students.ScoreSheet, error)
}

// CatalogStore provides admission units and historical cut curves.
type CatalogStore interface {
	GetUnit(ctx context.Context, id int64) (*admissions.Unit, error)
	GetCutCurve(ctx context.Context, unitID int64, dataYear int) (risk.CutCurve, error)
}

// ResultStore persists derived results and run audit rows.
type ResultStore interface {
	ReplaceForStudent(ctx context.Context, studentID int64, rows []results.StudentResult) error
	CreateRun(ctx context.Context, run results.BatchRun) error
	FinishRun(ctx context.Context, run results.BatchRun) error
}

// FormulaSource resolves scoring definitions by (institution, code).
type FormulaSource interface {
	Lookup(institutionID int64, formulaCode string) (*formula.FormulaDefinition, error)
	Version() string
}

// Status is a point-in-time snapshot of the orchestrator for the status
// endpoint.
type Status struct {
	Running     bool     `json:"running"`
	RunID       string   `json:"run_id,omitempty"`
	Current     int      `json:"current"`
	Total       int      `json:"total"`
	LastSummary *Summary `json:"last_summary,omitempty"`
}

// Orchestrator runs full recomputes over a bounded worker pool. One run at
// a time; per-student locks keep concurrent result writes from interleaving
// even if an external caller writes around the single-flight guard.
type Orchestrator struct {
	students    StudentStore
	catalog     CatalogStore
	results     ResultStore
	registry    FormulaSource
	emitter     EventEmitter
	concurrency int
	log         zerolog.Logger

	mu          sync.Mutex
	running     bool
	activeRunID string
	current     int
	total       int
	lastSummary *Summary

	locks studentLocks
}

// NewOrchestrator creates a batch orchestrator. A concurrency of zero or
// less falls back to 4 workers. The emitter may be nil.
func NewOrchestrator(
	studentStore StudentStore,
	catalog CatalogStore,
	resultStore ResultStore,
	registry FormulaSource,
	emitter EventEmitter,
	concurrency int,
	log zerolog.Logger,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Orchestrator{
		students:    studentStore,
		catalog:     catalog,
		results:     resultStore,
		registry:    registry,
		emitter:     emitter,
		concurrency: concurrency,
		log:         log.With().Str("component", "batch").Logger(),
	}
}

// Status returns a snapshot of the orchestrator state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Running:     o.running,
		RunID:       o.activeRunID,
		Current:     o.current,
		Total:       o.total,
		LastSummary: o.lastSummary,
	}
}

// Run executes one recompute over the selected students. It returns the
// run summary; per-student and per-pair failures are counted in the
// summary, not returned as errors. Cancellation via ctx stops dispatching
// at student boundaries: students already in flight finish, the rest are
// left untouched.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Summary{}, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.activeRunID = ""
		o.mu.Unlock()
	}()

	studentIDs := opts.StudentIDs
	if len(studentIDs) == 0 {
		ids, err := o.students.ListIDs(ctx, opts.ExamYear)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to list students: %w", err)
		}
		studentIDs = ids
	}

	if opts.CutDataYear == 0 {
		opts.CutDataYear = opts.ExamYear - 1
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	summary := Summary{
		RunID:           runID,
		RegistryVersion: o.registry.Version(),
		StartedAt:       startedAt,
		StudentsTotal:   len(studentIDs),
		Reasons:         make(map[string]int),
	}

	o.mu.Lock()
	o.activeRunID = runID
	o.current = 0
	o.total = len(studentIDs)
	o.mu.Unlock()

	reporter := newProgressReporter(o.emitter, runID, len(studentIDs))

	if err := o.results.CreateRun(ctx, results.BatchRun{
		RunID:           runID,
		StartedAt:       startedAt,
		StudentsTotal:   len(studentIDs),
		RegistryVersion: summary.RegistryVersion,
	}); err != nil {
		err = fmt.Errorf("failed to record batch run: %w", err)
		reporter.emitFailed(err, time.Since(startedAt))
		return Summary{}, err
	}

	o.log.Info().
		Str("run_id", runID).
		Int("students", len(studentIDs)).
		Int("workers", o.concurrency).
		Str("registry_version", summary.RegistryVersion).
		Msg("Batch recompute started")

	reporter.emitStarted()

	jobs := make(chan int64)
	outcomes := make(chan studentOutcome)

	var wg sync.WaitGroup
	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcomes <- o.processStudent(ctx, opts, runID, summary.RegistryVersion, id)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range studentIDs {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	processed := 0
	for outcome := range outcomes {
		processed++
		if outcome.err != nil {
			summary.StudentsFailed++
			summary.Reasons[outcome.failKind]++
			o.log.Warn().
				Err(outcome.err).
				Int64("student_id", outcome.studentID).
				Str("reason", outcome.failKind).
				Msg("Student recompute failed")
		} else {
			summary.StudentsDone++
			summary.PairsWritten += outcome.written
			if outcome.written == 0 {
				o.log.Warn().
					Int64("student_id", outcome.studentID).
					Int("skipped", outcome.skipped).
					Msg("Student recompute produced no results")
			}
		}
		summary.PairsSkipped += outcome.skipped
		for reason, n := range outcome.reasons {
			summary.Reasons[reason] += n
		}

		o.mu.Lock()
		o.current = processed
		o.mu.Unlock()
		reporter.report(processed, fmt.Sprintf("student %d", outcome.studentID))
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Cancelled = ctx.Err() != nil && processed < len(studentIDs)

	status := results.RunStatusCompleted
	if summary.Cancelled {
		status = results.RunStatusCancelled
	}

	// Record the final counters with a background context: the run context
	// may already be cancelled and the audit row should still be written.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	finished := summary.FinishedAt
	if err := o.results.FinishRun(finishCtx, results.BatchRun{
		RunID:          runID,
		FinishedAt:     &finished,
		StudentsDone:   summary.StudentsDone,
		StudentsFailed: summary.StudentsFailed,
		PairsWritten:   summary.PairsWritten,
		PairsSkipped:   summary.PairsSkipped,
		Status:         status,
	}); err != nil {
		o.log.Error().Err(err).Str("run_id", runID).Msg("Failed to finalize batch run record")
	}

	reporter.emitCompleted(summary, summary.FinishedAt.Sub(startedAt))

	o.mu.Lock()
	o.lastSummary = &summary
	o.mu.Unlock()

	o.log.Info().
		Str("run_id", runID).
		Int("done", summary.StudentsDone).
		Int("failed", summary.StudentsFailed).
		Int("pairs_written", summary.PairsWritten).
		Int("pairs_skipped", summary.PairsSkipped).
		Bool("cancelled", summary.Cancelled).
		Dur("elapsed", summary.FinishedAt.Sub(startedAt)).
		Msg("Batch recompute finished")

	return summary, nil
}

// processStudent runs the full pipeline for one student: normalize once,
// evaluate every applied unit, classify, dedupe, store.
func (o *Orchestrator) processStudent(ctx context.Context, opts Options, runID, version string, studentID int64) studentOutcome {
	outcome := studentOutcome{studentID: studentID, reasons: make(map[string]int)}

	sheet, err := o.students.GetScoreSheet(ctx, studentID)
	if err != nil {
		outcome.err = err
		outcome.failKind = FailInternal
		return outcome
	}
	if sheet == nil {
		outcome.err = fmt.Errorf("student %d not found", studentID)
		outcome.failKind = FailStudentNotFound
		return outcome
	}

	subjects, issues := normalizer.Normalize(sheet.Rows)
	for _, issue := range issues {
		// Parse errors are local to one subject; the category is simply
		// absent from the set and the rest of the student proceeds.
		outcome.reasons[SkipScoreParse]++
		o.log.Warn().
			Int64("student_id", studentID).
			Str("category", string(issue.Category)).
			Str("field", issue.Field).
			Str("value", issue.Value).
			Msg("Skipped malformed subject row")
	}

	computedAt := time.Now().UTC()

	// Dedup by (institution, formula code): two units sharing a formula
	// produce the same conversion, keep the higher-scoring pair.
	best := make(map[string]results.StudentResult)
	order := make([]string, 0, len(sheet.AppliedUnits))

	for _, unitID := range sheet.AppliedUnits {
		row, reason, err := o.evaluateUnit(ctx, opts, subjects, unitID)
		if err != nil {
			outcome.err = err
			outcome.failKind = FailInternal
			return outcome
		}
		if reason != "" {
			outcome.skipped++
			outcome.reasons[reason]++
			continue
		}
		if !row.Classified {
			// Pair is still written; the count surfaces thin cut data.
			outcome.reasons[SkipCutInsufficient]++
		}

		row.StudentID = studentID
		row.RunID = runID
		row.RegistryVersion = version
		row.ComputedAt = computedAt

		key := formula.Key(row.Score.InstitutionID, row.Score.FormulaCode)
		existing, seen := best[key]
		if !seen {
			best[key] = row
			order = append(order, key)
			continue
		}
		outcome.skipped++
		outcome.reasons[SkipDuplicateFormula]++
		if row.Score.ConvertedScore > existing.Score.ConvertedScore {
			best[key] = row
		}
	}

	rows := make([]results.StudentResult, 0, len(best))
	for _, key := range order {
		rows = append(rows, best[key])
	}

	// Per-student advisory lock: replace is transactional, but the lock
	// keeps two writers from racing delete-then-insert for the same student.
	unlock := o.locks.lock(studentID)
	err = o.results.ReplaceForStudent(ctx, studentID, rows)
	unlock()
	if err != nil {
		outcome.err = err
		outcome.failKind = FailStorage
		return outcome
	}

	outcome.written = len(rows)
	return outcome
}

// evaluateUnit scores and classifies one (student, unit) pair. A non-empty
// reason means the pair is skipped; an error aborts the student.
func (o *Orchestrator) evaluateUnit(ctx context.Context, opts Options, subjects domain.SubjectSet, unitID int64) (results.StudentResult, string, error) {
	unit, err := o.catalog.GetUnit(ctx, unitID)
	if err != nil {
		return results.StudentResult{}, "", err
	}
	if unit == nil {
		return results.StudentResult{}, SkipUnitNotFound, nil
	}

	def, err := o.registry.Lookup(unit.InstitutionID, unit.FormulaCode)
	if err != nil {
		var notFound *formula.FormulaNotFoundError
		if errors.As(err, &notFound) {
			return results.StudentResult{}, SkipFormulaNotFound, nil
		}
		return results.StudentResult{}, "", err
	}

	row := results.StudentResult{
		UnitID:   unitID,
		UnitName: unit.Name,
		Score:    scoring.Evaluate(subjects, def),
	}

	curve, err := o.catalog.GetCutCurve(ctx, unitID, opts.CutDataYear)
	if err != nil {
		return results.StudentResult{}, "", err
	}

	completed, err := risk.Complete(curve)
	if err != nil {
		var insufficient *risk.InsufficientCutDataError
		if errors.As(err, &insufficient) {
			// Score still stored, classification left empty.
			return row, "", nil
		}
		return results.StudentResult{}, "", err
	}

	classification, err := risk.Classify(row.Score.ConvertedScore, completed)
	if err != nil {
		return row, "", nil
	}

	row.Classified = true
	row.Level = classification.Level
	row.Band = classification.Band
	row.ReferenceScore = classification.ReferenceScore
	return row, "", nil
}

// studentLocks is a keyed mutex over student ids.
type studentLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// lock acquires the mutex for a student id and returns the unlock func.
func (l *studentLocks) lock(id int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
