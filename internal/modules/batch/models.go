// Package batch orchestrates full recomputes: normalize each student's
// score rows once, evaluate every applied admission unit, classify against
// cut curves, and replace the student's stored results atomically.
package batch

import (
	"time"
)

// Options selects the scope of a recompute run.
type Options struct {
	// StudentIDs limits the run to specific students. Empty means every
	// student for ExamYear.
	StudentIDs []int64
	// ExamYear selects the student cohort when StudentIDs is empty.
	ExamYear int
	// CutDataYear selects which historical year's cut points classify
	// against. Zero falls back to ExamYear - 1.
	CutDataYear int
}

// Reasons counted during a run. Skip* reasons are local problems (one pair
// or one subject row) and the run continues; Fail* reasons fail the student.
const (
	SkipUnitNotFound     = "unit_not_found"
	SkipFormulaNotFound  = "formula_not_found"
	SkipCutInsufficient  = "cut_data_insufficient"
	SkipDuplicateFormula = "duplicate_formula"
	SkipScoreParse       = "score_parse_error"
	FailStorage          = "storage_error"
	FailStudentNotFound  = "student_not_found"
	FailCancelled        = "cancelled"
	FailInternal         = "internal_error"
)

// Summary is the aggregate outcome of one run.
type Summary struct {
	RunID           string         `json:"run_id"`
	RegistryVersion string         `json:"registry_version"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	StudentsTotal   int            `json:"students_total"`
	StudentsDone    int            `json:"students_done"`
	StudentsFailed  int            `json:"students_failed"`
	PairsWritten    int            `json:"pairs_written"`
	PairsSkipped    int            `json:"pairs_skipped"`
	Reasons         map[string]int `json:"reasons,omitempty"`
	Cancelled       bool           `json:"cancelled"`
}

// studentOutcome is the per-student result flowing back from the workers.
type studentOutcome struct {
	studentID int64
	written   int
	skipped   int
	reasons   map[string]int
	err       error
	failKind  string
}
