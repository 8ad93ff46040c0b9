// Package results persists derived conversion and classification output in
// results.db. Every row is replaced wholesale by the next recompute for the
// student, so this database carries no data of record.
package results

import (
	"time"

	"github.com/geobukschool/jungsi-engine/internal/modules/risk"
	"github.com/geobukschool/jungsi-engine/internal/modules/scoring"
)

// StudentResult is one persisted (student, unit) outcome: the converted
// score plus the risk classification against the unit's cut curve.
type StudentResult struct {
	StudentID int64          `json:"student_id"`
	UnitID    int64          `json:"unit_id"`
	UnitName  string         `json:"unit_name"` // denormalized for display
	Score     scoring.Result `json:"score"`

	// Classified is false when the unit's cut curve had too little data;
	// the score fields are still valid in that case.
	Classified     bool       `json:"classified"`
	Level          risk.Level `json:"level,omitempty"`
	Band           string     `json:"band,omitempty"`
	ReferenceScore float64    `json:"reference_score,omitempty"`

	RunID           string    `json:"run_id"`
	RegistryVersion string    `json:"registry_version"`
	ComputedAt      time.Time `json:"computed_at"`
}

// RunStatus labels the lifecycle of a batch run row.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// BatchRun is the audit record of one recompute run.
type BatchRun struct {
	RunID           string     `json:"run_id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	StudentsTotal   int        `json:"students_total"`
	StudentsDone    int        `json:"students_done"`
	StudentsFailed  int        `json:"students_failed"`
	PairsWritten    int        `json:"pairs_written"`
	PairsSkipped    int        `json:"pairs_skipped"`
	RegistryVersion string     `json:"registry_version"`
	Status          RunStatus  `json:"status"`
}
