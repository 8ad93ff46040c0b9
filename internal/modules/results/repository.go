package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/geobukschool/jungsi-engine/internal/database"
	"github.com/geobukschool/jungsi-engine/internal/modules/risk"
	"github.com/rs/zerolog"
)

// Repository persists derived results in results.db.
type Repository struct {
	resultsDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates a new results repository.
func NewRepository(resultsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		resultsDB: resultsDB,
		log:       log.With().Str("repo", "results").Logger(),
	}
}

const resultColumns = `student_id, unit_id, unit_name, institution_id, formula_code,
	converted_score, standard_score_sum, eligible, gate_failures, breakdown,
	risk_level, risk_band, reference_score, run_id, registry_version, computed_at`

// ReplaceForStudent atomically replaces every stored result for a student
// with the given set: delete-then-insert inside one transaction, so readers
// never observe a half-written mix of old and new rows. Inserts run in
// (unit_id) order so repeated runs write byte-identical data.
func (r *Repository) ReplaceForStudent(ctx context.Context, studentID int64, rows []StudentResult) error {
	sorted := make([]StudentResult, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UnitID < sorted[j].UnitID })

	return database.WithTransaction(r.resultsDB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM conversion_results WHERE student_id = ?", studentID); err != nil {
			return fmt.Errorf("failed to clear results for student %d: %w", studentID, err)
		}

		query := `
			INSERT INTO conversion_results (` + resultColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		for _, row := range sorted {
			failuresJSON, err := json.Marshal(row.Score.GateFailures)
			if err != nil {
				return fmt.Errorf("failed to marshal gate failures: %w", err)
			}
			breakdownJSON, err := json.Marshal(row.Score.Breakdown)
			if err != nil {
				return fmt.Errorf("failed to marshal breakdown: %w", err)
			}

			var level sql.NullInt64
			var reference sql.NullFloat64
			if row.Classified {
				level = sql.NullInt64{Int64: int64(row.Level), Valid: true}
				reference = sql.NullFloat64{Float64: row.ReferenceScore, Valid: true}
			}

			if _, err := tx.ExecContext(ctx, query,
				studentID,
				row.UnitID,
				row.UnitName,
				row.Score.InstitutionID,
				row.Score.FormulaCode,
				row.Score.ConvertedScore,
				row.Score.StandardScoreSum,
				row.Score.Eligible,
				string(failuresJSON),
				string(breakdownJSON),
				level,
				row.Band,
				reference,
				row.RunID,
				row.RegistryVersion,
				row.ComputedAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to insert result for student %d unit %d: %w",
					studentID, row.UnitID, err)
			}
		}
		return nil
	})
}

// GetByStudent retrieves every stored result for a student in unit order.
func (r *Repository) GetByStudent(ctx context.Context, studentID int64) ([]StudentResult, error) {
	query := "SELECT " + resultColumns + " FROM conversion_results WHERE student_id = ? ORDER BY unit_id ASC"

	rows, err := r.resultsDB.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for student %d: %w", studentID, err)
	}
	defer rows.Close()

	var out []StudentResult
	for rows.Next() {
		row, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return out, nil
}

func scanResult(rows *sql.Rows) (StudentResult, error) {
	var row StudentResult
	var failuresJSON, breakdownJSON string
	var level sql.NullInt64
	var reference sql.NullFloat64

	if err := rows.Scan(
		&row.StudentID,
		&row.UnitID,
		&row.UnitName,
		&row.Score.InstitutionID,
		&row.Score.FormulaCode,
		&row.Score.ConvertedScore,
		&row.Score.StandardScoreSum,
		&row.Score.Eligible,
		&failuresJSON,
		&breakdownJSON,
		&level,
		&row.Band,
		&reference,
		&row.RunID,
		&row.RegistryVersion,
		&row.ComputedAt,
	); err != nil {
		return StudentResult{}, fmt.Errorf("failed to scan result row: %w", err)
	}

	if failuresJSON != "" {
		if err := json.Unmarshal([]byte(failuresJSON), &row.Score.GateFailures); err != nil {
			return StudentResult{}, fmt.Errorf("failed to unmarshal gate failures: %w", err)
		}
	}
	if breakdownJSON != "" {
		if err := json.Unmarshal([]byte(breakdownJSON), &row.Score.Breakdown); err != nil {
			return StudentResult{}, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}
	if level.Valid {
		row.Classified = true
		row.Level = risk.Level(level.Int64)
		row.ReferenceScore = reference.Float64
	}
	return row, nil
}

// CreateRun records the start of a batch run.
func (r *Repository) CreateRun(ctx context.Context, run BatchRun) error {
	_, err := r.resultsDB.ExecContext(ctx, `
		INSERT INTO batch_runs (run_id, started_at, students_total, registry_version, status)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.StartedAt.UTC(), run.StudentsTotal, run.RegistryVersion, string(RunStatusRunning))
	if err != nil {
		return fmt.Errorf("failed to create batch run %s: %w", run.RunID, err)
	}
	return nil
}

// FinishRun records the final counters and status of a batch run.
func (r *Repository) FinishRun(ctx context.Context, run BatchRun) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}

	_, err := r.resultsDB.ExecContext(ctx, `
		UPDATE batch_runs
		SET finished_at = ?, students_done = ?, students_failed = ?,
		    pairs_written = ?, pairs_skipped = ?, status = ?
		WHERE run_id = ?
	`, finished, run.StudentsDone, run.StudentsFailed,
		run.PairsWritten, run.PairsSkipped, string(run.Status), run.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish batch run %s: %w", run.RunID, err)
	}
	return nil
}

// GetLatestRun retrieves the most recently started batch run. Returns nil
// if no run has ever happened.
func (r *Repository) GetLatestRun(ctx context.Context) (*BatchRun, error) {
	query := `
		SELECT run_id, started_at, finished_at, students_total, students_done,
		       students_failed, pairs_written, pairs_skipped, registry_version, status
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run BatchRun
	var finished sql.NullTime
	var status string
	err := r.resultsDB.QueryRowContext(ctx, query).Scan(
		&run.RunID, &run.StartedAt, &finished, &run.StudentsTotal, &run.StudentsDone,
		&run.StudentsFailed, &run.PairsWritten, &run.PairsSkipped, &run.RegistryVersion, &status,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest batch run: %w", err)
	}

	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	run.Status = RunStatus(status)
	return &run, nil
}

// DeleteOlderRuns trims batch run audit rows, keeping the newest keep rows.
// Called by the nightly maintenance job.
func (r *Repository) DeleteOlderRuns(ctx context.Context, keep int) (int64, error) {
	res, err := r.resultsDB.ExecContext(ctx, `
		DELETE FROM batch_runs
		WHERE run_id NOT IN (
			SELECT run_id FROM batch_runs ORDER BY started_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim batch runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
