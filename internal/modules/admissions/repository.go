package admissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/geobukschool/jungsi-engine/internal/modules/risk"
	"github.com/rs/zerolog"
)

// Repository reads the admission unit catalogue and historical cut points
// from catalog.db.
type Repository struct {
	catalogDB *sql.DB
	log       zerolog.Logger
}

// NewRepository creates a new admissions repository.
func NewRepository(catalogDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		catalogDB: catalogDB,
		log:       log.With().Str("repo", "admissions").Logger(),
	}
}

const unitColumns = "id, institution_id, name, formula_code, track, exam_year, created_at, updated_at"

// GetUnit retrieves an admission unit by id. Returns nil if not found.
func (r *Repository) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	query := "SELECT " + unitColumns + " FROM admission_units WHERE id = ?"

	var u Unit
	err := r.catalogDB.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.InstitutionID, &u.Name, &u.FormulaCode, &u.Track, &u.ExamYear,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admission unit %d: %w", id, err)
	}
	return &u, nil
}

// GetUnitsByYear retrieves every admission unit for an exam year, ordered
// by id.
func (r *Repository) GetUnitsByYear(ctx context.Context, examYear int) ([]Unit, error) {
	query := "SELECT " + unitColumns + " FROM admission_units WHERE exam_year = ? ORDER BY id ASC"

	rows, err := r.catalogDB.QueryContext(ctx, query, examYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query admission units for year %d: %w", examYear, err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(
			&u.ID, &u.InstitutionID, &u.Name, &u.FormulaCode, &u.Track, &u.ExamYear,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan admission unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admission units: %w", err)
	}
	return units, nil
}

// GetCutCurve loads the recorded cut points for a unit and data year as a
// sparse curve. The caller runs risk.Complete to fill missing levels;
// a unit with no recorded points returns an empty curve, which Complete
// rejects as insufficient.
func (r *Repository) GetCutCurve(ctx context.Context, unitID int64, dataYear int) (risk.CutCurve, error) {
	query := `
		SELECT level, score
		FROM cut_points
		WHERE unit_id = ? AND data_year = ?
		ORDER BY level ASC
	`

	rows, err := r.catalogDB.QueryContext(ctx, query, unitID, dataYear)
	if err != nil {
		return risk.CutCurve{}, fmt.Errorf("failed to query cut points for unit %d: %w", unitID, err)
	}
	defer rows.Close()

	curve := risk.CutCurve{UnitID: unitID}
	for rows.Next() {
		var p risk.CutPoint
		if err := rows.Scan(&p.Level, &p.Score); err != nil {
			return risk.CutCurve{}, fmt.Errorf("failed to scan cut point: %w", err)
		}
		curve.Points = append(curve.Points, p)
	}
	if err := rows.Err(); err != nil {
		return risk.CutCurve{}, fmt.Errorf("error iterating cut points: %w", err)
	}
	return curve, nil
}

// SaveCutPoints replaces the recorded cut points for a unit and data year.
// Used by the historical import; the engine itself only reads curves.
func (r *Repository) SaveCutPoints(ctx context.Context, unitID int64, dataYear int, points []risk.CutPoint) error {
	tx, err := r.catalogDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cut point transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cut_points WHERE unit_id = ? AND data_year = ?", unitID, dataYear); err != nil {
		return fmt.Errorf("failed to clear cut points for unit %d: %w", unitID, err)
	}

	for _, p := range points {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cut_points (unit_id, data_year, level, score) VALUES (?, ?, ?, ?)",
			unitID, dataYear, int(p.Level), p.Score); err != nil {
			return fmt.Errorf("failed to insert cut point for unit %d level %d: %w", unitID, p.Level, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cut points for unit %d: %w", unitID, err)
	}
	return nil
}
