package students

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/geobukschool/jungsi-engine/internal/domain"
	"github.com/rs/zerolog"
)

// Repository reads student master data from students.db. All data here is
// reference data owned by the upstream enrolment import; the engine never
// writes to it.
type Repository struct {
	studentsDB *sql.DB
	log        zerolog.Logger
}

// NewRepository creates a new student repository.
func NewRepository(studentsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		studentsDB: studentsDB,
		log:        log.With().Str("repo", "students").Logger(),
	}
}

const studentColumns = "id, name, exam_year, track, created_at, updated_at"

// GetByID retrieves a student by id. Returns nil if not found.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = ?"

	var s Student
	err := r.studentsDB.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.ExamYear, &s.Track, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student %d: %w", id, err)
	}
	return &s, nil
}

// ListIDs returns the ids of every student for an exam year, ordered by id
// so batch runs walk students in a stable order. A zero year lists all.
func (r *Repository) ListIDs(ctx context.Context, examYear int) ([]int64, error) {
	query := "SELECT id FROM students ORDER BY id"
	args := []interface{}{}
	if examYear != 0 {
		query = "SELECT id FROM students WHERE exam_year = ? ORDER BY id"
		args = append(args, examYear)
	}

	rows, err := r.studentsDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list student ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student ids: %w", err)
	}
	return ids, nil
}

// GetScoreRows retrieves a student's raw score rows in subject-code order.
// Values stay as text: the normalizer owns parsing and validation.
func (r *Repository) GetScoreRows(ctx context.Context, studentID int64) ([]domain.RawScoreRow, error) {
	query := `
		SELECT subject_code, standard_score, percentile, grade
		FROM score_rows
		WHERE student_id = ?
		ORDER BY id ASC
	`

	rows, err := r.studentsDB.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query score rows for student %d: %w", studentID, err)
	}
	defer rows.Close()

	var out []domain.RawScoreRow
	for rows.Next() {
		var row domain.RawScoreRow
		if err := rows.Scan(&row.SubjectCode, &row.StandardScore, &row.Percentile, &row.Grade); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score rows: %w", err)
	}
	return out, nil
}

// GetAppliedUnits retrieves the unit ids a student has applied to, ordered
// by insertion so recompute output ordering is reproducible.
func (r *Repository) GetAppliedUnits(ctx context.Context, studentID int64) ([]int64, error) {
	query := "SELECT unit_id FROM applications WHERE student_id = ? ORDER BY id ASC"

	rows, err := r.studentsDB.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications for student %d: %w", studentID, err)
	}
	defer rows.Close()

	var units []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		units = append(units, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}
	return units, nil
}

// GetScoreSheet loads everything the pipeline needs for one student in one
// call. Returns nil if the student does not exist.
func (r *Repository) GetScoreSheet(ctx context.Context, studentID int64) (*ScoreSheet, error) {
	student, err := r.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, nil
	}

	scoreRows, err := r.GetScoreRows(ctx, studentID)
	if err != nil {
		return nil, err
	}
	units, err := r.GetAppliedUnits(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return &ScoreSheet{
		Student:      *student,
		Rows:         scoreRows,
		AppliedUnits: units,
	}, nil
}
