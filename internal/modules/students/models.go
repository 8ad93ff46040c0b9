// Package students provides repository access to student master data:
// exam score rows as imported from the upstream feed, and the admission
// units each student has applied to.
package students

import (
	"time"

	"github.com/geobukschool/jungsi-engine/internal/domain"
)

// Student is one enrolled student.
type Student struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	ExamYear  int          `json:"exam_year"`
	Track     domain.Track `json:"track"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ScoreSheet bundles everything the batch pipeline needs for one student:
// the raw score rows (still unparsed) and the applied unit ids.
type ScoreSheet struct {
	Student      Student
	Rows         []domain.RawScoreRow
	AppliedUnits []int64
}
