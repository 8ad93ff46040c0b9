// Package admissions provides repository access to the admission unit
// catalogue and the historical cut curves used for risk classification.
package admissions

import (
	"time"

	"github.com/geobukschool/jungsi-engine/internal/domain"
)

// Unit is one admission unit (institution + department + recruitment
// group). The formula code selects the scoring definition in the registry.
type Unit struct {
	ID            int64        `json:"id"`
	InstitutionID int64        `json:"institution_id"`
	Name          string       `json:"name"`
	FormulaCode   string       `json:"formula_code"`
	Track         domain.Track `json:"track"`
	ExamYear      int          `json:"exam_year"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
