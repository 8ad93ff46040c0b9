// Package formula provides the versioned, validated catalogue of
// per-institution scoring definitions.
package formula

import (
	"fmt"

	"github.com/geobukschool/jungsi-engine/internal/domain"
)

// MathRule constrains which math elective an institution accepts.
type MathRule string

const (
	// MathRuleAny accepts any math elective.
	MathRuleAny MathRule = "any"
	// MathRuleCalcGeo requires calculus or geometry (probability-and-statistics fails the gate).
	MathRuleCalcGeo MathRule = "calc_geo"
	// MathRuleStatistics requires probability-and-statistics.
	MathRuleStatistics MathRule = "statistics"
)

// Valid reports whether the rule is known.
func (r MathRule) Valid() bool {
	switch r {
	case MathRuleAny, MathRuleCalcGeo, MathRuleStatistics:
		return true
	}
	return false
}

// InquiryRule constrains which inquiry subject mix an institution accepts.
type InquiryRule string

const (
	// InquiryRuleAny accepts any inquiry mix.
	InquiryRuleAny InquiryRule = "any"
	// InquiryRuleScience2 requires two science electives.
	InquiryRuleScience2 InquiryRule = "science2"
	// InquiryRuleSocial2 requires two social electives.
	InquiryRuleSocial2 InquiryRule = "social2"
)

// Valid reports whether the rule is known.
func (r InquiryRule) Valid() bool {
	switch r {
	case InquiryRuleAny, InquiryRuleScience2, InquiryRuleSocial2:
		return true
	}
	return false
}

// Gates holds an institution's minimum-criteria requirements. A failed gate
// marks the result ineligible; it never suppresses the numeric score.
type Gates struct {
	// GradeCeilings requires the area's grade to be at or below the ceiling
	// (grade 1 is best), e.g. english <= 3.
	GradeCeilings map[domain.Area]int `json:"grade_ceilings,omitempty"`
	// RequireAllAreas requires the student to have sat every weighted area.
	RequireAllAreas bool `json:"require_all_areas,omitempty"`
}

// FormulaDefinition is one institution-specific scoring formula.
type FormulaDefinition struct {
	InstitutionID int64        `json:"institution_id"`
	FormulaCode   string       `json:"formula_code"`
	Track         domain.Track `json:"track"`

	// Weights maps each reflected area to its ratio. Areas absent from the
	// map are not reflected. Weights are calibrated by the institution to
	// resolve onto TotalScale together with BaseScore and bonuses.
	Weights      map[domain.Area]float64 `json:"weights"`
	InquiryCount int                     `json:"inquiry_count"` // inquiry subjects averaged (1 or 2)
	BaseScore    float64                 `json:"base_score"`
	TotalScale   float64                 `json:"total_scale"` // declared total, e.g. 1000

	MathRule    MathRule    `json:"math_rule,omitempty"`
	InquiryRule InquiryRule `json:"inquiry_rule,omitempty"`

	// ElectiveBonus maps an elective subject name (e.g. "미적분") to points
	// added to that subject's standard score before weighting.
	ElectiveBonus map[string]float64 `json:"elective_bonus,omitempty"`

	Gates Gates `json:"gates,omitempty"`
}

// Key returns the registry key for the definition.
func (f *FormulaDefinition) Key() string {
	return Key(f.InstitutionID, f.FormulaCode)
}

// Key builds a registry key from an institution id and formula code.
func Key(institutionID int64, formulaCode string) string {
	return fmt.Sprintf("%d:%s", institutionID, formulaCode)
}

// DefinitionSet is the wire format of a formula definition file.
type DefinitionSet struct {
	Version  string              `json:"version"`
	Formulas []FormulaDefinition `json:"formulas"`
}
