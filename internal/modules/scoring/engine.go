// Package scoring implements the pure score conversion engine: it maps a
// student's canonical subject set through an institution's formula onto the
// institution's declared scale.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/geobukschool/jungsi-engine/internal/domain"
	"github.com/geobukschool/jungsi-engine/internal/modules/formula"
)

// mathStatistics is the probability-and-statistics elective name used by
// math-elective gates.
const mathStatistics = "확률과 통계"

// Result is the outcome of evaluating one (subject set, formula) pair.
// Ineligibility is data, not an exception: a gate failure clears Eligible
// but the numeric score is still computed for diagnostic display.
type Result struct {
	InstitutionID    int64                   `json:"institution_id"`
	FormulaCode      string                  `json:"formula_code"`
	ConvertedScore   float64                 `json:"converted_score"`
	StandardScoreSum float64                 `json:"standard_score_sum"`
	Eligible         bool                    `json:"eligible"`
	GateFailures     []string                `json:"gate_failures,omitempty"`
	Breakdown        map[domain.Area]float64 `json:"breakdown,omitempty"`
}

// Evaluate computes the converted score for one student against one formula.
// Pure and deterministic: identical inputs always produce identical output.
//
// Steps:
//  1. Resolve each weighted area's subject; a required-but-absent area is a
//     gate failure, never a silent zero substitution.
//  2. Apply elective-specific bonus points before weighting.
//  3. Weighted sum plus base score, rounded to 2 decimals on the declared scale.
//  4. Evaluate minimum-criteria gates; failures mark the result ineligible.
func Evaluate(subjects domain.SubjectSet, def *formula.FormulaDefinition) Result {
	res := Result{
		InstitutionID: def.InstitutionID,
		FormulaCode:   def.FormulaCode,
		Breakdown:     make(map[domain.Area]float64),
	}

	var sum float64
	// Canonical area order keeps gate-failure ordering stable across runs.
	for _, area := range domain.AllAreas() {
		weight, weighted := def.Weights[area]
		if !weighted {
			continue
		}
		score, ok := areaScore(subjects, def, area)
		if !ok {
			res.GateFailures = append(res.GateFailures, fmt.Sprintf("missing_area:%s", area))
			continue
		}
		contribution := round2(weight * score)
		res.Breakdown[area] = contribution
		sum += contribution
	}

	res.ConvertedScore = round2(def.BaseScore + sum)
	res.StandardScoreSum = standardScoreSum(subjects)
	res.GateFailures = append(res.GateFailures, checkGates(subjects, def)...)
	res.Eligible = len(res.GateFailures) == 0

	return res
}

// areaScore resolves the bonus-adjusted score for one area. The inquiry area
// averages the top InquiryCount inquiry subjects; all other areas map to a
// single category.
func areaScore(subjects domain.SubjectSet, def *formula.FormulaDefinition, area domain.Area) (float64, bool) {
	if area == domain.AreaInquiry {
		return inquiryScore(subjects, def)
	}

	var cat domain.Category
	switch area {
	case domain.AreaKorean:
		cat = domain.CategoryKorean
	case domain.AreaMath:
		cat = domain.CategoryMath
	case domain.AreaEnglish:
		cat = domain.CategoryEnglish
	case domain.AreaHistory:
		cat = domain.CategoryHistory
	case domain.AreaSecondLang:
		cat = domain.CategorySecondLang
	default:
		return 0, false
	}

	subject, ok := subjects[cat]
	if !ok {
		return 0, false
	}
	return adjusted(subject, def), true
}

// inquiryScore averages the top InquiryCount inquiry subjects by adjusted
// score. Ties keep normalizer slot order, so the result is deterministic.
func inquiryScore(subjects domain.SubjectSet, def *formula.FormulaDefinition) (float64, bool) {
	results := subjects.InquiryResults()
	if len(results) == 0 {
		return 0, false
	}

	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = adjusted(r, def)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i] > scores[j] })

	count := def.InquiryCount
	if count > len(scores) {
		count = len(scores)
	}
	var sum float64
	for _, s := range scores[:count] {
		sum += s
	}
	return sum / float64(count), true
}

// adjusted applies the formula's elective-specific bonus to a subject's
// standard score.
func adjusted(subject domain.SubjectResult, def *formula.FormulaDefinition) float64 {
	score := subject.StandardScore
	if subject.Elective != "" {
		score += def.ElectiveBonus[subject.Elective]
	}
	return score
}

// checkGates evaluates the formula's minimum-criteria gates against the
// subject set. The returned reasons are appended to the result; they never
// suppress the numeric score.
func checkGates(subjects domain.SubjectSet, def *formula.FormulaDefinition) []string {
	var failures []string

	switch def.MathRule {
	case formula.MathRuleCalcGeo:
		if m, ok := subjects[domain.CategoryMath]; !ok || m.Elective == mathStatistics {
			failures = append(failures, "math_elective:calc_or_geo_required")
		}
	case formula.MathRuleStatistics:
		if m, ok := subjects[domain.CategoryMath]; !ok || m.Elective != mathStatistics {
			failures = append(failures, "math_elective:statistics_required")
		}
	}

	switch def.InquiryRule {
	case formula.InquiryRuleScience2:
		if !subjects.Has(domain.CategoryScience1) || !subjects.Has(domain.CategoryScience2) {
			failures = append(failures, "inquiry:two_science_required")
		}
	case formula.InquiryRuleSocial2:
		if !subjects.Has(domain.CategorySocial1) || !subjects.Has(domain.CategorySocial2) {
			failures = append(failures, "inquiry:two_social_required")
		}
	}

	// Canonical order for deterministic failure lists.
	for _, area := range domain.AllAreas() {
		ceiling, gated := def.Gates.GradeCeilings[area]
		if !gated {
			continue
		}
		if !subjects.HasArea(area) {
			// Weighted areas were already flagged during score resolution.
			if _, weighted := def.Weights[area]; !weighted {
				failures = append(failures, fmt.Sprintf("missing_area:%s", area))
			}
			continue
		}
		for _, cat := range domain.AllCategories() {
			if cat.Area() != area {
				continue
			}
			if subject, ok := subjects[cat]; ok && subject.Grade > ceiling {
				failures = append(failures, fmt.Sprintf("grade_ceiling:%s>%d", area, ceiling))
				break
			}
		}
	}

	if def.Gates.RequireAllAreas {
		for _, area := range domain.AllAreas() {
			if _, weighted := def.Weights[area]; weighted && !subjects.HasArea(area) {
				failures = append(failures, fmt.Sprintf("must_sit_all:%s", area))
			}
		}
	}

	return failures
}

// standardScoreSum is the 표점합: Korean + Math + the top two inquiry
// standard scores (bonuses excluded).
func standardScoreSum(subjects domain.SubjectSet) float64 {
	var sum float64
	if korean, ok := subjects[domain.CategoryKorean]; ok {
		sum += korean.StandardScore
	}
	if m, ok := subjects[domain.CategoryMath]; ok {
		sum += m.StandardScore
	}

	inquiry := subjects.InquiryResults()
	scores := make([]float64, len(inquiry))
	for i, r := range inquiry {
		scores[i] = r.StandardScore
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i] > scores[j] })
	for i, s := range scores {
		if i == 2 {
			break
		}
		sum += s
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
