package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobukschool/jungsi-engine/internal/domain"
	"github.com/geobukschool/jungsi-engine/internal/modules/formula"
)

func scienceSubjects() domain.SubjectSet {
	return domain.SubjectSet{
		domain.CategoryKorean: {
			Category: domain.CategoryKorean, Elective: "언어와 매체",
			StandardScore: 131, Percentile: 93, Grade: 2,
		},
		domain.CategoryMath: {
			Category: domain.CategoryMath, Elective: "미적분",
			StandardScore: 127, Percentile: 89, Grade: 2,
		},
		domain.CategoryEnglish: {
			Category: domain.CategoryEnglish, StandardScore: 2, Grade: 2,
		},
		domain.CategoryHistory: {
			Category: domain.CategoryHistory, StandardScore: 3, Grade: 3,
		},
		domain.CategoryScience1: {
			Category: domain.CategoryScience1, Elective: "화학 Ⅰ",
			StandardScore: 65, Percentile: 92, Grade: 2,
		},
		domain.CategoryScience2: {
			Category: domain.CategoryScience2, Elective: "생명과학 Ⅰ",
			StandardScore: 64, Percentile: 90, Grade: 2,
		},
	}
}

func weightedDefinition() *formula.FormulaDefinition {
	return &formula.FormulaDefinition{
		InstitutionID: 1001,
		FormulaCode:   "ga",
		Weights: map[domain.Area]float64{
			domain.AreaKorean:  0.3,
			domain.AreaMath:    0.3,
			domain.AreaInquiry: 0.4,
		},
		InquiryCount: 2,
		TotalScale:   1000,
	}
}

func TestEvaluate_WeightedSum(t *testing.T) {
	res := Evaluate(scienceSubjects(), weightedDefinition())

	// 131*0.3 + 127*0.3 + ((65+64)/2)*0.4 = 39.3 + 38.1 + 25.8
	assert.InDelta(t, 103.2, res.ConvertedScore, 1e-9)
	assert.True(t, res.Eligible)
	assert.Empty(t, res.GateFailures)
	assert.InDelta(t, 39.3, res.Breakdown[domain.AreaKorean], 1e-9)
	assert.InDelta(t, 38.1, res.Breakdown[domain.AreaMath], 1e-9)
	assert.InDelta(t, 25.8, res.Breakdown[domain.AreaInquiry], 1e-9)
}

func TestEvaluate_BaseScoreAndBonus(t *testing.T) {
	def := weightedDefinition()
	def.BaseScore = 500
	def.ElectiveBonus = map[string]float64{"미적분": 5}

	res := Evaluate(scienceSubjects(), def)

	// Math becomes (127+5)*0.3 = 39.6
	assert.InDelta(t, 500+39.3+39.6+25.8, res.ConvertedScore, 1e-9)
}

func TestEvaluate_SingleInquiryTakesBest(t *testing.T) {
	def := weightedDefinition()
	def.InquiryCount = 1

	res := Evaluate(scienceSubjects(), def)

	// Inquiry contribution uses only 화학 Ⅰ (65).
	assert.InDelta(t, 65*0.4, res.Breakdown[domain.AreaInquiry], 1e-9)
}

func TestEvaluate_MissingWeightedAreaIsGateFailure(t *testing.T) {
	subjects := scienceSubjects()
	delete(subjects, domain.CategoryScience1)
	delete(subjects, domain.CategoryScience2)

	res := Evaluate(subjects, weightedDefinition())

	assert.False(t, res.Eligible)
	assert.Contains(t, res.GateFailures, "missing_area:inquiry")
	// Numeric score still computed from the present areas.
	assert.InDelta(t, 39.3+38.1, res.ConvertedScore, 1e-9)
}

func TestEvaluate_MissingAreaFlaggedOnceWhenAlsoCeilingGated(t *testing.T) {
	subjects := scienceSubjects()
	delete(subjects, domain.CategoryScience1)
	delete(subjects, domain.CategoryScience2)

	// Inquiry is both weighted and grade-ceiling gated: one reason, not two.
	def := weightedDefinition()
	def.Gates.GradeCeilings = map[domain.Area]int{domain.AreaInquiry: 2}

	res := Evaluate(subjects, def)
	assert.False(t, res.Eligible)

	count := 0
	for _, f := range res.GateFailures {
		if f == "missing_area:inquiry" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEvaluate_CeilingGateOnUnweightedMissingArea(t *testing.T) {
	subjects := scienceSubjects()
	delete(subjects, domain.CategoryEnglish)

	// English is gated but not weighted; its absence still surfaces.
	def := weightedDefinition()
	def.Gates.GradeCeilings = map[domain.Area]int{domain.AreaEnglish: 2}

	res := Evaluate(subjects, def)
	assert.False(t, res.Eligible)
	assert.Contains(t, res.GateFailures, "missing_area:english")
}

func TestEvaluate_MathRuleGate(t *testing.T) {
	def := weightedDefinition()
	def.MathRule = formula.MathRuleCalcGeo

	res := Evaluate(scienceSubjects(), def)
	assert.True(t, res.Eligible)

	statsSubjects := scienceSubjects()
	m := statsSubjects[domain.CategoryMath]
	m.Elective = "확률과 통계"
	statsSubjects[domain.CategoryMath] = m

	res = Evaluate(statsSubjects, def)
	assert.False(t, res.Eligible)
	assert.Contains(t, res.GateFailures, "math_elective:calc_or_geo_required")
	// Ineligibility never suppresses the numeric score.
	assert.Greater(t, res.ConvertedScore, 0.0)
}

func TestEvaluate_InquiryRuleGate(t *testing.T) {
	def := weightedDefinition()
	def.InquiryRule = formula.InquiryRuleScience2

	res := Evaluate(scienceSubjects(), def)
	assert.True(t, res.Eligible)

	subjects := scienceSubjects()
	delete(subjects, domain.CategoryScience2)
	res = Evaluate(subjects, def)
	assert.False(t, res.Eligible)
	assert.Contains(t, res.GateFailures, "inquiry:two_science_required")
}

func TestEvaluate_GradeCeilingGate(t *testing.T) {
	def := weightedDefinition()
	def.Gates.GradeCeilings = map[domain.Area]int{domain.AreaEnglish: 1}

	res := Evaluate(scienceSubjects(), def)
	assert.False(t, res.Eligible)
	assert.Contains(t, res.GateFailures, "grade_ceiling:english>1")

	def.Gates.GradeCeilings[domain.AreaEnglish] = 2
	res = Evaluate(scienceSubjects(), def)
	assert.True(t, res.Eligible)
}

func TestEvaluate_StandardScoreSum(t *testing.T) {
	res := Evaluate(scienceSubjects(), weightedDefinition())

	// 표점합: Korean + Math + top two inquiry standard scores.
	assert.InDelta(t, 131+127+65+64, res.StandardScoreSum, 1e-9)
}

func TestEvaluate_Deterministic(t *testing.T) {
	subjects := scienceSubjects()
	def := weightedDefinition()
	def.Gates.GradeCeilings = map[domain.Area]int{
		domain.AreaEnglish: 1,
		domain.AreaKorean:  1,
		domain.AreaMath:    1,
	}

	first := Evaluate(subjects, def)
	for i := 0; i < 20; i++ {
		res := Evaluate(subjects, def)
		require.Equal(t, first.ConvertedScore, res.ConvertedScore)
		require.Equal(t, first.GateFailures, res.GateFailures)
	}
}
