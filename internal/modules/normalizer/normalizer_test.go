package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobukschool/jungsi-engine/internal/domain"
)

func TestNormalize_ElectiveSupersedesCommon(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S3", StandardScore: "120", Percentile: "80", Grade: "3"}, // 국어 common
		{SubjectCode: "S2", StandardScore: "131", Percentile: "93", Grade: "2"}, // 언어와 매체
		{SubjectCode: "S7", StandardScore: "110", Percentile: "70", Grade: "4"}, // 수학 common
		{SubjectCode: "S5", StandardScore: "127", Percentile: "89", Grade: "2"}, // 미적분
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	korean := set[domain.CategoryKorean]
	assert.Equal(t, "언어와 매체", korean.Elective)
	assert.Equal(t, 131.0, korean.StandardScore)

	math := set[domain.CategoryMath]
	assert.Equal(t, "미적분", math.Elective)
	assert.Equal(t, 127.0, math.StandardScore)
}

func TestNormalize_CommonRowUsedWithoutElective(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S3", StandardScore: "120", Percentile: "80", Grade: "3"},
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	korean, ok := set[domain.CategoryKorean]
	require.True(t, ok)
	assert.Empty(t, korean.Elective)
	assert.Equal(t, 120.0, korean.StandardScore)
}

func TestNormalize_GradedSubjectsSynthesizeStandardScore(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S8", Grade: "2"}, // 영어
		{SubjectCode: "S9", Grade: "3"}, // 한국사
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	english := set[domain.CategoryEnglish]
	assert.Equal(t, 2.0, english.StandardScore)
	assert.Equal(t, 2, english.Grade)

	history := set[domain.CategoryHistory]
	assert.Equal(t, 3.0, history.StandardScore)
	assert.Equal(t, 3, history.Grade)
}

func TestNormalize_InquiryFirstTwoInInputOrder(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S13", StandardScore: "65", Percentile: "92", Grade: "2"}, // 화학 Ⅰ
		{SubjectCode: "S14", StandardScore: "64", Percentile: "90", Grade: "2"}, // 생명과학 Ⅰ
		{SubjectCode: "S15", StandardScore: "70", Percentile: "99", Grade: "1"}, // third row, dropped
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	require.True(t, set.Has(domain.CategoryScience1))
	require.True(t, set.Has(domain.CategoryScience2))
	assert.Equal(t, 65.0, set[domain.CategoryScience1].StandardScore)
	assert.Equal(t, 64.0, set[domain.CategoryScience2].StandardScore)

	// The higher-scoring third row must not displace the first two.
	inquiry := set.InquiryResults()
	assert.Len(t, inquiry, 2)
}

func TestNormalize_MixedInquirySlots(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S10", StandardScore: "63", Percentile: "88", Grade: "3"}, // 생활과 윤리
		{SubjectCode: "S12", StandardScore: "66", Percentile: "94", Grade: "2"}, // 물리학 Ⅰ
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	assert.True(t, set.Has(domain.CategorySocial1))
	assert.True(t, set.Has(domain.CategoryScience1))
	assert.False(t, set.Has(domain.CategorySocial2))
	assert.False(t, set.Has(domain.CategoryScience2))
}

func TestNormalize_EmptyFieldsResolveToZero(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S5", StandardScore: "127", Percentile: "", Grade: ""},
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	math := set[domain.CategoryMath]
	assert.Equal(t, 127.0, math.StandardScore)
	assert.Equal(t, 0.0, math.Percentile)
	assert.Equal(t, 0, math.Grade)
}

func TestNormalize_MalformedFieldSkipsOnlyThatSubject(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S2", StandardScore: "131", Percentile: "93", Grade: "2"},
		{SubjectCode: "S5", StandardScore: "n/a", Percentile: "89", Grade: "2"}, // malformed math
		{SubjectCode: "S8", Grade: "2"},
	}

	set, issues := Normalize(rows)

	// The malformed category is absent, never zero-coerced.
	assert.False(t, set.Has(domain.CategoryMath))

	// Everything else survives.
	assert.Equal(t, 131.0, set[domain.CategoryKorean].StandardScore)
	assert.True(t, set.Has(domain.CategoryEnglish))

	require.Len(t, issues, 1)
	assert.Equal(t, domain.CategoryMath, issues[0].Category)
	assert.Equal(t, "standard_score", issues[0].Field)
	assert.Equal(t, "n/a", issues[0].Value)
}

func TestNormalize_MalformedElectiveFallsBackToCommon(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S7", StandardScore: "110", Percentile: "70", Grade: "4"},  // 수학 common
		{SubjectCode: "S5", StandardScore: "127", Percentile: "???", Grade: "2"}, // 미적분, malformed
	}

	set, issues := Normalize(rows)

	math, ok := set[domain.CategoryMath]
	require.True(t, ok)
	assert.Empty(t, math.Elective)
	assert.Equal(t, 110.0, math.StandardScore)

	require.Len(t, issues, 1)
	assert.Equal(t, domain.CategoryMath, issues[0].Category)
	assert.Equal(t, "percentile", issues[0].Field)
}

func TestNormalize_MalformedInquiryRowDoesNotConsumeSlot(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S13", StandardScore: "bad", Percentile: "92", Grade: "2"}, // malformed
		{SubjectCode: "S14", StandardScore: "64", Percentile: "90", Grade: "2"},
		{SubjectCode: "S15", StandardScore: "70", Percentile: "99", Grade: "1"},
	}

	set, issues := Normalize(rows)
	require.Len(t, issues, 1)

	// The two valid rows fill both science slots.
	assert.Equal(t, 64.0, set[domain.CategoryScience1].StandardScore)
	assert.Equal(t, 70.0, set[domain.CategoryScience2].StandardScore)
}

func TestNormalize_UnknownCodesIgnored(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S99", StandardScore: "bogus", Percentile: "bogus", Grade: "bogus"},
		{SubjectCode: "S8", Grade: "1"},
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)
	assert.True(t, set.Has(domain.CategoryEnglish))
	assert.Len(t, set, 1)
}

func TestNormalize_SecondLanguage(t *testing.T) {
	rows := []domain.RawScoreRow{
		{SubjectCode: "S27", StandardScore: "61", Percentile: "85", Grade: "3"},
	}

	set, issues := Normalize(rows)
	require.Empty(t, issues)

	lang, ok := set[domain.CategorySecondLang]
	require.True(t, ok)
	assert.Equal(t, 61.0, lang.StandardScore)
}
