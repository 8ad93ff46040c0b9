// Package normalizer maps raw per-subject score rows into the canonical
// fixed-shape subject set used by the score calculation engine.
package normalizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geobukschool/jungsi-engine/internal/domain"
)

// SubjectParseError reports a malformed numeric field on a raw score row.
// Parse errors are local to the subject: the affected category is treated
// as not taken and the error is surfaced to the caller, never coerced to
// zero and never spread to the student's other subjects.
type SubjectParseError struct {
	Category domain.Category
	Field    string
	Value    string
}

func (e *SubjectParseError) Error() string {
	return fmt.Sprintf("subject %s: invalid numeric value %q for %s", e.Category, e.Value, e.Field)
}

// codeArea classifies a raw subject code within the source encoding.
type codeArea int

const (
	korCommon codeArea = iota
	korElective
	mathCommon
	mathElective
	english
	history
	society
	science
	secondLang
)

type subjectCode struct {
	name string
	area codeArea
}

// subjectCodes is the S1..S27 encoding used by the student data store.
// Korean and Math each have a common-subject code plus elective codes;
// the elective row supersedes the common row for the category.
var subjectCodes = map[string]subjectCode{
	"S1":  {"화법과 작문", korElective},
	"S2":  {"언어와 매체", korElective},
	"S3":  {"국어", korCommon},
	"S4":  {"확률과 통계", mathElective},
	"S5":  {"미적분", mathElective},
	"S6":  {"기하", mathElective},
	"S7":  {"수학", mathCommon},
	"S8":  {"영어", english},
	"S9":  {"한국사", history},
	"S10": {"생활과 윤리", society},
	"S11": {"윤리와 사상", society},
	"S12": {"물리학 Ⅰ", science},
	"S13": {"화학 Ⅰ", science},
	"S14": {"생명과학 Ⅰ", science},
	"S15": {"지구과학 Ⅰ", science},
	"S16": {"물리학 Ⅱ", science},
	"S17": {"화학 Ⅱ", science},
	"S18": {"생명과학 Ⅱ", science},
	"S19": {"지구과학 Ⅱ", science},
	"S20": {"한국지리", society},
	"S21": {"세계지리", society},
	"S22": {"동아시아사", society},
	"S23": {"세계사", society},
	"S24": {"경제", society},
	"S25": {"정치와 법", society},
	"S26": {"사회·문화", society},
	"S27": {"제2외국어", secondLang},
}

// Normalize builds the canonical subject set for one student from their raw
// score rows. Rules:
//   - Korean/Math: an elective row supersedes the common row for the category.
//   - English/Korean-History: the standard score is synthesized from the
//     grade (the source system publishes no standard score for these).
//   - Inquiry: the first two matching rows in input order fill the inquiry
//     slots. This ordering is a defined policy, not an artifact.
//   - Unknown subject codes are ignored.
//
// A malformed numeric field skips that row only: the affected category falls
// back to the next candidate row or ends up not taken, and every skipped row
// is reported as a SubjectParseError. The rest of the set is unaffected.
func Normalize(rows []domain.RawScoreRow) (domain.SubjectSet, []*SubjectParseError) {
	set := make(domain.SubjectSet)
	var issues []*SubjectParseError

	issues = append(issues, normalizeCollapsed(rows, set, domain.CategoryKorean, korCommon, korElective)...)
	issues = append(issues, normalizeCollapsed(rows, set, domain.CategoryMath, mathCommon, mathElective)...)
	issues = append(issues, normalizeGraded(rows, set, domain.CategoryEnglish, english)...)
	issues = append(issues, normalizeGraded(rows, set, domain.CategoryHistory, history)...)
	issues = append(issues, normalizeInquiry(rows, set)...)

	for _, row := range rows {
		code, ok := subjectCodes[strings.TrimSpace(row.SubjectCode)]
		if !ok || code.area != secondLang {
			continue
		}
		result, issue := parseResult(row, domain.CategorySecondLang, code.name)
		if issue != nil {
			issues = append(issues, issue)
			continue
		}
		set[domain.CategorySecondLang] = *result
		break
	}

	return set, issues
}

// normalizeCollapsed resolves a category with a mandatory-common slot plus an
// elective slot (Korean, Math). The first parseable elective row wins; the
// common row is used only when no elective row landed.
func normalizeCollapsed(rows []domain.RawScoreRow, set domain.SubjectSet, cat domain.Category, common, elective codeArea) []*SubjectParseError {
	var issues []*SubjectParseError
	var commonRow *domain.RawScoreRow

	for i, row := range rows {
		code, ok := subjectCodes[strings.TrimSpace(row.SubjectCode)]
		if !ok {
			continue
		}
		if code.area == elective {
			result, issue := parseResult(row, cat, code.name)
			if issue != nil {
				issues = append(issues, issue)
				continue
			}
			set[cat] = *result
			return issues
		}
		if code.area == common && commonRow == nil {
			commonRow = &rows[i]
		}
	}

	if commonRow != nil {
		result, issue := parseResult(*commonRow, cat, "")
		if issue != nil {
			return append(issues, issue)
		}
		set[cat] = *result
	}
	return issues
}

// normalizeGraded resolves a grade-only category (English, Korean History):
// the standard score is the grade itself.
func normalizeGraded(rows []domain.RawScoreRow, set domain.SubjectSet, cat domain.Category, area codeArea) []*SubjectParseError {
	var issues []*SubjectParseError
	for _, row := range rows {
		code, ok := subjectCodes[strings.TrimSpace(row.SubjectCode)]
		if !ok || code.area != area {
			continue
		}
		grade, issue := parseIntField(row.Grade, cat, "grade")
		if issue != nil {
			issues = append(issues, issue)
			continue
		}
		set[cat] = domain.SubjectResult{
			Category:      cat,
			StandardScore: float64(grade),
			Percentile:    0,
			Grade:         grade,
		}
		return issues
	}
	return issues
}

// normalizeInquiry fills the four inquiry slots from the first two parseable
// inquiry rows in input order. Each row lands in the first free slot of its
// own type (social1/social2 or science1/science2); a malformed row does not
// consume a slot.
func normalizeInquiry(rows []domain.RawScoreRow, set domain.SubjectSet) []*SubjectParseError {
	var issues []*SubjectParseError
	taken := 0
	for _, row := range rows {
		if taken == 2 {
			break
		}
		code, ok := subjectCodes[strings.TrimSpace(row.SubjectCode)]
		if !ok || (code.area != society && code.area != science) {
			continue
		}

		var cat domain.Category
		switch code.area {
		case society:
			cat = domain.CategorySocial1
			if set.Has(cat) {
				cat = domain.CategorySocial2
			}
		case science:
			cat = domain.CategoryScience1
			if set.Has(cat) {
				cat = domain.CategoryScience2
			}
		}
		if set.Has(cat) {
			// Residual third row of one type; first-seen wins.
			continue
		}

		result, issue := parseResult(row, cat, code.name)
		if issue != nil {
			issues = append(issues, issue)
			continue
		}
		set[cat] = *result
		taken++
	}
	return issues
}

// parseResult parses the numeric fields of a raw row into a SubjectResult.
// Empty fields mean "not recorded" and resolve to zero; non-empty malformed
// fields report a parse issue for the row.
func parseResult(row domain.RawScoreRow, cat domain.Category, elective string) (*domain.SubjectResult, *SubjectParseError) {
	standard, issue := parseFloatField(row.StandardScore, cat, "standard_score")
	if issue != nil {
		return nil, issue
	}
	percentile, issue := parseFloatField(row.Percentile, cat, "percentile")
	if issue != nil {
		return nil, issue
	}
	grade, issue := parseIntField(row.Grade, cat, "grade")
	if issue != nil {
		return nil, issue
	}

	return &domain.SubjectResult{
		Category:      cat,
		Elective:      elective,
		StandardScore: standard,
		Percentile:    percentile,
		Grade:         grade,
	}, nil
}

func parseFloatField(value string, cat domain.Category, field string) (float64, *SubjectParseError) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &SubjectParseError{Category: cat, Field: field, Value: value}
	}
	return f, nil
}

func parseIntField(value string, cat domain.Category, field string) (int, *SubjectParseError) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &SubjectParseError{Category: cat, Field: field, Value: value}
	}
	return n, nil
}
