// Package domain provides core domain models and types.
package domain

// Category identifies one subject slot in a student's exam snapshot.
// At most one active result exists per category. Korean and Math collapse
// their common and elective rows into a single entry; the four inquiry
// slots are filled in input order.
type Category string

const (
	CategoryKorean     Category = "korean"
	CategoryMath       Category = "math"
	CategoryEnglish    Category = "english"
	CategoryHistory    Category = "history" // Korean History (한국사)
	CategorySocial1    Category = "social1"
	CategorySocial2    Category = "social2"
	CategoryScience1   Category = "science1"
	CategoryScience2   Category = "science2"
	CategorySecondLang Category = "second_lang"
)

// AllCategories returns the fixed category enumeration in canonical order.
func AllCategories() []Category {
	return []Category{
		CategoryKorean,
		CategoryMath,
		CategoryEnglish,
		CategoryHistory,
		CategorySocial1,
		CategorySocial2,
		CategoryScience1,
		CategoryScience2,
		CategorySecondLang,
	}
}

// Valid reports whether c is part of the fixed enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryKorean, CategoryMath, CategoryEnglish, CategoryHistory,
		CategorySocial1, CategorySocial2, CategoryScience1, CategoryScience2,
		CategorySecondLang:
		return true
	}
	return false
}

// Area returns the scoring axis the category belongs to.
func (c Category) Area() Area {
	switch c {
	case CategoryKorean:
		return AreaKorean
	case CategoryMath:
		return AreaMath
	case CategoryEnglish:
		return AreaEnglish
	case CategoryHistory:
		return AreaHistory
	case CategorySocial1, CategorySocial2, CategoryScience1, CategoryScience2:
		return AreaInquiry
	case CategorySecondLang:
		return AreaSecondLang
	}
	return ""
}

// Area is the scoring axis used by formula weights. The four inquiry
// category slots share a single inquiry area, matching how institutions
// publish their reflection ratios (국/수/영/탐/한/외).
type Area string

const (
	AreaKorean     Area = "korean"
	AreaMath       Area = "math"
	AreaEnglish    Area = "english"
	AreaInquiry    Area = "inquiry"
	AreaHistory    Area = "history"
	AreaSecondLang Area = "second_lang"
)

// AllAreas returns the fixed area enumeration in canonical order.
func AllAreas() []Area {
	return []Area{AreaKorean, AreaMath, AreaEnglish, AreaInquiry, AreaHistory, AreaSecondLang}
}

// Valid reports whether a is part of the fixed enumeration.
func (a Area) Valid() bool {
	switch a {
	case AreaKorean, AreaMath, AreaEnglish, AreaInquiry, AreaHistory, AreaSecondLang:
		return true
	}
	return false
}

// Track represents the academic track an admission unit recruits from.
type Track string

const (
	TrackNatural    Track = "natural"
	TrackHumanities Track = "humanities"
	TrackOther      Track = "other"
)

// SubjectResult is a student's single active result for one category.
type SubjectResult struct {
	Category      Category `json:"category"`
	Elective      string   `json:"elective,omitempty"` // e.g. "미적분"; empty when only the common subject was sat
	StandardScore float64  `json:"standard_score"`
	Percentile    float64  `json:"percentile"`
	Grade         int      `json:"grade"` // 1 (best) to 9
}

// SubjectSet maps each category to the student's active result.
// Absent categories were not taken. The map always comes from the
// normalizer, so the per-category uniqueness invariant holds.
type SubjectSet map[Category]SubjectResult

// Has reports whether the student sat the category.
func (s SubjectSet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// InquiryResults returns the inquiry-slot results present, in slot order
// (social1, social2, science1, science2). Slot order is the normalizer's
// input-order policy, so it is stable across runs.
func (s SubjectSet) InquiryResults() []SubjectResult {
	slots := []Category{CategorySocial1, CategorySocial2, CategoryScience1, CategoryScience2}
	out := make([]SubjectResult, 0, len(slots))
	for _, c := range slots {
		if r, ok := s[c]; ok {
			out = append(out, r)
		}
	}
	return out
}

// HasArea reports whether the student sat at least one subject in the area.
func (s SubjectSet) HasArea(a Area) bool {
	for c := range s {
		if c.Area() == a {
			return true
		}
	}
	return false
}

// RawScoreRow is one row from the student data store, as stored.
// Numeric fields arrive as text and are validated by the normalizer;
// malformed values are an explicit error, never a silent zero.
type RawScoreRow struct {
	SubjectCode   string `json:"subject_code"` // S1..S27
	StandardScore string `json:"standard_score"`
	Percentile    string `json:"percentile"`
	Grade         string `json:"grade"`
}
