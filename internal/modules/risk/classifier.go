package risk

import "fmt"

// InsufficientCutDataError reports a curve with too little historical data
// to classify against. The orchestrator records the unit as unclassifiable
// rather than failing the student.
type InsufficientCutDataError struct {
	UnitID int64
	Points int
}

func (e *InsufficientCutDataError) Error() string {
	return fmt.Sprintf("cut curve for unit %d has %d points, need at least 2", e.UnitID, e.Points)
}

// Classification is the risk band assignment for one (student, unit) pair.
type Classification struct {
	UnitID         int64   `json:"unit_id"`
	Level          Level   `json:"level"`
	Band           string  `json:"band"`
	ReferenceScore float64 `json:"reference_score"` // the cut point bracketing the score
}

// Classify locates the converted score on the cut curve and assigns the
// band by nearest-bracket containment. The ten levels are the interpolation
// grid; no sub-band interpolation happens here.
//
// Scanning runs from the most favorable level downward and stops at the
// first cut point the score reaches, so exact equality with a cut point
// resolves to the more favorable band (ties favor the student). A score
// below the lowest cut point is out of range below and classifies as the
// disqualified band.
func Classify(convertedScore float64, curve CutCurve) (Classification, error) {
	points := curve.sorted()
	if len(points) < 2 {
		return Classification{}, &InsufficientCutDataError{UnitID: curve.UnitID, Points: len(points)}
	}

	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		if convertedScore >= p.Score {
			return Classification{
				UnitID:         curve.UnitID,
				Level:          p.Level,
				Band:           p.Level.Band(),
				ReferenceScore: p.Score,
			}, nil
		}
	}

	// Below every cut point: worst band, anchored on the lowest cut.
	lowest := points[0]
	return Classification{
		UnitID:         curve.UnitID,
		Level:          lowest.Level,
		Band:           BandDisqualified,
		ReferenceScore: lowest.Score,
	}, nil
}
