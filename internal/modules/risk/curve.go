// Package risk classifies converted scores against historical percentile
// cut curves into discrete admission-risk bands.
package risk

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Level is one of the ten discrete risk delta levels derived from
// historical percentile deltas: +5 (most favorable) down to -5.
// Zero is not a level.
type Level int

// AllLevels returns the ten levels from least to most favorable.
func AllLevels() []Level {
	return []Level{-5, -4, -3, -2, -1, 1, 2, 3, 4, 5}
}

// position maps a level onto a uniform ordinal grid (1..10) for
// interpolation. The grid has no hole at zero.
func (l Level) position() float64 {
	if l < 0 {
		return float64(l + 6)
	}
	return float64(l + 5)
}

// Band returns the display band for a level reached by bracket containment.
func (l Level) Band() string {
	switch {
	case l >= 4:
		return "안전"
	case l >= 1:
		return "적정"
	case l >= -3:
		return "소신"
	default:
		return "위험"
	}
}

// BandDisqualified is the out-of-range-below band: the score fell under the
// lowest cut point of the curve.
const BandDisqualified = "결격/위험"

// CutPoint is one named percentile cut on the curve: the converted score at
// which a student crosses into the level.
type CutPoint struct {
	Level Level   `json:"level"`
	Score float64 `json:"score"`
}

// CutCurve is an admission unit's ordered cut-point sequence, on the same
// scale as the unit's converted scores.
type CutCurve struct {
	UnitID int64      `json:"unit_id"`
	Points []CutPoint `json:"points"`
}

// sorted returns the points ordered from least to most favorable level.
func (c CutCurve) sorted() []CutPoint {
	points := make([]CutPoint, len(c.Points))
	copy(points, c.Points)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Level < points[j].Level })
	return points
}

// FromAnchors builds a two-point curve from the initial-cutoff (최초컷) and
// supplementary-cutoff (추합컷) anchors. The initial cutoff marks the +1
// boundary, the supplementary cutoff the +4 boundary; Complete fills the
// remaining delta levels.
func FromAnchors(unitID int64, initialCut, supplementaryCut float64) CutCurve {
	return CutCurve{
		UnitID: unitID,
		Points: []CutPoint{
			{Level: 1, Score: initialCut},
			{Level: 4, Score: supplementaryCut},
		},
	}
}

// Complete fills the missing delta levels of a sparse curve by piecewise
// linear interpolation over the level grid, extrapolating linearly at the
// ends. Historical imports often carry only some of the ten columns; the
// classifier wants the full grid.
func Complete(curve CutCurve) (CutCurve, error) {
	known := curve.sorted()
	if len(known) < 2 {
		return CutCurve{}, &InsufficientCutDataError{UnitID: curve.UnitID, Points: len(known)}
	}

	xs := make([]float64, len(known))
	ys := make([]float64, len(known))
	for i, p := range known {
		xs[i] = p.Level.position()
		ys[i] = p.Score
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return CutCurve{}, fmt.Errorf("fit cut curve for unit %d: %w", curve.UnitID, err)
	}

	byLevel := make(map[Level]float64, len(known))
	for _, p := range known {
		byLevel[p.Level] = p.Score
	}

	out := CutCurve{UnitID: curve.UnitID, Points: make([]CutPoint, 0, 10)}
	for _, level := range AllLevels() {
		if score, ok := byLevel[level]; ok {
			out.Points = append(out.Points, CutPoint{Level: level, Score: score})
			continue
		}
		x := level.position()
		var score float64
		switch {
		case x < xs[0]:
			score = extrapolate(xs[0], ys[0], xs[1], ys[1], x)
		case x > xs[len(xs)-1]:
			n := len(xs)
			score = extrapolate(xs[n-2], ys[n-2], xs[n-1], ys[n-1], x)
		default:
			score = pl.Predict(x)
		}
		out.Points = append(out.Points, CutPoint{Level: level, Score: round2(score)})
	}

	return out, nil
}

func extrapolate(x0, y0, x1, y1, x float64) float64 {
	slope := (y1 - y0) / (x1 - x0)
	return y1 + slope*(x-x1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
