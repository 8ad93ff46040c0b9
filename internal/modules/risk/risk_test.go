package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelBand(t *testing.T) {
	assert.Equal(t, "안전", Level(5).Band())
	assert.Equal(t, "안전", Level(4).Band())
	assert.Equal(t, "적정", Level(3).Band())
	assert.Equal(t, "적정", Level(1).Band())
	assert.Equal(t, "소신", Level(-1).Band())
	assert.Equal(t, "소신", Level(-3).Band())
	assert.Equal(t, "위험", Level(-4).Band())
	assert.Equal(t, "위험", Level(-5).Band())
}

func TestComplete_FromAnchors(t *testing.T) {
	// Initial cutoff 95 marks +1, supplementary cutoff 110 marks +4.
	curve := FromAnchors(42, 95, 110)

	completed, err := Complete(curve)
	require.NoError(t, err)
	require.Len(t, completed.Points, 10)

	byLevel := make(map[Level]float64)
	for _, p := range completed.Points {
		byLevel[p.Level] = p.Score
	}

	// Anchors preserved exactly.
	assert.Equal(t, 95.0, byLevel[1])
	assert.Equal(t, 110.0, byLevel[4])

	// Interior levels interpolate on the uniform grid: +1 and +4 are three
	// grid steps apart, so each step is 5 points.
	assert.InDelta(t, 100.0, byLevel[2], 1e-9)
	assert.InDelta(t, 105.0, byLevel[3], 1e-9)

	// Extrapolation continues the same slope outward.
	assert.InDelta(t, 115.0, byLevel[5], 1e-9)
	assert.InDelta(t, 90.0, byLevel[-1], 1e-9)
	assert.InDelta(t, 70.0, byLevel[-5], 1e-9)

	// More favorable level always costs at least as much.
	for i := 1; i < len(completed.Points); i++ {
		prev := completed.Points[i-1]
		curr := completed.Points[i]
		assert.LessOrEqual(t, prev.Score, curr.Score,
			"levels %d and %d out of order", prev.Level, curr.Level)
	}
}

func TestComplete_InsufficientData(t *testing.T) {
	curve := CutCurve{UnitID: 7, Points: []CutPoint{{Level: 1, Score: 95}}}

	_, err := Complete(curve)
	require.Error(t, err)

	var insufficient *InsufficientCutDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(7), insufficient.UnitID)
	assert.Equal(t, 1, insufficient.Points)
}

func TestComplete_KeepsRecordedPoints(t *testing.T) {
	curve := CutCurve{UnitID: 1, Points: []CutPoint{
		{Level: -2, Score: 80},
		{Level: 1, Score: 95},
		{Level: 4, Score: 110},
	}}

	completed, err := Complete(curve)
	require.NoError(t, err)

	byLevel := make(map[Level]float64)
	for _, p := range completed.Points {
		byLevel[p.Level] = p.Score
	}
	assert.Equal(t, 80.0, byLevel[-2])
	assert.Equal(t, 95.0, byLevel[1])
	assert.Equal(t, 110.0, byLevel[4])
}

func TestClassify_SpecScenario(t *testing.T) {
	completed, err := Complete(FromAnchors(42, 95, 110))
	require.NoError(t, err)

	// 103.4 sits between the +2 cut (100) and the +3 cut (105).
	c, err := Classify(103.4, completed)
	require.NoError(t, err)
	assert.Equal(t, Level(2), c.Level)
	assert.Equal(t, "적정", c.Band)
	assert.Equal(t, 100.0, c.ReferenceScore)
}

func TestClassify_TieFavorsStudent(t *testing.T) {
	completed, err := Complete(FromAnchors(42, 95, 110))
	require.NoError(t, err)

	// Exactly on the +3 cut point resolves to +3, not +2.
	c, err := Classify(105.0, completed)
	require.NoError(t, err)
	assert.Equal(t, Level(3), c.Level)
}

func TestClassify_AboveRange(t *testing.T) {
	completed, err := Complete(FromAnchors(42, 95, 110))
	require.NoError(t, err)

	c, err := Classify(999, completed)
	require.NoError(t, err)
	assert.Equal(t, Level(5), c.Level)
	assert.Equal(t, "안전", c.Band)
}

func TestClassify_BelowRangeIsDisqualified(t *testing.T) {
	completed, err := Complete(FromAnchors(42, 95, 110))
	require.NoError(t, err)

	c, err := Classify(10, completed)
	require.NoError(t, err)
	assert.Equal(t, Level(-5), c.Level)
	assert.Equal(t, BandDisqualified, c.Band)
}

func TestClassify_InsufficientData(t *testing.T) {
	_, err := Classify(100, CutCurve{UnitID: 9})
	require.Error(t, err)

	var insufficient *InsufficientCutDataError
	assert.True(t, errors.As(err, &insufficient))
}
