package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geobukschool/jungsi-engine/internal/database"
	"github.com/geobukschool/jungsi-engine/internal/domain"
	"github.com/geobukschool/jungsi-engine/internal/modules/risk"
	"github.com/geobukschool/jungsi-engine/internal/modules/scoring"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "results.db"),
		Profile: database.ProfileDerived,
		Name:    "results",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewRepository(db.Conn(), zerolog.Nop())
}

func sampleResult(unitID int64) StudentResult {
	return StudentResult{
		StudentID: 1,
		UnitID:    unitID,
		UnitName:  "컴퓨터공학과",
		Score: scoring.Result{
			InstitutionID:    1001,
			FormulaCode:      "ga",
			ConvertedScore:   103.2,
			StandardScoreSum: 387,
			Eligible:         true,
			Breakdown: map[domain.Area]float64{
				domain.AreaKorean:  39.3,
				domain.AreaMath:    38.1,
				domain.AreaInquiry: 25.8,
			},
		},
		Classified:      true,
		Level:           risk.Level(2),
		Band:            "적정",
		ReferenceScore:  100,
		RunID:           "run-1",
		RegistryVersion: "v1",
		ComputedAt:      time.Now().UTC(),
	}
}

func TestReplaceForStudent_RoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	in := sampleResult(10)
	in.Score.Eligible = false
	in.Score.GateFailures = []string{"grade_ceiling:english>1"}

	require.NoError(t, repo.ReplaceForStudent(ctx, 1, []StudentResult{in}))

	got, err := repo.GetByStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	out := got[0]
	assert.Equal(t, int64(1), out.StudentID)
	assert.Equal(t, int64(10), out.UnitID)
	assert.Equal(t, "컴퓨터공학과", out.UnitName)
	assert.Equal(t, int64(1001), out.Score.InstitutionID)
	assert.Equal(t, "ga", out.Score.FormulaCode)
	assert.InDelta(t, 103.2, out.Score.ConvertedScore, 1e-9)
	assert.InDelta(t, 387.0, out.Score.StandardScoreSum, 1e-9)
	assert.False(t, out.Score.Eligible)
	assert.Equal(t, []string{"grade_ceiling:english>1"}, out.Score.GateFailures)
	assert.InDelta(t, 38.1, out.Score.Breakdown[domain.AreaMath], 1e-9)
	assert.True(t, out.Classified)
	assert.Equal(t, risk.Level(2), out.Level)
	assert.Equal(t, "적정", out.Band)
	assert.Equal(t, 100.0, out.ReferenceScore)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "v1", out.RegistryVersion)
	assert.WithinDuration(t, in.ComputedAt, out.ComputedAt, time.Second)
}

func TestReplaceForStudent_ReplacesWholesale(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceForStudent(ctx, 1, []StudentResult{
		sampleResult(10), sampleResult(20), sampleResult(30),
	}))

	// Second run drops unit 30 and adds unit 40.
	replacement := []StudentResult{sampleResult(40), sampleResult(10), sampleResult(20)}
	require.NoError(t, repo.ReplaceForStudent(ctx, 1, replacement))

	got, err := repo.GetByStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Rows come back in unit order regardless of insert order.
	assert.Equal(t, int64(10), got[0].UnitID)
	assert.Equal(t, int64(20), got[1].UnitID)
	assert.Equal(t, int64(40), got[2].UnitID)
}

func TestReplaceForStudent_EmptySetClears(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceForStudent(ctx, 1, []StudentResult{sampleResult(10)}))
	require.NoError(t, repo.ReplaceForStudent(ctx, 1, nil))

	got, err := repo.GetByStudent(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceForStudent_UnclassifiedStoresNullLevel(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	in := sampleResult(10)
	in.Classified = false
	in.Level = 0
	in.Band = ""
	in.ReferenceScore = 0

	require.NoError(t, repo.ReplaceForStudent(ctx, 1, []StudentResult{in}))

	got, err := repo.GetByStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Classified)
	assert.Equal(t, risk.Level(0), got[0].Level)
	assert.Empty(t, got[0].Band)
}

func TestReplaceForStudent_DoesNotTouchOtherStudents(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	other := sampleResult(10)
	other.StudentID = 2
	require.NoError(t, repo.ReplaceForStudent(ctx, 2, []StudentResult{other}))
	require.NoError(t, repo.ReplaceForStudent(ctx, 1, []StudentResult{sampleResult(10)}))
	require.NoError(t, repo.ReplaceForStudent(ctx, 1, nil))

	got, err := repo.GetByStudent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBatchRunLifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	latest, err := repo.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.CreateRun(ctx, BatchRun{
		RunID:           "run-1",
		StartedAt:       started,
		StudentsTotal:   100,
		RegistryVersion: "v1",
	}))

	latest, err = repo.GetLatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-1", latest.RunID)
	assert.Equal(t, RunStatusRunning, latest.Status)
	assert.Nil(t, latest.FinishedAt)

	finished := started.Add(time.Minute)
	require.NoError(t, repo.FinishRun(ctx, BatchRun{
		RunID:          "run-1",
		FinishedAt:     &finished,
		StudentsDone:   98,
		StudentsFailed: 2,
		PairsWritten:   400,
		PairsSkipped:   12,
		Status:         RunStatusCompleted,
	}))

	latest, err = repo.GetLatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, RunStatusCompleted, latest.Status)
	assert.Equal(t, 98, latest.StudentsDone)
	assert.Equal(t, 2, latest.StudentsFailed)
	assert.Equal(t, 400, latest.PairsWritten)
	assert.Equal(t, 12, latest.PairsSkipped)
	require.NotNil(t, latest.FinishedAt)
}

func TestDeleteOlderRuns(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	ids := []string{"run-1", "run-2", "run-3", "run-4", "run-5"}
	for i, id := range ids {
		require.NoError(t, repo.CreateRun(ctx, BatchRun{
			RunID:           id,
			StartedAt:       base.Add(time.Duration(i) * time.Minute),
			RegistryVersion: "v1",
		}))
	}

	deleted, err := repo.DeleteOlderRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	latest, err := repo.GetLatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-5", latest.RunID)
}
