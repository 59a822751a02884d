package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/modules/aggregation"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/pkg/formulas"
)

func setupRepository(t *testing.T) (*Repository, *time.Time) {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "results.db"), Name: "results"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewRepository(db.Conn(), zerolog.Nop())
	repo.now = func() time.Time { return clock }
	return repo, &clock
}

func sampleResult(scenario, runKey string) *aggregation.AggregateResult {
	return &aggregation.AggregateResult{
		RunKey:        runKey,
		ScenarioID:    scenario,
		Seed:          0xFEDCBA9876543210,
		Iterations:    2000,
		HorizonMonths: 2,
		Histogram: []formulas.Bucket{
			{Min: 1, Max: 2, Frequency: 0.25},
			{Min: 2, Max: 3, Frequency: 0.75},
		},
		Percentiles:  aggregation.Percentiles{P10: 1.2, P50: 2.4, P90: 2.9},
		Distribution: aggregation.Distribution{Mean: 2.3, StdDev: 0.4, Skewness: -0.3},
		SurvivalRate: 0.81,
		MedianCase: aggregation.MedianCase{
			Iteration: 417,
			Survived:  true,
			Points: []montecarlo.TrajectoryPoint{
				{Month: 1, ARR: 2.1, Cash: 10, Burn: 1, Runway: 10, Survived: true},
				{Month: 2, ARR: 2.4, Cash: 9, Burn: 1, Runway: 9, Survived: true},
			},
		},
		SensitivityFactors: []aggregation.SensitivityFactor{
			{Factor: elasticity.FactorShockProb, ImpactScore: -0.04},
		},
		AliveByMonth: []float64{1, 0.81},
		Bands:        []aggregation.MonthBand{{Month: 1, P10: 1, P50: 2, P90: 3}, {Month: 2, P10: 1.2, P50: 2.4, P90: 2.9}},
		Params:       elasticity.Parameters{RevenueVolPct: 0.08, ShockProb: 0.05},
		Fragility:    34,
		Band:         elasticity.BandModerate,
	}
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	want := sampleResult("acme", "k1")
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Get(ctx, "acme")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stored result differs:\n%s", diff)
	}
}

func TestRepository_SaveOverwrites(t *testing.T) {
	repo, clock := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleResult("acme", "old")))
	*clock = clock.Add(time.Minute)
	newer := sampleResult("acme", "new")
	newer.Fragility = 61
	newer.Band = elasticity.BandFragile
	require.NoError(t, repo.Save(ctx, newer))

	got, err := repo.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "new", got.RunKey)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 61, list[0].Fragility)
	assert.Equal(t, elasticity.BandFragile, list[0].Band)
	assert.Equal(t, uint64(0xFEDCBA9876543210), list[0].Seed)
	assert.Equal(t, *clock, list[0].UpdatedAt)
}

func TestRepository_GetMissing(t *testing.T) {
	repo, _ := setupRepository(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ListOrder(t *testing.T) {
	repo, clock := setupRepository(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, sampleResult(id, "k")))
		*clock = clock.Add(time.Second)
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, s := range list {
		ids = append(ids, s.ScenarioID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestRepository_Delete(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleResult("acme", "k")))
	require.NoError(t, repo.Delete(ctx, "acme"))
	assert.ErrorIs(t, repo.Delete(ctx, "acme"), ErrNotFound)

	_, err := repo.Get(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_PruneOlderThan(t *testing.T) {
	repo, clock := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleResult("stale", "k")))
	*clock = clock.Add(48 * time.Hour)
	require.NoError(t, repo.Save(ctx, sampleResult("fresh", "k")))

	removed, err := repo.PruneOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].ScenarioID)
}

func TestRepository_SaveRequiresScenario(t *testing.T) {
	repo, _ := setupRepository(t)
	assert.Error(t, repo.Save(context.Background(), sampleResult("", "k")))
	assert.Error(t, repo.Save(context.Background(), nil))
}
