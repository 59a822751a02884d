package montecarlo

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
)

func testParams() elasticity.Parameters {
	return elasticity.Parameters{
		RevenueVolPct:           0.08,
		ChurnVolPct:             0.25,
		BurnVolPct:              0.10,
		ShockProb:               0.06,
		ShockSeverityRevenuePct: 0.18,
		ShockSeverityBurnPct:    0.15,
		CorrRevenueBurn:         -0.45,
		CorrRevenueChurn:        -0.40,
	}
}

func testStart() StartState {
	return StartState{
		ARR:               1_800_000,
		Cash:              1_200_000,
		MonthlyBurn:       150_000,
		MonthlyGrowthRate: 0.03,
		MonthlyChurnRate:  0.04,
		GrossMargin:       0.70,
	}
}

func newTestEngine(workers, chunk int) *Engine {
	return NewEngine(Options{Workers: workers, ChunkSize: chunk}, zerolog.Nop())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero iterations", Config{Iterations: 0, HorizonMonths: 36}, "iterations"},
		{"negative iterations", Config{Iterations: -5, HorizonMonths: 36}, "iterations"},
		{"too many iterations", Config{Iterations: MaxIterations + 1, HorizonMonths: 1}, "iterations"},
		{"zero horizon", Config{Iterations: 100, HorizonMonths: 0}, "horizon_months"},
		{"horizon too long", Config{Iterations: 100, HorizonMonths: MaxHorizonMonths + 1}, "horizon_months"},
		{"too many points", Config{Iterations: MaxIterations, HorizonMonths: MaxHorizonMonths}, "iterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, tt.cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, Config{Iterations: 2000, HorizonMonths: 36}.Validate())
}

func TestRun_RejectsConfigBeforeWork(t *testing.T) {
	called := false
	run, err := newTestEngine(2, 10).Run(context.Background(), testParams(), testStart(),
		Config{Iterations: 0, HorizonMonths: 12}, 1, func(Progress) { called = true })

	assert.Nil(t, run)
	assert.True(t, domain.IsConfigurationError(err))
	assert.False(t, called)
}

func TestRun_RejectsOutOfBoundsParams(t *testing.T) {
	p := testParams()
	p.ShockProb = 0.5

	_, err := newTestEngine(2, 10).Run(context.Background(), p, testStart(), Config{Iterations: 10, HorizonMonths: 12}, 1, nil)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "params", cfgErr.Field)
}

func TestRun_DeterministicAcrossScheduling(t *testing.T) {
	cfg := Config{Iterations: 600, HorizonMonths: 36}

	a, err := newTestEngine(1, 600).Run(context.Background(), testParams(), testStart(), cfg, 42, nil)
	require.NoError(t, err)
	b, err := newTestEngine(8, 7).Run(context.Background(), testParams(), testStart(), cfg, 42, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("runs differ (-single +parallel):\n%s", diff)
	}
	for i, p := range a.Paths {
		require.Equal(t, i, p.Iteration)
		require.Len(t, p.Points, cfg.HorizonMonths)
	}
}

func TestRun_SeedChangesEnsemble(t *testing.T) {
	cfg := Config{Iterations: 50, HorizonMonths: 24}
	e := newTestEngine(4, 10)

	a, err := e.Run(context.Background(), testParams(), testStart(), cfg, 1, nil)
	require.NoError(t, err)
	b, err := e.Run(context.Background(), testParams(), testStart(), cfg, 2, nil)
	require.NoError(t, err)

	same := 0
	for i := range a.Paths {
		ta, _ := a.Paths[i].Terminal()
		tb, _ := b.Paths[i].Terminal()
		if ta.ARR == tb.ARR {
			same++
		}
	}
	assert.Zero(t, same)
}

func TestReplay_MatchesRunIteration(t *testing.T) {
	cfg := Config{Iterations: 500, HorizonMonths: 36}
	e := newTestEngine(4, 50)

	run, err := e.Run(context.Background(), testParams(), testStart(), cfg, 99, nil)
	require.NoError(t, err)

	for _, i := range []int{0, 1, 417, 499} {
		path, err := e.Replay(testParams(), testStart(), cfg, 99, i)
		require.NoError(t, err)
		if diff := cmp.Diff(run.Paths[i], path); diff != "" {
			t.Fatalf("replay of iteration %d differs:\n%s", i, diff)
		}
	}

	_, err = e.Replay(testParams(), testStart(), cfg, 99, 500)
	assert.True(t, domain.IsConfigurationError(err))
	_, err = e.Replay(testParams(), testStart(), cfg, 99, -1)
	assert.True(t, domain.IsConfigurationError(err))
}

func TestRun_DeathIsPermanent(t *testing.T) {
	start := testStart()
	start.Cash = 400_000

	run, err := newTestEngine(4, 25).Run(context.Background(), testParams(), start, Config{Iterations: 300, HorizonMonths: 36}, 7, nil)
	require.NoError(t, err)

	deaths := 0
	for _, p := range run.Paths {
		dead := false
		for _, pt := range p.Points {
			if dead {
				require.False(t, pt.Survived, "iteration %d revived at month %d", p.Iteration, pt.Month)
			}
			if !pt.Survived && !dead {
				dead = true
				assert.Equal(t, pt.Month, p.DeathMonth)
				assert.LessOrEqual(t, pt.Cash, 0.0)
				assert.Equal(t, 0.0, pt.Runway)
			}
		}
		assert.Equal(t, !dead, p.Survived)
		if dead {
			deaths++
			// burn keeps accruing after death
			assert.Len(t, p.Points, 36)
		}
	}
	assert.Positive(t, deaths)
}

func TestRun_SurvivalMonotoneInStartingCash(t *testing.T) {
	cfg := Config{Iterations: 400, HorizonMonths: 36}
	e := newTestEngine(4, 50)

	prev := -1
	var prevRun *Run
	for _, cash := range []float64{300_000, 800_000, 1_200_000, 2_500_000, 6_000_000} {
		start := testStart()
		start.Cash = cash

		run, err := e.Run(context.Background(), testParams(), start, cfg, 2024, nil)
		require.NoError(t, err)

		survivors := 0
		for i, p := range run.Paths {
			if p.Survived {
				survivors++
			}
			if prevRun != nil && prevRun.Paths[i].Survived {
				assert.True(t, p.Survived, "iteration %d died with more cash", i)
			}
		}
		assert.GreaterOrEqual(t, survivors, prev)
		prev, prevRun = survivors, run
	}
}

func TestRun_FlagsNonFinitePaths(t *testing.T) {
	start := testStart()
	start.ARR = math.MaxFloat64
	start.MonthlyGrowthRate = 1
	start.MonthlyChurnRate = 0

	run, err := newTestEngine(2, 10).Run(context.Background(), testParams(), start, Config{Iterations: 20, HorizonMonths: 12}, 5, nil)
	require.NoError(t, err)

	for _, p := range run.Paths {
		assert.True(t, p.Anomaly)
		assert.False(t, p.Survived)
		assert.Contains(t, p.AnomalyReason, "month 1")
		assert.Empty(t, p.Points)
	}
}

func TestRun_ReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var updates []Progress

	_, err := newTestEngine(4, 100).Run(context.Background(), testParams(), testStart(), Config{Iterations: 1050, HorizonMonths: 12}, 3,
		func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			updates = append(updates, p)
		})
	require.NoError(t, err)

	require.Len(t, updates, 11)
	for i := 1; i < len(updates); i++ {
		assert.Greater(t, updates[i].IterationsCompleted, updates[i-1].IterationsCompleted)
	}
	last := updates[len(updates)-1]
	assert.Equal(t, 1050, last.IterationsCompleted)
	assert.Equal(t, 1050, last.IterationsTarget)
	assert.Equal(t, StageSimulating, last.Stage)
	assert.Equal(t, 1.0, last.Fraction())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := newTestEngine(4, 10).Run(ctx, testParams(), testStart(), Config{Iterations: 1000, HorizonMonths: 36}, 1, nil)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestRun_CancelledMidRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := newTestEngine(2, 10).Run(ctx, testParams(), testStart(), Config{Iterations: 5000, HorizonMonths: 36}, 1,
		func(p Progress) {
			if p.IterationsCompleted >= 50 {
				cancel()
			}
		})
	assert.Nil(t, run)
	assert.True(t, domain.IsCancelled(err))
}

func TestCholeskyReproducesCorrelation(t *testing.T) {
	p := testParams()
	l, err := choleskyFactor(p)
	require.NoError(t, err)

	want := CorrelationMatrix(p)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			got := 0.0
			for k := 0; k < 3; k++ {
				got += l[i][k] * l[j][k]
			}
			assert.InDelta(t, want.At(i, j), got, 1e-12)
		}
	}
}

func TestCorrelationMatrix_PositiveDefiniteAtBoundsCorners(t *testing.T) {
	rb, rc := elasticity.Bounds(elasticity.FactorCorrRevenueBurn), elasticity.Bounds(elasticity.FactorCorrRevenueChurn)
	for _, x := range []float64{rb.Min, rb.Max} {
		for _, y := range []float64{rc.Min, rc.Max} {
			p := testParams()
			p.CorrRevenueBurn, p.CorrRevenueChurn = x, y

			var chol mat.Cholesky
			assert.True(t, chol.Factorize(CorrelationMatrix(p)), "rb=%v rc=%v", x, y)
		}
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(Options{}, zerolog.Nop())
	assert.Positive(t, e.Workers())
	assert.Equal(t, DefaultChunkSize, e.chunkSize)
}
