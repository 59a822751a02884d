package montecarlo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/seed"
	"github.com/aristath/runway/pkg/formulas"
)

// Options tunes the engine's parallelism
type Options struct {
	Workers   int // 0 = one per logical CPU
	ChunkSize int // 0 = DefaultChunkSize
}

// Engine runs ensembles on a bounded worker pool
type Engine struct {
	workers   int
	chunkSize int
	log       zerolog.Logger
}

// NewEngine creates an engine
func NewEngine(opts Options, log zerolog.Logger) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &Engine{
		workers:   workers,
		chunkSize: chunk,
		log:       log.With().Str("component", "montecarlo").Logger(),
	}
}

// DefaultWorkers returns the number of logical CPUs
func DefaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Workers returns the size of the worker pool
func (e *Engine) Workers() int {
	return e.workers
}

// Run simulates cfg.Iterations paths of cfg.HorizonMonths months each.
//
// Invalid configuration is reported before any path is simulated. Cancellation is
// observed between chunks; a cancelled run returns domain.ErrCancelled and no paths.
// progress may be nil.
func (e *Engine) Run(
	ctx context.Context,
	params elasticity.Parameters,
	start StartState,
	cfg Config,
	runSeed uint64,
	progress ProgressFunc,
) (*Run, error) {
	st, err := newStepper(params, start, cfg)
	if err != nil {
		return nil, err
	}

	n := cfg.Iterations
	paths := make([]Path, n)
	began := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var mu sync.Mutex
	completed := 0

	for lo := 0; lo < n; lo += e.chunkSize {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+e.chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				paths[i] = st.path(runSeed, i)
			}
			if progress != nil {
				mu.Lock()
				completed += hi - lo
				progress(Progress{IterationsCompleted: completed, IterationsTarget: n, Stage: StageSimulating})
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil || ctx.Err() != nil {
		e.log.Debug().
			Int("iterations", n).
			Dur("elapsed", time.Since(began)).
			Msg("Simulation cancelled, discarding partial ensemble")
		return nil, fmt.Errorf("run %d iterations: %w", n, domain.ErrCancelled)
	}

	e.log.Debug().
		Int("iterations", n).
		Int("horizon_months", cfg.HorizonMonths).
		Int("workers", e.workers).
		Dur("elapsed", time.Since(began)).
		Msg("Simulation ensemble complete")

	return &Run{
		Seed:   runSeed,
		Config: cfg,
		Params: params,
		Start:  start,
		Paths:  paths,
	}, nil
}

// Replay recomputes a single iteration of a run. The result is identical to
// Paths[iteration] of the full run with the same inputs.
func (e *Engine) Replay(params elasticity.Parameters, start StartState, cfg Config, runSeed uint64, iteration int) (Path, error) {
	st, err := newStepper(params, start, cfg)
	if err != nil {
		return Path{}, err
	}
	if iteration < 0 || iteration >= cfg.Iterations {
		return Path{}, &domain.ConfigurationError{Field: "iteration", Reason: fmt.Sprintf("must be within [0, %d)", cfg.Iterations)}
	}
	return st.path(runSeed, iteration), nil
}

// stepper holds everything one path needs; it is read-only once built and shared by all workers
type stepper struct {
	p       elasticity.Parameters
	l       [3][3]float64
	start   StartState
	horizon int
}

func newStepper(params elasticity.Parameters, start StartState, cfg Config) (*stepper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, &domain.ConfigurationError{Field: "params", Reason: err.Error()}
	}
	if err := start.Validate(); err != nil {
		return nil, err
	}
	l, err := choleskyFactor(params)
	if err != nil {
		return nil, err
	}
	return &stepper{p: params, l: l, start: start, horizon: cfg.HorizonMonths}, nil
}

// path simulates iteration i. Every month consumes exactly six variates whether or not
// a tail event fires, so nudged parameters replay the same random numbers.
func (s *stepper) path(runSeed uint64, i int) Path {
	hi, lo := seed.Stream(runSeed, i)
	rng := rand.New(rand.NewPCG(hi, lo))

	p, l, st := s.p, s.l, s.start
	out := Path{
		Iteration: i,
		Points:    make([]TrajectoryPoint, 0, s.horizon),
	}

	arr, cash := st.ARR, st.Cash
	alive := true

	for m := 1; m <= s.horizon; m++ {
		e0, e1, e2 := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		u := rng.Float64()
		u1 := 0.5 + 0.5*rng.Float64()
		u2 := 0.5 + 0.5*rng.Float64()

		zR := l[0][0] * e0
		zB := l[1][0]*e0 + l[1][1]*e1
		zC := l[2][0]*e0 + l[2][1]*e1 + l[2][2]*e2

		growth := st.MonthlyGrowthRate + p.RevenueVolPct*zR
		churn := max(0, st.MonthlyChurnRate*(1+p.ChurnVolPct*zC))
		burnMul := max(0, 1+p.BurnVolPct*zB)
		if u < p.ShockProb {
			growth -= u1 * p.ShockSeverityRevenuePct
			burnMul *= 1 + u2*p.ShockSeverityBurnPct
		}

		arr = max(0, arr*(1+growth-churn))
		burn := st.MonthlyBurn*burnMul - (arr-st.ARR)*st.GrossMargin/12
		cash -= burn

		if reason := nonFinite(arr, cash, burn); reason != "" {
			out.Anomaly = true
			out.AnomalyReason = fmt.Sprintf("month %d: non-finite %s", m, reason)
			break
		}

		if alive && cash <= 0 {
			alive = false
			out.DeathMonth = m
		}

		runway := 0.0
		if cash > 0 {
			runway = elasticity.RunwayMonths(cash, burn)
		}

		out.Points = append(out.Points, TrajectoryPoint{
			Month:    m,
			ARR:      arr,
			Cash:     cash,
			Burn:     burn,
			Runway:   runway,
			Survived: alive,
		})
	}

	out.Survived = alive && !out.Anomaly
	return out
}

func nonFinite(arr, cash, burn float64) string {
	switch {
	case !formulas.IsFinite(arr):
		return "arr"
	case !formulas.IsFinite(burn):
		return "burn"
	case !formulas.IsFinite(cash):
		return "cash"
	}
	return ""
}
