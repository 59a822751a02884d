package aggregation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/pkg/formulas"
)

const (
	// DefaultBuckets is the histogram resolution
	DefaultBuckets = 20
	// DefaultSensitivityIterations is the size of each sensitivity sub-ensemble
	DefaultSensitivityIterations = 200
	// NudgeFraction is the share of a factor's range width a sensitivity nudge moves it by
	NudgeFraction = 0.10

	StageAggregating = "aggregating"
	StageSensitivity = "sensitivity"
)

// Options tunes aggregation
type Options struct {
	Buckets               int
	SensitivityIterations int // 0 disables the sensitivity ranking
}

// DefaultOptions returns 20 buckets and 200-iteration sensitivity sub-ensembles
func DefaultOptions() Options {
	return Options{Buckets: DefaultBuckets, SensitivityIterations: DefaultSensitivityIterations}
}

// Aggregator reduces runs to AggregateResults. It needs the engine to re-run
// sensitivity sub-ensembles.
type Aggregator struct {
	engine *montecarlo.Engine
	opts   Options
	log    zerolog.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(engine *montecarlo.Engine, opts Options, log zerolog.Logger) *Aggregator {
	if opts.Buckets <= 0 {
		opts.Buckets = DefaultBuckets
	}
	if opts.SensitivityIterations < 0 {
		opts.SensitivityIterations = 0
	}
	return &Aggregator{
		engine: engine,
		opts:   opts,
		log:    log.With().Str("component", "aggregation").Logger(),
	}
}

// Aggregate summarises a run. Paths flagged as numeric anomalies are excluded and
// counted; if none remain a NumericAnomalyError is returned. progress may be nil.
func (a *Aggregator) Aggregate(ctx context.Context, run *montecarlo.Run, progress montecarlo.ProgressFunc) (*AggregateResult, error) {
	included, excluded := includedPaths(run)
	if len(included) == 0 {
		return nil, &domain.NumericAnomalyError{Excluded: excluded, Total: len(run.Paths)}
	}
	if excluded > 0 {
		a.log.Warn().
			Int("excluded", excluded).
			Int("total", len(run.Paths)).
			Msg("Excluding non-finite paths from aggregation")
	}

	report(progress, montecarlo.Progress{IterationsCompleted: 0, IterationsTarget: len(run.Paths), Stage: StageAggregating})

	terminal := terminalARR(included)
	sorted := formulas.SortedCopy(terminal)
	pct := Percentiles{
		P10: formulas.PercentileSorted(sorted, 0.10),
		P50: formulas.PercentileSorted(sorted, 0.50),
		P90: formulas.PercentileSorted(sorted, 0.90),
	}
	mean, std := formulas.PopMeanStdDev(terminal)

	survivors := 0
	for _, p := range included {
		if p.Survived {
			survivors++
		}
	}

	result := &AggregateResult{
		RunKey:        run.Key,
		Seed:          run.Seed,
		Iterations:    run.Config.Iterations,
		HorizonMonths: run.Config.HorizonMonths,
		Histogram:     formulas.Histogram(terminal, a.opts.Buckets),
		Percentiles:   pct,
		Distribution: Distribution{
			Mean:     mean,
			StdDev:   std,
			Skewness: formulas.Skewness(terminal),
		},
		SurvivalRate:  float64(survivors) / float64(len(included)),
		MedianCase:    medianCase(included, terminal, pct.P50),
		ExcludedPaths: excluded,
		AliveByMonth:  aliveByMonth(included, run.Config.HorizonMonths),
		Bands:         monthBands(included, run.Config.HorizonMonths),
		Params:        run.Params,
	}

	report(progress, montecarlo.Progress{IterationsCompleted: len(run.Paths), IterationsTarget: len(run.Paths), Stage: StageAggregating})

	factors, err := a.Sensitivity(ctx, run, progress)
	if err != nil {
		return nil, err
	}
	result.SensitivityFactors = factors

	return result, nil
}

// Sensitivity ranks the elasticity parameters by one-at-a-time local perturbation.
//
// A sub-ensemble with the run's seed and horizon is simulated once as-is and once per
// factor with that factor nudged by NudgeFraction of its range width (upwards, or
// downwards when that would leave the range). Impact is the shift in mean terminal ARR
// divided by max(|base mean|, 1). Results are sorted by absolute impact, largest first,
// ties by factor name. This is a cheap local approximation, not a Sobol variance
// decomposition: interactions between factors are not captured.
func (a *Aggregator) Sensitivity(ctx context.Context, run *montecarlo.Run, progress montecarlo.ProgressFunc) ([]SensitivityFactor, error) {
	if a.opts.SensitivityIterations == 0 {
		return []SensitivityFactor{}, nil
	}

	cfg := montecarlo.Config{
		Iterations:    a.opts.SensitivityIterations,
		HorizonMonths: run.Config.HorizonMonths,
	}
	factors := elasticity.Factors()
	target := (len(factors) + 1) * cfg.Iterations

	base, ok, err := a.subEnsembleMean(ctx, run.Params, run, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.log.Warn().Msg("Sensitivity base ensemble produced no finite paths, skipping ranking")
		return []SensitivityFactor{}, nil
	}
	report(progress, montecarlo.Progress{IterationsCompleted: cfg.Iterations, IterationsTarget: target, Stage: StageSensitivity})

	scale := math.Max(math.Abs(base), 1)
	out := make([]SensitivityFactor, 0, len(factors))
	for i, f := range factors {
		nudged := run.Params.With(f, Nudge(f, run.Params.Get(f)))
		mean, ok, err := a.subEnsembleMean(ctx, nudged, run, cfg)
		if err != nil {
			return nil, err
		}
		impact := 0.0
		if ok {
			impact = (mean - base) / scale
		}
		out = append(out, SensitivityFactor{Factor: f, ImpactScore: impact})
		report(progress, montecarlo.Progress{IterationsCompleted: (i + 2) * cfg.Iterations, IterationsTarget: target, Stage: StageSensitivity})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].ImpactScore), math.Abs(out[j].ImpactScore)
		if ai != aj {
			return ai > aj
		}
		return out[i].Factor < out[j].Factor
	})
	return out, nil
}

// Nudge returns v moved by NudgeFraction of the factor's range width, upwards unless
// that would leave the range
func Nudge(f elasticity.Factor, v float64) float64 {
	r := elasticity.Bounds(f)
	step := NudgeFraction * r.Width()
	if v+step <= r.Max {
		return v + step
	}
	return v - step
}

func (a *Aggregator) subEnsembleMean(ctx context.Context, params elasticity.Parameters, run *montecarlo.Run, cfg montecarlo.Config) (float64, bool, error) {
	sub, err := a.engine.Run(ctx, params, run.Start, cfg, run.Seed, nil)
	if err != nil {
		return 0, false, fmt.Errorf("sensitivity sub-ensemble: %w", err)
	}
	included, _ := includedPaths(sub)
	if len(included) == 0 {
		return 0, false, nil
	}
	mean, _ := formulas.PopMeanStdDev(terminalARR(included))
	return mean, true, nil
}

// includedPaths returns the paths usable for statistics and the count of excluded ones
func includedPaths(run *montecarlo.Run) ([]montecarlo.Path, int) {
	included := make([]montecarlo.Path, 0, len(run.Paths))
	for _, p := range run.Paths {
		if p.Anomaly || len(p.Points) != run.Config.HorizonMonths {
			continue
		}
		included = append(included, p)
	}
	return included, len(run.Paths) - len(included)
}

func terminalARR(paths []montecarlo.Path) []float64 {
	out := make([]float64, len(paths))
	for i, p := range paths {
		out[i] = p.Points[len(p.Points)-1].ARR
	}
	return out
}

// medianCase picks the path closest to p50; ties go to the lowest iteration
func medianCase(paths []montecarlo.Path, terminal []float64, p50 float64) MedianCase {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range terminal {
		if d := math.Abs(v - p50); d < bestDist {
			best, bestDist = i, d
		}
	}
	p := paths[best]
	points := make([]montecarlo.TrajectoryPoint, len(p.Points))
	copy(points, p.Points)
	return MedianCase{Iteration: p.Iteration, Survived: p.Survived, Points: points}
}

// aliveByMonth returns, for each month, the fraction of paths still alive at that month
func aliveByMonth(paths []montecarlo.Path, horizon int) []float64 {
	out := make([]float64, horizon)
	n := float64(len(paths))
	for m := 1; m <= horizon; m++ {
		alive := 0
		for _, p := range paths {
			if p.AliveAt(m) {
				alive++
			}
		}
		out[m-1] = float64(alive) / n
	}
	return out
}

func monthBands(paths []montecarlo.Path, horizon int) []MonthBand {
	out := make([]MonthBand, horizon)
	values := make([]float64, len(paths))
	for m := 0; m < horizon; m++ {
		for i, p := range paths {
			values[i] = p.Points[m].ARR
		}
		sort.Float64s(values)
		out[m] = MonthBand{
			Month: m + 1,
			P10:   formulas.PercentileSorted(values, 0.10),
			P50:   formulas.PercentileSorted(values, 0.50),
			P90:   formulas.PercentileSorted(values, 0.90),
		}
	}
	return out
}

func report(progress montecarlo.ProgressFunc, p montecarlo.Progress) {
	if progress != nil {
		progress(p)
	}
}
