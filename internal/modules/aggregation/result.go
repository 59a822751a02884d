// Package aggregation reduces a Monte Carlo ensemble to the statistics consumers read:
// terminal-ARR histogram and percentiles, distribution shape, survival, a representative
// median path and a one-at-a-time sensitivity ranking of the elasticity parameters.
package aggregation

import (
	"github.com/aristath/runway/internal/modules/elasticity"
	"github.com/aristath/runway/internal/modules/montecarlo"
	"github.com/aristath/runway/pkg/formulas"
)

// Percentiles are nearest-rank percentiles of terminal ARR
type Percentiles struct {
	P10 float64 `json:"p10" msgpack:"p10"`
	P50 float64 `json:"p50" msgpack:"p50"`
	P90 float64 `json:"p90" msgpack:"p90"`
}

// Distribution describes the shape of terminal ARR
type Distribution struct {
	Mean     float64 `json:"mean" msgpack:"mean"`
	StdDev   float64 `json:"std_dev" msgpack:"std_dev"`
	Skewness float64 `json:"skewness" msgpack:"skewness"`
}

// MedianCase is the full trajectory of the path whose terminal ARR is closest to P50
type MedianCase struct {
	Iteration int                          `json:"iteration" msgpack:"iteration"`
	Survived  bool                         `json:"survived" msgpack:"survived"`
	Points    []montecarlo.TrajectoryPoint `json:"points" msgpack:"points"`
}

// SensitivityFactor is the shift in mean terminal ARR caused by nudging one parameter,
// relative to the unnudged mean
type SensitivityFactor struct {
	Factor      elasticity.Factor `json:"factor" msgpack:"factor"`
	ImpactScore float64           `json:"impact_score" msgpack:"impact_score"`
}

// MonthBand holds ARR percentiles across included paths for one month
type MonthBand struct {
	Month int     `json:"month" msgpack:"month"`
	P10   float64 `json:"p10" msgpack:"p10"`
	P50   float64 `json:"p50" msgpack:"p50"`
	P90   float64 `json:"p90" msgpack:"p90"`
}

// AggregateResult is the immutable summary of one run. A lever or baseline change
// produces a new result from a new run; results are never patched in place.
type AggregateResult struct {
	RunKey             string                `json:"run_key" msgpack:"run_key"`
	ScenarioID         string                `json:"scenario_id" msgpack:"scenario_id"`
	Seed               uint64                `json:"seed,string" msgpack:"seed"`
	Iterations         int                   `json:"iterations" msgpack:"iterations"`
	HorizonMonths      int                   `json:"horizon_months" msgpack:"horizon_months"`
	Histogram          []formulas.Bucket     `json:"histogram" msgpack:"histogram"`
	Percentiles        Percentiles           `json:"percentiles" msgpack:"percentiles"`
	Distribution       Distribution          `json:"distribution" msgpack:"distribution"`
	SurvivalRate       float64               `json:"survival_rate" msgpack:"survival_rate"`
	MedianCase         MedianCase            `json:"median_case" msgpack:"median_case"`
	SensitivityFactors []SensitivityFactor   `json:"sensitivity_factors" msgpack:"sensitivity_factors"`
	ExcludedPaths      int                   `json:"excluded_paths" msgpack:"excluded_paths"`
	AliveByMonth       []float64             `json:"alive_by_month" msgpack:"alive_by_month"`
	Bands              []MonthBand           `json:"bands" msgpack:"bands"`
	Params             elasticity.Parameters `json:"params" msgpack:"params"`
	Fragility          int                   `json:"fragility" msgpack:"fragility"`
	Band               elasticity.Band       `json:"band" msgpack:"band"`
}
