// Package elasticity maps baseline fundamentals onto the bounded stochastic parameters
// and the fragility score that drive the Monte Carlo engine.
package elasticity

import (
	"fmt"

	"github.com/aristath/runway/pkg/formulas"
)

// Parameters are the derived volatility, tail-risk and correlation inputs of a run.
// Every field is a fraction (or a correlation coefficient) inside its documented bounds.
type Parameters struct {
	RevenueVolPct           float64 `json:"revenue_vol_pct" msgpack:"revenue_vol_pct"`
	ChurnVolPct             float64 `json:"churn_vol_pct" msgpack:"churn_vol_pct"`
	BurnVolPct              float64 `json:"burn_vol_pct" msgpack:"burn_vol_pct"`
	ShockProb               float64 `json:"shock_prob" msgpack:"shock_prob"`
	ShockSeverityRevenuePct float64 `json:"shock_severity_revenue_pct" msgpack:"shock_severity_revenue_pct"`
	ShockSeverityBurnPct    float64 `json:"shock_severity_burn_pct" msgpack:"shock_severity_burn_pct"`
	CorrRevenueBurn         float64 `json:"corr_revenue_burn" msgpack:"corr_revenue_burn"`
	CorrRevenueChurn        float64 `json:"corr_revenue_churn" msgpack:"corr_revenue_churn"`
}

// Factor names one parameter field
type Factor string

const (
	FactorRevenueVol           Factor = "revenue_vol"
	FactorChurnVol             Factor = "churn_vol"
	FactorBurnVol              Factor = "burn_vol"
	FactorShockProb            Factor = "shock_prob"
	FactorShockSeverityRevenue Factor = "shock_severity_revenue"
	FactorShockSeverityBurn    Factor = "shock_severity_burn"
	FactorCorrRevenueBurn      Factor = "corr_revenue_burn"
	FactorCorrRevenueChurn     Factor = "corr_revenue_churn"
)

// Range is a closed interval [Min, Max]
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width returns Max - Min
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Contains reports whether v lies inside the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

var bounds = map[Factor]Range{
	FactorRevenueVol:           {0.04, 0.14},
	FactorChurnVol:             {0.12, 0.40},
	FactorBurnVol:              {0.06, 0.16},
	FactorShockProb:            {0.02, 0.12},
	FactorShockSeverityRevenue: {0.10, 0.26},
	FactorShockSeverityBurn:    {0.08, 0.24},
	FactorCorrRevenueBurn:      {-0.85, -0.15},
	FactorCorrRevenueChurn:     {-0.85, -0.05},
}

// Factors lists every factor in a stable order
func Factors() []Factor {
	return []Factor{
		FactorRevenueVol,
		FactorChurnVol,
		FactorBurnVol,
		FactorShockProb,
		FactorShockSeverityRevenue,
		FactorShockSeverityBurn,
		FactorCorrRevenueBurn,
		FactorCorrRevenueChurn,
	}
}

// Bounds returns the documented range of a factor
func Bounds(f Factor) Range {
	return bounds[f]
}

// Get returns the value of one factor
func (p Parameters) Get(f Factor) float64 {
	switch f {
	case FactorRevenueVol:
		return p.RevenueVolPct
	case FactorChurnVol:
		return p.ChurnVolPct
	case FactorBurnVol:
		return p.BurnVolPct
	case FactorShockProb:
		return p.ShockProb
	case FactorShockSeverityRevenue:
		return p.ShockSeverityRevenuePct
	case FactorShockSeverityBurn:
		return p.ShockSeverityBurnPct
	case FactorCorrRevenueBurn:
		return p.CorrRevenueBurn
	case FactorCorrRevenueChurn:
		return p.CorrRevenueChurn
	}
	return 0
}

// With returns a copy of p with one factor replaced, clamped to the factor's bounds
func (p Parameters) With(f Factor, v float64) Parameters {
	r := Bounds(f)
	v = formulas.Clamp(v, r.Min, r.Max)
	switch f {
	case FactorRevenueVol:
		p.RevenueVolPct = v
	case FactorChurnVol:
		p.ChurnVolPct = v
	case FactorBurnVol:
		p.BurnVolPct = v
	case FactorShockProb:
		p.ShockProb = v
	case FactorShockSeverityRevenue:
		p.ShockSeverityRevenuePct = v
	case FactorShockSeverityBurn:
		p.ShockSeverityBurnPct = v
	case FactorCorrRevenueBurn:
		p.CorrRevenueBurn = v
	case FactorCorrRevenueChurn:
		p.CorrRevenueChurn = v
	}
	return p
}

// Validate checks that every field is inside its bounds
func (p Parameters) Validate() error {
	for _, f := range Factors() {
		r := Bounds(f)
		if v := p.Get(f); !r.Contains(v) {
			return fmt.Errorf("%s = %v outside [%v, %v]", f, v, r.Min, r.Max)
		}
	}
	return nil
}
