package domain

import (
	"math"
)

// DefaultMonthsToRaise stands in for an unscheduled raise when scoring raise-timeline pressure
const DefaultMonthsToRaise = 6.0

// CostLine is one recurring monthly cost bucket (payroll, hosting, rent...)
type CostLine struct {
	Name          string  `json:"name" yaml:"name" msgpack:"name"`
	MonthlyAmount float64 `json:"monthly_amount" yaml:"monthly_amount" msgpack:"monthly_amount"`
}

// Baseline is a locked snapshot of a company's financial fundamentals.
// Monetary fields are base currency units; percentage fields are on the 0-100 scale.
type Baseline struct {
	ScenarioID        string     `json:"scenario_id" yaml:"scenario_id" msgpack:"scenario_id"`
	CashOnHand        float64    `json:"cash_on_hand" yaml:"cash_on_hand" msgpack:"cash_on_hand"`
	MonthlyBurn       float64    `json:"monthly_burn" yaml:"monthly_burn" msgpack:"monthly_burn"`
	ARR               float64    `json:"arr" yaml:"arr" msgpack:"arr"`
	GrossMarginPct    float64    `json:"gross_margin_pct" yaml:"gross_margin_pct" msgpack:"gross_margin_pct"`
	MonthlyChurnPct   float64    `json:"monthly_churn_pct" yaml:"monthly_churn_pct" msgpack:"monthly_churn_pct"`
	MonthlyGrowthPct  float64    `json:"monthly_growth_pct" yaml:"monthly_growth_pct" msgpack:"monthly_growth_pct"`
	DebtOutstanding   float64    `json:"debt_outstanding" yaml:"debt_outstanding" msgpack:"debt_outstanding"`
	InterestRatePct   float64    `json:"interest_rate_pct" yaml:"interest_rate_pct" msgpack:"interest_rate_pct"`
	MonthsToNextRaise float64    `json:"months_to_next_raise" yaml:"months_to_next_raise" msgpack:"months_to_next_raise"`
	Headcount         int        `json:"headcount" yaml:"headcount" msgpack:"headcount"`
	CostLines         []CostLine `json:"cost_lines,omitempty" yaml:"cost_lines,omitempty" msgpack:"cost_lines,omitempty"`
	Locked            bool       `json:"locked" yaml:"locked" msgpack:"locked"`
}

// Validate checks the baseline before any randomness is drawn
func (b Baseline) Validate() error {
	if !b.Locked {
		return &InputError{Reason: "baseline must be locked before simulation", Err: ErrBaselineNotLocked}
	}

	required := []struct {
		field string
		value float64
	}{
		{"cash_on_hand", b.CashOnHand},
		{"monthly_burn", b.MonthlyBurn},
		{"arr", b.ARR},
	}
	for _, r := range required {
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) {
			return &InputError{Field: r.field, Reason: "must be a finite number"}
		}
		if r.value < 0 {
			return &InputError{Field: r.field, Reason: "must not be negative"}
		}
	}

	percents := []struct {
		field string
		value float64
	}{
		{"gross_margin_pct", b.GrossMarginPct},
		{"monthly_churn_pct", b.MonthlyChurnPct},
		{"interest_rate_pct", b.InterestRatePct},
	}
	for _, p := range percents {
		if math.IsNaN(p.value) || p.value < 0 || p.value > 100 {
			return &InputError{Field: p.field, Reason: "must be between 0 and 100"}
		}
	}

	if math.IsNaN(b.MonthlyGrowthPct) || b.MonthlyGrowthPct < -100 || b.MonthlyGrowthPct > 100 {
		return &InputError{Field: "monthly_growth_pct", Reason: "must be between -100 and 100"}
	}
	if math.IsNaN(b.DebtOutstanding) || math.IsInf(b.DebtOutstanding, 0) || b.DebtOutstanding < 0 {
		return &InputError{Field: "debt_outstanding", Reason: "must be a finite, non-negative number"}
	}
	if !finite(b.MonthsToNextRaise) || b.MonthsToNextRaise < 0 {
		return &InputError{Field: "months_to_next_raise", Reason: "must be a finite, non-negative number"}
	}
	if b.Headcount < 0 {
		return &InputError{Field: "headcount", Reason: "must not be negative"}
	}
	for _, line := range b.CostLines {
		if !finite(line.MonthlyAmount) || line.MonthlyAmount < 0 {
			return &InputError{Field: "cost_lines." + line.Name, Reason: "must be a finite, non-negative amount"}
		}
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RaiseHorizon returns the months until the next raise, substituting the default when unscheduled
func (b Baseline) RaiseHorizon() float64 {
	if b.MonthsToNextRaise <= 0 {
		return DefaultMonthsToRaise
	}
	return b.MonthsToNextRaise
}

// TotalCostLines sums the monthly cost lines
func (b Baseline) TotalCostLines() float64 {
	total := 0.0
	for _, line := range b.CostLines {
		total += line.MonthlyAmount
	}
	return total
}
