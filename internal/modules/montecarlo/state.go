package montecarlo

import (
	"fmt"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/pkg/formulas"
)

// StartState is the financial position at month 0. Rates are monthly fractions.
type StartState struct {
	ARR               float64 `json:"arr" msgpack:"arr"`
	Cash              float64 `json:"cash" msgpack:"cash"`
	MonthlyBurn       float64 `json:"monthly_burn" msgpack:"monthly_burn"`
	MonthlyGrowthRate float64 `json:"monthly_growth_rate" msgpack:"monthly_growth_rate"`
	MonthlyChurnRate  float64 `json:"monthly_churn_rate" msgpack:"monthly_churn_rate"`
	GrossMargin       float64 `json:"gross_margin" msgpack:"gross_margin"`
}

// Validate rejects states the step function cannot project
func (s StartState) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"arr", s.ARR},
		{"cash", s.Cash},
		{"monthly_burn", s.MonthlyBurn},
		{"monthly_growth_rate", s.MonthlyGrowthRate},
		{"monthly_churn_rate", s.MonthlyChurnRate},
		{"gross_margin", s.GrossMargin},
	} {
		if !formulas.IsFinite(f.value) {
			return &domain.InputError{Field: f.name, Reason: "must be a finite number"}
		}
	}
	switch {
	case s.ARR < 0:
		return &domain.InputError{Field: "arr", Reason: "must not be negative"}
	case s.MonthlyGrowthRate < -1 || s.MonthlyGrowthRate > 1:
		return &domain.InputError{Field: "monthly_growth_rate", Reason: "must be within [-1, 1]"}
	case s.MonthlyChurnRate < 0 || s.MonthlyChurnRate > 1:
		return &domain.InputError{Field: "monthly_churn_rate", Reason: "must be within [0, 1]"}
	case s.GrossMargin < 0 || s.GrossMargin > 1:
		return &domain.InputError{Field: "gross_margin", Reason: "must be within [0, 1]"}
	}
	return nil
}

// Levers override baseline values for what-if runs without touching the locked baseline.
// Nil fields keep the baseline value. Amounts are in base currency, percentages on a 0-100 scale.
// Levers move the start state and the reported fragility; volatility parameters and the
// seed stay those of the locked baseline.
type Levers struct {
	CashOnHand       *float64 `json:"cash_on_hand,omitempty" yaml:"cash_on_hand,omitempty"`
	MonthlyBurn      *float64 `json:"monthly_burn,omitempty" yaml:"monthly_burn,omitempty"`
	ARR              *float64 `json:"arr,omitempty" yaml:"arr,omitempty"`
	MonthlyGrowthPct *float64 `json:"monthly_growth_pct,omitempty" yaml:"monthly_growth_pct,omitempty"`
	MonthlyChurnPct  *float64 `json:"monthly_churn_pct,omitempty" yaml:"monthly_churn_pct,omitempty"`
	GrossMarginPct   *float64 `json:"gross_margin_pct,omitempty" yaml:"gross_margin_pct,omitempty"`
}

// IsZero reports whether no lever is set
func (l Levers) IsZero() bool {
	return l == Levers{}
}

// StartStateFromBaseline converts a locked baseline plus optional levers into the
// engine's starting position
func StartStateFromBaseline(b domain.Baseline, l Levers) (StartState, error) {
	if err := b.Validate(); err != nil {
		return StartState{}, fmt.Errorf("start state: %w", err)
	}

	s := StartState{
		ARR:               pick(l.ARR, b.ARR),
		Cash:              pick(l.CashOnHand, b.CashOnHand),
		MonthlyBurn:       pick(l.MonthlyBurn, b.MonthlyBurn),
		MonthlyGrowthRate: pick(l.MonthlyGrowthPct, b.MonthlyGrowthPct) / 100,
		MonthlyChurnRate:  pick(l.MonthlyChurnPct, b.MonthlyChurnPct) / 100,
		GrossMargin:       pick(l.GrossMarginPct, b.GrossMarginPct) / 100,
	}
	if err := s.Validate(); err != nil {
		return StartState{}, fmt.Errorf("apply levers: %w", err)
	}
	return s, nil
}

// Apply returns a copy of b with the levers written over it
func (l Levers) Apply(b domain.Baseline) domain.Baseline {
	b.CashOnHand = pick(l.CashOnHand, b.CashOnHand)
	b.MonthlyBurn = pick(l.MonthlyBurn, b.MonthlyBurn)
	b.ARR = pick(l.ARR, b.ARR)
	b.MonthlyGrowthPct = pick(l.MonthlyGrowthPct, b.MonthlyGrowthPct)
	b.MonthlyChurnPct = pick(l.MonthlyChurnPct, b.MonthlyChurnPct)
	b.GrossMarginPct = pick(l.GrossMarginPct, b.GrossMarginPct)
	b.CostLines = append([]domain.CostLine(nil), b.CostLines...)
	return b
}

func pick(override *float64, base float64) float64 {
	if override != nil {
		return *override
	}
	return base
}
