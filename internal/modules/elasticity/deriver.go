package elasticity

import (
	"fmt"
	"math"

	"github.com/aristath/runway/internal/domain"
	"github.com/aristath/runway/pkg/formulas"
)

// RunwaySentinel stands in for infinite runway when burn is zero or negative
const RunwaySentinel = 999.0

// Signals are the normalised danger signals, each in [0,1] (1 = most dangerous)
type Signals struct {
	Runway        float64 `json:"runway" msgpack:"runway"`
	BurnMultiple  float64 `json:"burn_multiple" msgpack:"burn_multiple"`
	GrossMargin   float64 `json:"gross_margin" msgpack:"gross_margin"`
	RaiseTimeline float64 `json:"raise_timeline" msgpack:"raise_timeline"`
	DebtRate      float64 `json:"debt_rate" msgpack:"debt_rate"`
	Churn         float64 `json:"churn" msgpack:"churn"`
	Scale         float64 `json:"scale" msgpack:"scale"`
	CostHHI       float64 `json:"cost_hhi" msgpack:"cost_hhi"`
}

// Result is everything derived from one baseline
type Result struct {
	Params       Parameters `json:"params" msgpack:"params"`
	Signals      Signals    `json:"signals" msgpack:"signals"`
	Fragility    int        `json:"fragility" msgpack:"fragility"`
	Band         Band       `json:"band" msgpack:"band"`
	RunwayMonths float64    `json:"runway_months" msgpack:"runway_months"`
	BurnMultiple float64    `json:"burn_multiple" msgpack:"burn_multiple"`
}

// Deriver turns baselines into elasticity parameters under a fragility policy
type Deriver struct {
	policy Policy
}

// NewDeriver creates a deriver, rejecting invalid policies
func NewDeriver(policy Policy) (*Deriver, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{policy: policy}, nil
}

// Policy returns the policy in use
func (d *Deriver) Policy() Policy {
	return d.policy
}

// Derive computes parameters, signals and the fragility score. It is a pure function
// of the baseline: equal baselines give bit-identical results.
func (d *Deriver) Derive(b domain.Baseline) (Result, error) {
	if err := b.Validate(); err != nil {
		return Result{}, fmt.Errorf("derive elasticity: %w", err)
	}

	runway := RunwayMonths(b.CashOnHand, b.MonthlyBurn)
	burnMultiple, burnSig := burnMultipleSignal(b.MonthlyBurn, b.ARR)

	s := Signals{
		Runway:        formulas.Clamp01((24 - runway) / 24),
		BurnMultiple:  burnSig,
		GrossMargin:   formulas.Clamp01((75 - b.GrossMarginPct) / 45),
		RaiseTimeline: formulas.Clamp01((b.RaiseHorizon() + 6 - runway) / 12),
		DebtRate:      debtSignal(b),
		Churn:         formulas.Clamp01(b.MonthlyChurnPct / 8),
		Scale:         formulas.Clamp01((7 - math.Log10(math.Max(b.ARR, 1))) / 3),
		CostHHI:       costConcentration(b.CostLines),
	}

	fragility := d.fragility(s)
	f := float64(fragility) / 100

	p := Parameters{
		RevenueVolPct:           lerp(FactorRevenueVol, 0.5*s.Churn+0.3*s.GrossMargin+0.2*s.Scale),
		ChurnVolPct:             lerp(FactorChurnVol, 0.6*s.Churn+0.4*s.GrossMargin),
		BurnVolPct:              lerp(FactorBurnVol, 0.45*s.BurnMultiple+0.35*s.Runway+0.20*s.CostHHI),
		ShockProb:               lerp(FactorShockProb, f),
		ShockSeverityRevenuePct: lerp(FactorShockSeverityRevenue, 0.5*s.Churn+0.5*s.Scale),
		ShockSeverityBurnPct:    lerp(FactorShockSeverityBurn, 0.5*s.DebtRate+0.5*s.BurnMultiple),
		CorrRevenueBurn:         formulas.Lerp(-0.15, -0.85, f),
		CorrRevenueChurn:        formulas.Lerp(-0.05, -0.85, 0.5*s.Churn+0.5*s.GrossMargin),
	}

	// Rounding can leave a hair outside a range end; pin every field to its bounds
	for _, factor := range Factors() {
		p = p.With(factor, p.Get(factor))
	}

	return Result{
		Params:       p,
		Signals:      s,
		Fragility:    fragility,
		Band:         d.policy.BandFor(fragility),
		RunwayMonths: runway,
		BurnMultiple: burnMultiple,
	}, nil
}

// fragility is the weighted composite of the five named signals on a 0-100 scale
func (d *Deriver) fragility(s Signals) int {
	w := d.policy.Weights
	composite := w.Runway*formulas.Clamp01(s.Runway) +
		w.BurnMultiple*formulas.Clamp01(s.BurnMultiple) +
		w.GrossMargin*formulas.Clamp01(s.GrossMargin) +
		w.RaiseTimeline*formulas.Clamp01(s.RaiseTimeline) +
		w.DebtRate*formulas.Clamp01(s.DebtRate)
	score := int(math.Round(100 * composite))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RunwayMonths returns cash/burn, or RunwaySentinel when burn is not positive
func RunwayMonths(cash, burn float64) float64 {
	if burn <= 0 {
		return RunwaySentinel
	}
	runway := cash / burn
	if !formulas.IsFinite(runway) || runway > RunwaySentinel {
		return RunwaySentinel
	}
	return runway
}

// burnMultipleSignal returns annualised burn over ARR and its danger signal.
// Without revenue any burn is maximally dangerous; without burn nothing is.
func burnMultipleSignal(burn, arr float64) (float64, float64) {
	if burn <= 0 {
		return 0, 0
	}
	if arr <= 0 {
		return RunwaySentinel, 1
	}
	bm := 12 * burn / arr
	return bm, formulas.Clamp01((bm - 0.5) / 2.5)
}

func debtSignal(b domain.Baseline) float64 {
	if b.DebtOutstanding <= 0 {
		return 0
	}
	leverage := 1.0
	if assets := b.CashOnHand + b.ARR; assets > 0 {
		leverage = formulas.Clamp01(b.DebtOutstanding / assets)
	}
	rate := formulas.Clamp01((b.InterestRatePct - 4) / 12)
	return formulas.Clamp01(0.7*leverage + 0.3*rate)
}

// costConcentration is the Herfindahl index of the cost lines (0 when there are none)
func costConcentration(lines []domain.CostLine) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.MonthlyAmount
	}
	if total <= 0 {
		return 0
	}
	hhi := 0.0
	for _, l := range lines {
		share := l.MonthlyAmount / total
		hhi += share * share
	}
	return formulas.Clamp01(hhi)
}

func lerp(f Factor, signal float64) float64 {
	r := Bounds(f)
	return formulas.Lerp(r.Min, r.Max, signal)
}
