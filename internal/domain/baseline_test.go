package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBaseline() Baseline {
	return Baseline{
		ScenarioID:      "acme",
		CashOnHand:      1_200_000,
		MonthlyBurn:     150_000,
		ARR:             1_800_000,
		GrossMarginPct:  70,
		MonthlyChurnPct: 4,
		Locked:          true,
	}
}

func TestBaseline_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Baseline)
		field  string
	}{
		{"valid", func(b *Baseline) {}, ""},
		{"negative cash", func(b *Baseline) { b.CashOnHand = -1 }, "cash_on_hand"},
		{"nan burn", func(b *Baseline) { b.MonthlyBurn = math.NaN() }, "monthly_burn"},
		{"infinite arr", func(b *Baseline) { b.ARR = math.Inf(1) }, "arr"},
		{"margin above 100", func(b *Baseline) { b.GrossMarginPct = 120 }, "gross_margin_pct"},
		{"negative churn", func(b *Baseline) { b.MonthlyChurnPct = -1 }, "monthly_churn_pct"},
		{"growth out of range", func(b *Baseline) { b.MonthlyGrowthPct = 150 }, "monthly_growth_pct"},
		{"negative debt", func(b *Baseline) { b.DebtOutstanding = -5 }, "debt_outstanding"},
		{"negative headcount", func(b *Baseline) { b.Headcount = -1 }, "headcount"},
		{"negative cost line", func(b *Baseline) { b.CostLines = []CostLine{{Name: "rent", MonthlyAmount: -1}} }, "cost_lines.rent"},
		{"infinite cost line", func(b *Baseline) { b.CostLines = []CostLine{{Name: "payroll", MonthlyAmount: math.Inf(1)}} }, "cost_lines.payroll"},
		{"infinite raise horizon", func(b *Baseline) { b.MonthsToNextRaise = math.Inf(1) }, "months_to_next_raise"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBaseline()
			tt.mutate(&b)
			err := b.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var inputErr *InputError
			if assert.True(t, errors.As(err, &inputErr)) {
				assert.Equal(t, tt.field, inputErr.Field)
			}
		})
	}
}

func TestBaseline_Validate_RejectsDrafts(t *testing.T) {
	b := validBaseline()
	b.Locked = false

	err := b.Validate()
	assert.True(t, IsInputError(err))
	assert.ErrorIs(t, err, ErrBaselineNotLocked)
}

func TestBaseline_RaiseHorizon(t *testing.T) {
	b := validBaseline()
	assert.Equal(t, DefaultMonthsToRaise, b.RaiseHorizon())

	b.MonthsToNextRaise = 9
	assert.Equal(t, 9.0, b.RaiseHorizon())
}

func TestErrorKinds(t *testing.T) {
	cfgErr := &ConfigurationError{Field: "iterations", Reason: "must be positive"}
	assert.True(t, IsConfigurationError(cfgErr))
	assert.False(t, IsInputError(cfgErr))
	assert.Equal(t, "configuration error: iterations must be positive", cfgErr.Error())

	anomaly := &NumericAnomalyError{Excluded: 3, Total: 3}
	assert.True(t, IsNumericAnomaly(anomaly))
	assert.Contains(t, anomaly.Error(), "3 of 3")

	assert.True(t, IsCancelled(errors.Join(errors.New("ctx"), ErrCancelled)))
	assert.False(t, IsCancelled(cfgErr))
}
