package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawBaseline carries user-entered values before unit parsing.
// Every numeric field is free text such as "$1,200,000", "1.2M", "70%" or "(15,000)".
type RawBaseline struct {
	ScenarioID        string        `json:"scenario_id" yaml:"scenario_id"`
	CashOnHand        string        `json:"cash_on_hand" yaml:"cash_on_hand"`
	MonthlyBurn       string        `json:"monthly_burn" yaml:"monthly_burn"`
	ARR               string        `json:"arr" yaml:"arr"`
	GrossMarginPct    string        `json:"gross_margin_pct" yaml:"gross_margin_pct"`
	MonthlyChurnPct   string        `json:"monthly_churn_pct" yaml:"monthly_churn_pct"`
	MonthlyGrowthPct  string        `json:"monthly_growth_pct" yaml:"monthly_growth_pct"`
	DebtOutstanding   string        `json:"debt_outstanding" yaml:"debt_outstanding"`
	InterestRatePct   string        `json:"interest_rate_pct" yaml:"interest_rate_pct"`
	MonthsToNextRaise string        `json:"months_to_next_raise" yaml:"months_to_next_raise"`
	Headcount         string        `json:"headcount" yaml:"headcount"`
	CostLines         []RawCostLine `json:"cost_lines,omitempty" yaml:"cost_lines,omitempty"`
	Locked            bool          `json:"locked" yaml:"locked"`
}

// RawCostLine is a cost line with an unparsed amount
type RawCostLine struct {
	Name          string `json:"name" yaml:"name"`
	MonthlyAmount string `json:"monthly_amount" yaml:"monthly_amount"`
}

// Normalize parses every field into a Baseline. Required fields (cash, burn, ARR)
// must be present; optional fields default to zero when blank.
func (r RawBaseline) Normalize() (Baseline, error) {
	b := Baseline{
		ScenarioID: strings.TrimSpace(r.ScenarioID),
		Locked:     r.Locked,
	}

	amounts := []struct {
		field    string
		raw      string
		dst      *float64
		required bool
	}{
		{"cash_on_hand", r.CashOnHand, &b.CashOnHand, true},
		{"monthly_burn", r.MonthlyBurn, &b.MonthlyBurn, true},
		{"arr", r.ARR, &b.ARR, true},
		{"debt_outstanding", r.DebtOutstanding, &b.DebtOutstanding, false},
		{"months_to_next_raise", r.MonthsToNextRaise, &b.MonthsToNextRaise, false},
	}
	for _, a := range amounts {
		if strings.TrimSpace(a.raw) == "" {
			if a.required {
				return Baseline{}, &InputError{Field: a.field, Reason: "is required"}
			}
			continue
		}
		v, err := ParseAmount(a.raw)
		if err != nil {
			return Baseline{}, &InputError{Field: a.field, Reason: "is not a valid amount", Err: err}
		}
		*a.dst = v
	}

	percents := []struct {
		field string
		raw   string
		dst   *float64
	}{
		{"gross_margin_pct", r.GrossMarginPct, &b.GrossMarginPct},
		{"monthly_churn_pct", r.MonthlyChurnPct, &b.MonthlyChurnPct},
		{"monthly_growth_pct", r.MonthlyGrowthPct, &b.MonthlyGrowthPct},
		{"interest_rate_pct", r.InterestRatePct, &b.InterestRatePct},
	}
	for _, p := range percents {
		if strings.TrimSpace(p.raw) == "" {
			continue
		}
		v, err := ParsePercent(p.raw)
		if err != nil {
			return Baseline{}, &InputError{Field: p.field, Reason: "is not a valid percentage", Err: err}
		}
		*p.dst = v
	}

	if s := strings.TrimSpace(r.Headcount); s != "" {
		v, err := ParseAmount(s)
		if err != nil || v != float64(int(v)) {
			return Baseline{}, &InputError{Field: "headcount", Reason: "must be a whole number", Err: err}
		}
		b.Headcount = int(v)
	}

	for _, line := range r.CostLines {
		v, err := ParseAmount(line.MonthlyAmount)
		if err != nil {
			return Baseline{}, &InputError{Field: "cost_lines." + line.Name, Reason: "is not a valid amount", Err: err}
		}
		b.CostLines = append(b.CostLines, CostLine{Name: strings.TrimSpace(line.Name), MonthlyAmount: v})
	}

	return b, nil
}

// ParseAmount parses a currency-formatted number. Accepted: optional sign or accounting
// parentheses, a leading $, € or £, thousands separators (comma, underscore, space) and
// a k/m/b magnitude suffix.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}

	for _, symbol := range []string{"$", "€", "£"} {
		s = strings.TrimPrefix(s, symbol)
	}
	s = strings.TrimSpace(s)

	multiplier := 1.0
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			multiplier = 1e3
			s = s[:n-1]
		case 'm', 'M':
			multiplier = 1e6
			s = s[:n-1]
		case 'b', 'B':
			multiplier = 1e9
			s = s[:n-1]
		}
	}

	s, err := ungroup(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if s == "" {
		return 0, fmt.Errorf("amount %q has no digits", raw)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}

	v *= multiplier
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not a finite number", raw)
	}
	if negative {
		v = -v
	}
	// Normalise -0 so that hashing sees a single zero
	if v == 0 {
		v = 0
	}
	return v, nil
}

// ungroup strips thousands separators (comma, underscore or space). Every group
// after the first must have exactly three digits and no separator may follow the
// decimal point, so "1.200,50" and "1,2" are rejected instead of misread.
func ungroup(s string) (string, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && strings.ContainsAny(frac, ",_ ") {
		return "", fmt.Errorf("digit separator after the decimal point")
	}

	groups := strings.Split(strings.NewReplacer("_", ",", " ", ",").Replace(whole), ",")
	if len(groups) == 1 {
		return s, nil
	}
	for i, g := range groups {
		if (i == 0 && (len(g) == 0 || len(g) > 3)) || (i > 0 && len(g) != 3) {
			return "", fmt.Errorf("malformed digit grouping")
		}
	}

	whole = strings.Join(groups, "")
	if hasFrac {
		return whole + "." + frac, nil
	}
	return whole, nil
}

// ParsePercent parses "70", "70%" or "4.5 %" into the 0-100 scale
func ParsePercent(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, fmt.Errorf("empty percentage")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("percentage %q is not a finite number", raw)
	}
	if v == 0 {
		v = 0
	}
	return v, nil
}
