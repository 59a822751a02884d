package elasticity

import (
	"math"

	"github.com/aristath/runway/internal/domain"
)

// Weights are the fragility composite weights. They must be non-negative and sum to 1.
type Weights struct {
	Runway        float64 `json:"runway" yaml:"runway"`
	BurnMultiple  float64 `json:"burn_multiple" yaml:"burn_multiple"`
	GrossMargin   float64 `json:"gross_margin" yaml:"gross_margin"`
	RaiseTimeline float64 `json:"raise_timeline" yaml:"raise_timeline"`
	DebtRate      float64 `json:"debt_rate" yaml:"debt_rate"`
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Runway + w.BurnMultiple + w.GrossMargin + w.RaiseTimeline + w.DebtRate
}

// BandThresholds are the lower score bounds of the MODERATE and FRAGILE bands
type BandThresholds struct {
	Moderate int `json:"moderate" yaml:"moderate"`
	Fragile  int `json:"fragile" yaml:"fragile"`
}

// Policy bundles the tunable constants of fragility scoring
type Policy struct {
	Weights Weights        `json:"weights" yaml:"weights"`
	Bands   BandThresholds `json:"bands" yaml:"bands"`
}

// DefaultPolicy returns the stock weights: runway 34%, burn multiple 22%,
// gross margin 18%, raise timeline 16%, debt/rate 10%
func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			Runway:        0.34,
			BurnMultiple:  0.22,
			GrossMargin:   0.18,
			RaiseTimeline: 0.16,
			DebtRate:      0.10,
		},
		Bands: BandThresholds{
			Moderate: 30,
			Fragile:  60,
		},
	}
}

// Validate rejects policies whose weights or bands cannot produce a 0-100 score
func (p Policy) Validate() error {
	w := p.Weights
	named := []struct {
		field string
		value float64
	}{
		{"weights.runway", w.Runway},
		{"weights.burn_multiple", w.BurnMultiple},
		{"weights.gross_margin", w.GrossMargin},
		{"weights.raise_timeline", w.RaiseTimeline},
		{"weights.debt_rate", w.DebtRate},
	}
	for _, n := range named {
		if math.IsNaN(n.value) || n.value < 0 {
			return &domain.ConfigurationError{Field: n.field, Reason: "must be non-negative"}
		}
	}
	if math.Abs(w.Sum()-1) > 1e-6 {
		return &domain.ConfigurationError{Field: "weights", Reason: "must sum to 1"}
	}
	if p.Bands.Moderate <= 0 || p.Bands.Fragile <= p.Bands.Moderate || p.Bands.Fragile > 100 {
		return &domain.ConfigurationError{Field: "bands", Reason: "must satisfy 0 < moderate < fragile <= 100"}
	}
	return nil
}

// Band is the qualitative bucket of a fragility score
type Band string

const (
	BandRobust   Band = "ROBUST"
	BandModerate Band = "MODERATE"
	BandFragile  Band = "FRAGILE"
)

// BandFor classifies a score
func (p Policy) BandFor(score int) Band {
	switch {
	case score >= p.Bands.Fragile:
		return BandFragile
	case score >= p.Bands.Moderate:
		return BandModerate
	default:
		return BandRobust
	}
}
