package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"inside", 0.4, 0.4},
		{"below", -2, 0},
		{"above", 3, 1},
		{"nan maps to low end", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp01(tt.v))
		})
	}
}

func TestLerp(t *testing.T) {
	assert.InDelta(t, 0.04, Lerp(0.04, 0.14, 0), 1e-12)
	assert.InDelta(t, 0.14, Lerp(0.04, 0.14, 1), 1e-12)
	assert.InDelta(t, 0.09, Lerp(0.04, 0.14, 0.5), 1e-12)
	assert.InDelta(t, 0.14, Lerp(0.04, 0.14, 7), 1e-12, "signal is clamped")
	assert.InDelta(t, -0.5, Lerp(-0.15, -0.85, 0.5), 1e-12, "descending ranges")
}

func TestNearestRankIndex(t *testing.T) {
	tests := []struct {
		p    float64
		n    int
		want int
	}{
		{0.10, 10, 0},  // floor(0.9)
		{0.50, 10, 4},  // floor(4.5)
		{0.90, 10, 8},  // floor(8.1)
		{0.10, 2000, 199},
		{0.50, 2000, 999},
		{0.90, 2000, 1799},
		{0.50, 1, 0},
		{1.00, 5, 4},
		{0.50, 0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NearestRankIndex(tt.p, tt.n), "p=%v n=%d", tt.p, tt.n)
	}
}

func TestPercentileSorted(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, 1.0, PercentileSorted(sorted, 0.10))
	assert.Equal(t, 5.0, PercentileSorted(sorted, 0.50))
	assert.Equal(t, 9.0, PercentileSorted(sorted, 0.90))
	assert.Equal(t, 0.0, PercentileSorted(nil, 0.5))
}

func TestPopMeanStdDev(t *testing.T) {
	mean, std := PopMeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, std, 1e-12, "population, not sample, standard deviation")

	mean, std = PopMeanStdDev(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestSkewness(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		want float64
	}{
		{"symmetric", []float64{1, 2, 3, 4, 5}, 0},
		{"too few samples", []float64{1, 9}, 0},
		{"no spread", []float64{3, 3, 3, 3}, 0},
		// G1 = n/((n-1)(n-2)) * sum(((x-mean)/s)^3), s sample std
		{"right tail", []float64{1, 1, 1, 1, 6}, 2.23606797749979},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Skewness(tt.data), 1e-9)
		})
	}

	assert.Greater(t, Skewness([]float64{1, 1, 1, 2, 10}), 0.0)
	assert.Less(t, Skewness([]float64{-10, 1, 2, 2, 2}), 0.0)
}
