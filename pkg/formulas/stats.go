package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1]
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Lerp linearly remaps t in [0,1] onto [lo, hi]
func Lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*Clamp01(t)
}

// IsFinite reports whether v is neither NaN nor ±Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SortedCopy returns an ascending copy of data
func SortedCopy(data []float64) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return sorted
}

// NearestRankIndex returns floor(p*(n-1)), the index used for nearest-rank percentiles
func NearestRankIndex(p float64, n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Floor(Clamp01(p) * float64(n-1)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// PercentileSorted returns the nearest-rank percentile of already sorted data.
// Unlike stat.Quantile this never interpolates.
func PercentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[NearestRankIndex(p, len(sorted))]
}

// PopMeanStdDev returns the mean and population standard deviation
func PopMeanStdDev(data []float64) (mean, std float64) {
	if len(data) == 0 {
		return 0, 0
	}
	mean, std = stat.PopMeanStdDev(data, nil)
	if !IsFinite(std) {
		std = 0
	}
	return mean, std
}

// Skewness returns the adjusted Fisher-Pearson standardized moment coefficient (G1).
// Fewer than three samples or zero spread yield 0.
func Skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	if floats.Max(data) == floats.Min(data) {
		return 0
	}
	skew := stat.Skew(data, nil)
	if !IsFinite(skew) {
		return 0
	}
	return skew
}
