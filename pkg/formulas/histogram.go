package formulas

import (
	"gonum.org/v1/gonum/floats"
)

// Bucket is one equal-width histogram bin. Frequency is a fraction of all samples.
type Bucket struct {
	Min       float64 `json:"min" msgpack:"min"`
	Max       float64 `json:"max" msgpack:"max"`
	Frequency float64 `json:"frequency" msgpack:"frequency"`
}

// Histogram buckets data into n equal-width bins spanning [min, max] of the data.
// The maximum lands in the last bin. When every value is equal the span is widened
// to [v-0.5, v+0.5] so bins keep a positive width.
func Histogram(data []float64, n int) []Bucket {
	if len(data) == 0 || n <= 0 {
		return []Bucket{}
	}

	lo, hi := floats.Min(data), floats.Max(data)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	edges := make([]float64, n+1)
	floats.Span(edges, lo, hi)

	counts := make([]float64, n)
	width := (hi - lo) / float64(n)
	for _, v := range data {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}

	total := float64(len(data))
	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i] = Bucket{
			Min:       edges[i],
			Max:       edges[i+1],
			Frequency: counts[i] / total,
		}
	}
	return buckets
}

// FrequencySum adds up bucket frequencies (1.0 within tolerance for a normalised histogram)
func FrequencySum(buckets []Bucket) float64 {
	freqs := make([]float64, len(buckets))
	for i, b := range buckets {
		freqs[i] = b.Frequency
	}
	return floats.Sum(freqs)
}
