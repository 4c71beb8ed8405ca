package stats

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// NullableMean is Mean over the non-NaN values. ok is false when nothing
// is left to average.
func NullableMean(values []float64) (mean float64, ok bool) {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Sum returns the sum of all values
func Sum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// Quantile calculates the q-th quantile (0 <= q <= 1) with linear
// interpolation between closest ranks.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	q = math.Max(0, math.Min(1, q))

	// Create a copy to avoid modifying the original slice
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// IQR calculates the interquartile range (Q3 - Q1)
func IQR(values []float64) float64 {
	return Quantile(values, 0.75) - Quantile(values, 0.25)
}

// OutlierBounds returns the Tukey fences Q1 - 1.5*IQR and Q3 + 1.5*IQR.
func OutlierBounds(values []float64) (lower, upper float64) {
	iqr := IQR(values)
	return Quantile(values, 0.25) - 1.5*iqr, Quantile(values, 0.75) + 1.5*iqr
}
