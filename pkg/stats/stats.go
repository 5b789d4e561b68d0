// Package stats provides the small descriptive statistics used to judge vital-sign series.
//
// Every function reports ok=false instead of failing when the result is undefined,
// so "not enough data" stays an ordinary outcome for callers.
package stats

import (
	"math"
	"sort"
)

// Percentile returns the p-quantile (0 <= p <= 1) of values using linear interpolation
// between the order statistics at floor((n-1)p) and ceil((n-1)p).
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 || math.IsNaN(p) || p < 0 || p > 1 {
		return 0, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	index := float64(len(sorted)-1) * p
	lower := math.Floor(index)
	upper := math.Ceil(index)
	if lower == upper {
		return sorted[int(lower)], true
	}

	weight := index - lower
	return sorted[int(lower)]*(1-weight) + sorted[int(upper)]*weight, true
}

// Median is Percentile(values, 0.5).
func Median(values []float64) (float64, bool) {
	return Percentile(values, 0.5)
}

// Percentage returns the share of values satisfying predicate, from 0 to 100.
func Percentage[T any](values []T, predicate func(T) bool) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	matching := 0
	for _, v := range values {
		if predicate(v) {
			matching++
		}
	}
	return 100 * float64(matching) / float64(len(values)), true
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
