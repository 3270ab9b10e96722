// Package algo holds the statistical kernels of baseline discovery: the
// inlier value band of a feature and the contiguous window it holds for.
package algo

import (
	"math"
	"slices"

	"github.com/allisonaustin/cluster-vis/schema"
	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between the closest ranks. values need not be sorted.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sortedPercentile(sorted, p)
}

func sortedPercentile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// EstimateRange returns the IQR inlier band of values. The lower fence is
// floored at 0, both fences are widened by the ext fraction, then rounded
// to 2 decimals. An empty input yields (0, 0).
func EstimateRange(values []float64, k, ext float64) schema.ValueRange {
	if len(values) == 0 {
		return schema.ValueRange{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q1 := sortedPercentile(sorted, 25)
	q3 := sortedPercentile(sorted, 75)
	iqr := q3 - q1

	lower := max(0, q1-k*iqr)
	upper := q3 + k*iqr
	lower -= lower * ext
	upper += upper * ext
	return schema.ValueRange{Lower: Round(lower, 2), Upper: Round(upper, 2)}
}

// FallbackRange returns mean ± one sample standard deviation, lower bound
// floored at 0 and both rounded to 2 decimals.
func FallbackRange(values []float64) schema.ValueRange {
	if len(values) == 0 {
		return schema.ValueRange{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return schema.ValueRange{
		Lower: Round(max(0, mean-std), 2),
		Upper: Round(mean+std, 2),
	}
}

// ResolveRange estimates the band and substitutes FallbackRange when it
// collapses to (0, 0). The flag reports whether the fallback was used.
func ResolveRange(values []float64, k, ext float64) (schema.ValueRange, bool) {
	vr := EstimateRange(values, k, ext)
	if !vr.IsZero() {
		return vr, false
	}
	return FallbackRange(values), true
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
