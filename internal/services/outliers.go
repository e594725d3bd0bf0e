package services

import (
	"math"
	"slices"
)

const iqrMultiplier = 1.5

// Quantile interpolates linearly between the closest order statistics of
// an ascending slice, matching the default numpy/pandas definition.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// OutlierThresholds returns q1 − 1.5·IQR and q3 + 1.5·IQR where q1 and q3
// are the lower and upper quantiles of values.
func OutlierThresholds(values []float64, lowerQ, upperQ float64) (low, high float64) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	q1 := Quantile(sorted, lowerQ)
	q3 := Quantile(sorted, upperQ)
	iqr := q3 - q1
	return q1 - iqrMultiplier*iqr, q3 + iqrMultiplier*iqr
}

// CapOutliers clamps values into the outlier thresholds in place and
// returns the limits it used. An empty column is left untouched.
func CapOutliers(values []float64, lowerQ, upperQ float64) (low, high float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	low, high = OutlierThresholds(values, lowerQ, upperQ)
	for i, v := range values {
		switch {
		case v < low:
			values[i] = low
		case v > high:
			values[i] = high
		}
	}
	return low, high
}
