package features

import (
	"math"
	"sort"
)

// Statistical helpers shared by feature extraction and baseline fitting.
// Conventions follow the screening model: the standard deviation is the
// sample estimator (ddof=1) and percentiles use linear interpolation, so
// values computed here line up with baselines built from the same math.

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the ddof=1 standard deviation; 0 for fewer than 2 samples.
func sampleStd(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// populationStd is the ddof=0 standard deviation; 0 for empty input.
func populationStd(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// percentile computes the p-th percentile (0..100) with linear
// interpolation between closest ranks. 0 for empty input.
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(n-1)
	if rank <= 0 {
		return sorted[0]
	}
	if rank >= float64(n-1) {
		return sorted[n-1]
	}
	lo := int(math.Floor(rank))
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// iqrOf is the interquartile range (p75 - p25); 0 for fewer than 2 samples.
func iqrOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return percentile(values, 75) - percentile(values, 25)
}

// madOf is the median absolute deviation (unscaled); 0 for fewer than 2
// samples.
func madOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := median(values)
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - m)
	}
	return median(devs)
}

// finiteOnly returns the finite subset of values, dropping NaN and ±Inf.
func finiteOnly(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
