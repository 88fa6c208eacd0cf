// Package baseline fits a per-user robust statistical model over a corpus
// of personal baseline sessions and scores new sessions against it.
//
// There is deliberately no cross-user modeling: every baseline is fit from
// one person's own sessions, and a screened session is only ever compared
// to that person's history.
package baseline

import (
	"errors"
	"math"
	"sort"

	"pdscreen/internal/features"
)

// ErrEmptyBaseline is returned when fitting with zero corpus sessions.
// Scoring cannot proceed without it, but feature extraction still can;
// callers degrade to feature-only output rather than failing the session.
var ErrEmptyBaseline = errors.New("baseline corpus is empty")

// scaleFloor is the threshold below which a spread estimate is considered
// degenerate and the next estimator in the ladder is tried.
const scaleFloor = 1e-12

// Baseline holds per-feature robust center and scale, immutable after Fit.
// Scoring never mutates it, so one fitted Baseline may be shared by any
// number of concurrent read-only scoring sessions.
type Baseline struct {
	names  []string
	center map[string]float64
	scale  map[string]float64
}

// Fit computes per-feature robust statistics over a corpus snapshot:
// center = median, scale = the first usable of MAD, IQR/1.349, sample std,
// or 1.0. The fallback ladder keeps constant columns (a user who never
// typed a backspace) from producing a zero scale and unbounded z-scores.
//
// Non-finite values are clamped to zero before fitting so a NaN feature in
// one session cannot poison a whole column.
func Fit(corpus []features.Vector) (*Baseline, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyBaseline
	}

	names := unionNames(corpus)
	b := &Baseline{
		names:  names,
		center: make(map[string]float64, len(names)),
		scale:  make(map[string]float64, len(names)),
	}

	col := make([]float64, len(corpus))
	for _, name := range names {
		for i, v := range corpus {
			x := v[name] // missing feature reads as 0
			if math.IsNaN(x) || math.IsInf(x, 0) {
				x = 0
			}
			col[i] = x
		}
		b.center[name] = colMedian(col)
		b.scale[name] = robustScale(col)
	}

	return b, nil
}

// RZ returns robust z-scores for every feature seen at fit time.
// Features missing from v, or carrying non-finite values, read as zero;
// baseline and live sessions are allowed to develop slightly different
// feature sets over time, so a miss is not an error.
func (b *Baseline) RZ(v features.Vector) map[string]float64 {
	rz := make(map[string]float64, len(b.names))
	for _, name := range b.names {
		x := v[name]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		rz[name] = (x - b.center[name]) / b.scale[name]
	}
	return rz
}

// Names returns the feature columns the baseline was fit over, sorted.
func (b *Baseline) Names() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Center returns the fitted center for a feature, 0 if unknown.
func (b *Baseline) Center(name string) float64 { return b.center[name] }

// Scale returns the fitted scale for a feature, 1 if unknown.
func (b *Baseline) Scale(name string) float64 {
	if s, ok := b.scale[name]; ok {
		return s
	}
	return 1
}

// Sessions-to-columns plumbing.

func unionNames(corpus []features.Vector) []string {
	seen := make(map[string]struct{})
	for _, v := range corpus {
		for name := range v {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func colMedian(col []float64) float64 {
	sorted := make([]float64, len(col))
	copy(sorted, col)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// robustScale walks the estimator ladder: MAD, then IQR scaled by the
// normal-distribution factor 1.349, then sample std, then 1.0.
func robustScale(col []float64) float64 {
	if mad := colMAD(col); mad > scaleFloor {
		return mad
	}
	if iqr := colIQR(col); iqr > scaleFloor {
		return iqr / 1.349
	}
	if std := colStd(col); std > scaleFloor {
		return std
	}
	return 1
}

func colMAD(col []float64) float64 {
	if len(col) < 2 {
		return 0
	}
	m := colMedian(col)
	devs := make([]float64, len(col))
	for i, x := range col {
		devs[i] = math.Abs(x - m)
	}
	return colMedian(devs)
}

func colIQR(col []float64) float64 {
	if len(col) < 2 {
		return 0
	}
	return colPercentile(col, 75) - colPercentile(col, 25)
}

func colStd(col []float64) float64 {
	n := len(col)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range col {
		sum += x
	}
	m := sum / float64(n)
	ss := 0.0
	for _, x := range col {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func colPercentile(col []float64, p float64) float64 {
	sorted := make([]float64, len(col))
	copy(sorted, col)
	sort.Float64s(sorted)

	n := len(sorted)
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
