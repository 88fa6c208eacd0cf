// Package features turns recorded session timing into a fixed-schema
// numeric feature vector.
//
// The schema is the contract between the recorder, the personal baseline
// model, the rule evaluator, and external consumers (report generator,
// aggregate scorer); feature names are load-bearing and must not change.
// Extraction is pure and total: degenerate sessions produce NaN features,
// never errors. NaN means "no sample to measure", and is clamped to zero
// by the baseline layer before any statistical use.
package features

import (
	"math"

	"pdscreen/internal/keystroke"
)

// Vector maps feature names to values. Values may be NaN when the
// underlying sample count is zero.
type Vector map[string]float64

// statSuffixes are the ten distribution statistics computed for each of
// the hold and flight timing arrays, in schema order.
var statSuffixes = []string{"mean", "std", "median", "iqr", "mad", "cv", "p95", "p99", "min", "max"}

// Left/right-hand key sets, a QWERTY home/upper/lower-row approximation
// used for the motor-asymmetry proxy.
var (
	leftHandKeys  = runeSet("`12345qwertasdfgzxcvb")
	rightHandKeys = runeSet(`67890-=[]\yuiophjklnm,.'/`)
)

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

// Extract computes the feature vector for one session.
func Extract(t *keystroke.Timing) Vector {
	v := make(Vector, 32)

	holds := finiteOnly(t.Holds)
	flights := finiteOnly(t.Flights)

	basicStats(v, holds, "hold")
	basicStats(v, flights, "flight")

	// Long-pause prevalence: fraction of flights at or above the flight
	// distribution's own 95th percentile.
	if len(flights) > 0 {
		threshold := percentile(flights, 95)
		atOrAbove := 0
		for _, f := range flights {
			if f >= threshold {
				atOrAbove++
			}
		}
		v["pause_rate_p95"] = float64(atOrAbove) / float64(len(flights))
	} else {
		v["pause_rate_p95"] = math.NaN()
	}

	// Left/right asymmetry over classifiable single-character keys.
	left, right := 0, 0
	for _, k := range t.Chars {
		r, ok := singleRune(k)
		if !ok {
			continue
		}
		if _, isLeft := leftHandKeys[r]; isLeft {
			left++
		} else if _, isRight := rightHandKeys[r]; isRight {
			right++
		}
	}
	if totalLR := left + right; totalLR > 0 {
		v["prop_left"] = float64(left) / float64(totalLR)
		v["prop_right"] = float64(right) / float64(totalLR)
		v["lr_imbalance_abs"] = math.Abs(float64(left-right)) / float64(totalLR)
	} else {
		v["prop_left"] = math.NaN()
		v["prop_right"] = math.NaN()
		v["lr_imbalance_abs"] = math.NaN()
	}

	totalChars := 0
	for _, k := range t.Chars {
		if _, ok := singleRune(k); ok {
			totalChars++
		}
	}

	v["backspace_per_100chars"] = 100 * float64(t.Backspaces) / math.Max(1, float64(totalChars))

	// Session duration is approximated by the sum of timing samples; no
	// wall-clock start time is retained, and baselines use the same proxy.
	estDuration := 0.0
	for _, h := range t.Holds {
		estDuration += h
	}
	for _, f := range t.Flights {
		estDuration += f
	}
	if estDuration > 0 {
		v["chars_per_sec"] = float64(totalChars) / estDuration
	} else {
		v["chars_per_sec"] = math.NaN()
	}

	v["n_chars"] = float64(totalChars)
	v["n_presses"] = float64(t.Presses)
	v["n_releases"] = float64(t.Releases)

	return v
}

// basicStats fills the ten <prefix>_* statistics for one timing array.
// An empty array yields NaN for all ten.
func basicStats(v Vector, arr []float64, prefix string) {
	if len(arr) == 0 {
		for _, suffix := range statSuffixes {
			v[prefix+"_"+suffix] = math.NaN()
		}
		return
	}

	m := mean(arr)
	std := sampleStd(arr)

	v[prefix+"_mean"] = m
	v[prefix+"_std"] = std
	v[prefix+"_median"] = median(arr)
	v[prefix+"_iqr"] = iqrOf(arr)
	v[prefix+"_mad"] = madOf(arr)
	if len(arr) > 1 && m > 0 {
		v[prefix+"_cv"] = std / m
	} else {
		v[prefix+"_cv"] = 0
	}
	v[prefix+"_p95"] = percentile(arr, 95)
	v[prefix+"_p99"] = percentile(arr, 99)

	min, max := arr[0], arr[0]
	for _, x := range arr[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	v[prefix+"_min"] = min
	v[prefix+"_max"] = max
}

// singleRune returns the rune of a single-character token, reporting
// whether the token counts as a typed character. Named keys (multi-rune
// tokens) do not.
func singleRune(token string) (rune, bool) {
	var r rune
	n := 0
	for _, c := range token {
		r = c
		n++
		if n > 1 {
			return 0, false
		}
	}
	if n != 1 {
		return 0, false
	}
	return r, true
}

// Sanitized returns a copy of v with every non-finite value replaced by
// zero, the form required for JSON serialization and statistical use.
func (v Vector) Sanitized() Vector {
	out := make(Vector, len(v))
	for name, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		out[name] = x
	}
	return out
}
