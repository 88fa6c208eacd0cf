// Package rules applies a fixed deterministic rule set over robust
// z-scores and produces an explainable screening result.
//
// The seven rules capture the motor patterns reported in the
// keystroke-dynamics literature for Parkinson's disease: slower and more
// variable timing, more long pauses, reduced overall speed, increased
// left/right imbalance, and elevated error repair. Thresholds are literal
// parts of the contract, not runtime configuration, so two deployments
// always score identically.
package rules

import (
	"math"

	"pdscreen/internal/features"
)

// Total is the number of rules in the set; the score is fired/Total.
const Total = 7

// Rule identifiers.
const (
	FlightVarHigh     = "FLIGHT_VAR_HIGH"
	HoldVarHigh       = "HOLD_VAR_HIGH"
	PausesHigh        = "PAUSES_HIGH"
	SpeedLow          = "SPEED_LOW"
	AsymmetryHigh     = "ASYMMETRY_HIGH"
	BackspaceRateHigh = "BACKSPACE_RATE_HIGH"
	TimingSlowed      = "TIMING_SLOWED"
)

// Band is the coarse risk classification derived from the score.
type Band string

const (
	BandLow      Band = "LOW"
	BandModerate Band = "MODERATE"
	BandHigh     Band = "HIGH"
)

// FiredRule records one triggered rule and the z-scores that triggered it.
type FiredRule struct {
	Rule   string             `json:"rule"`
	Detail map[string]float64 `json:"detail"`
}

// Evaluation is the outcome of one rule pass. Score is the fraction of
// rules fired; Band cuts at 2/7 (moderate) and 4/7 (high).
type Evaluation struct {
	Score float64     `json:"score_0to1"`
	Band  Band        `json:"band"`
	Fired []FiredRule `json:"rules_fired"`
}

// Evaluate runs the rule set over a feature vector's robust z-scores.
// Pure function: no side effects, no mutation of inputs. A z-score missing
// from rz reads as zero, consistent with the baseline layer.
func Evaluate(_ features.Vector, rz map[string]float64) Evaluation {
	z := func(name string) float64 {
		v, ok := rz[name]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}

	fired := []FiredRule{}
	add := func(rule string, cond bool, detail map[string]float64) {
		if cond {
			fired = append(fired, FiredRule{Rule: rule, Detail: detail})
		}
	}

	add(FlightVarHigh,
		z("flight_std") > 2.0 || z("flight_mad") > 2.0 || z("flight_iqr") > 2.0,
		map[string]float64{
			"rz_flight_std": z("flight_std"),
			"rz_flight_mad": z("flight_mad"),
			"rz_flight_iqr": z("flight_iqr"),
		})

	add(HoldVarHigh,
		z("hold_std") > 2.0 || z("hold_mad") > 2.0 || z("hold_iqr") > 2.0,
		map[string]float64{
			"rz_hold_std": z("hold_std"),
			"rz_hold_mad": z("hold_mad"),
			"rz_hold_iqr": z("hold_iqr"),
		})

	add(PausesHigh,
		z("flight_p95") > 2.0 || z("pause_rate_p95") > 2.0,
		map[string]float64{
			"rz_flight_p95":     z("flight_p95"),
			"rz_pause_rate_p95": z("pause_rate_p95"),
		})

	add(SpeedLow,
		z("chars_per_sec") < -2.0,
		map[string]float64{
			"rz_chars_per_sec": z("chars_per_sec"),
		})

	add(AsymmetryHigh,
		z("lr_imbalance_abs") > 2.0,
		map[string]float64{
			"rz_lr_imbalance_abs": z("lr_imbalance_abs"),
		})

	add(BackspaceRateHigh,
		z("backspace_per_100chars") > 2.0,
		map[string]float64{
			"rz_backspace_per_100chars": z("backspace_per_100chars"),
		})

	add(TimingSlowed,
		z("hold_median") > 1.5 || z("flight_median") > 1.5,
		map[string]float64{
			"rz_hold_median":   z("hold_median"),
			"rz_flight_median": z("flight_median"),
		})

	score := float64(len(fired)) / Total
	return Evaluation{
		Score: score,
		Band:  bandFor(score),
		Fired: fired,
	}
}

func bandFor(score float64) Band {
	switch {
	case score >= 4.0/Total:
		return BandHigh
	case score >= 2.0/Total:
		return BandModerate
	default:
		return BandLow
	}
}
