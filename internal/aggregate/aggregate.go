// Package aggregate combines per-modality screening results (typing
// dynamics, voice analysis, blink tracking) into one weighted risk
// assessment.
package aggregate

import (
	"fmt"
	"math"
)

// Modality weights. Normalized over whichever modalities are present, so
// a typing-only assessment still yields a 0..1 score.
const (
	weightTyping = 0.35
	weightVoice  = 0.40
	weightBlink  = 0.25
)

// Blink-rate thresholds in blinks per minute. Healthy spontaneous blink
// rates cluster around 15-20/min; rates under 12 are the commonly cited
// hypomimia indicator.
const (
	blinkRateReduced = 12.0
	blinkRateNormal  = 20.0
)

// Category is the coarse overall risk classification.
type Category string

const (
	CategoryLow      Category = "low"
	CategoryModerate Category = "moderate"
	CategoryElevated Category = "elevated"
	CategoryHigh     Category = "high"
)

// BlinkSample is one detected blink with its monotonic timestamp in seconds.
type BlinkSample struct {
	Timestamp float64 `json:"timestamp"`
}

// BlinkIndicators are the boolean/ordinal flags derived from blink metrics.
type BlinkIndicators struct {
	ReducedBlinkRate     bool   `json:"reduced_blink_rate"`
	IncreasedVariability bool   `json:"increased_variability"`
	BlinkRatePercentile  string `json:"blink_rate_percentile"`
}

// BlinkResult summarizes one blink-tracking session.
type BlinkResult struct {
	BlinkRate      float64         `json:"blink_rate"`
	Variability    float64         `json:"variability"`
	RiskIndicators BlinkIndicators `json:"risk_indicators"`
}

// AnalyzeBlink computes blink rate and inter-blink variability over a
// session of duration seconds. Variability is the coefficient of variation
// of the inter-blink intervals; fewer than two intervals yield 0.
func AnalyzeBlink(samples []BlinkSample, durationSec float64) (*BlinkResult, error) {
	if durationSec <= 0 {
		return nil, fmt.Errorf("invalid session duration %.3fs", durationSec)
	}

	rate := float64(len(samples)) / durationSec * 60

	cv := 0.0
	if len(samples) >= 3 {
		intervals := make([]float64, 0, len(samples)-1)
		for i := 1; i < len(samples); i++ {
			intervals = append(intervals, samples[i].Timestamp-samples[i-1].Timestamp)
		}
		m := 0.0
		for _, iv := range intervals {
			m += iv
		}
		m /= float64(len(intervals))
		if m > 0 {
			ss := 0.0
			for _, iv := range intervals {
				d := iv - m
				ss += d * d
			}
			cv = math.Sqrt(ss/float64(len(intervals))) / m
		}
	}

	return &BlinkResult{
		BlinkRate:   rate,
		Variability: cv,
		RiskIndicators: BlinkIndicators{
			ReducedBlinkRate:     rate < blinkRateReduced,
			IncreasedVariability: cv > 0.5,
			BlinkRatePercentile:  ratePercentile(rate),
		},
	}, nil
}

func ratePercentile(rate float64) string {
	switch {
	case rate < blinkRateReduced:
		return "low"
	case rate < blinkRateNormal:
		return "normal"
	default:
		return "high"
	}
}

// Result is the combined multi-modal assessment.
type Result struct {
	OverallRisk     float64  `json:"overall_risk_score"`
	Confidence      float64  `json:"confidence"`
	Category        Category `json:"risk_category"`
	Modalities      int      `json:"modalities_available"`
	Recommendations []string `json:"recommendations"`
}

// Combine fuses the available modality scores into one weighted risk.
// Nil inputs mean the modality was not measured; weights renormalize over
// whatever is present. All three absent yields a zero-confidence result.
func Combine(typingScore, voiceRisk *float64, blink *BlinkResult) *Result {
	weighted := 0.0
	totalWeight := 0.0
	modalities := 0

	if typingScore != nil {
		weighted += clamp01(*typingScore) * weightTyping
		totalWeight += weightTyping
		modalities++
	}
	if voiceRisk != nil {
		weighted += clamp01(*voiceRisk) * weightVoice
		totalWeight += weightVoice
		modalities++
	}
	if blink != nil {
		weighted += blinkRisk(blink) * weightBlink
		totalWeight += weightBlink
		modalities++
	}

	overall := 0.0
	if totalWeight > 0 {
		overall = weighted / totalWeight
	}

	cat := categoryFor(overall)
	return &Result{
		OverallRisk:     overall,
		Confidence:      float64(modalities) / 3,
		Category:        cat,
		Modalities:      modalities,
		Recommendations: recommendationsFor(cat, modalities),
	}
}

// blinkRisk maps a blink rate to 0..1: 20/min or above scores 0, 5/min or
// below scores 1, linear in between.
func blinkRisk(b *BlinkResult) float64 {
	return clamp01((blinkRateNormal - b.BlinkRate) / 15)
}

func categoryFor(overall float64) Category {
	switch {
	case overall < 0.3:
		return CategoryLow
	case overall < 0.5:
		return CategoryModerate
	case overall < 0.7:
		return CategoryElevated
	default:
		return CategoryHigh
	}
}

func recommendationsFor(cat Category, modalities int) []string {
	recs := []string{}
	switch cat {
	case CategoryHigh:
		recs = append(recs,
			"Consult a neurologist or movement disorder specialist",
			"Bring these screening results to the consultation")
	case CategoryElevated:
		recs = append(recs,
			"Consider discussing these results with your physician",
			"Repeat the screening weekly to establish a trend")
	case CategoryModerate:
		recs = append(recs,
			"Repeat the screening over the coming weeks",
			"Screen at a consistent time of day to reduce fatigue effects")
	default:
		recs = append(recs,
			"No elevated indicators; re-screen periodically")
	}
	if modalities < 3 {
		recs = append(recs,
			"Complete the remaining screening modalities to improve confidence")
	}
	return recs
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
