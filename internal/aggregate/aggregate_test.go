package aggregate

import (
	"math"
	"testing"
)

func blinkAt(interval float64, n int) []BlinkSample {
	samples := make([]BlinkSample, n)
	for i := range samples {
		samples[i] = BlinkSample{Timestamp: float64(i) * interval}
	}
	return samples
}

func TestAnalyzeBlinkRejectsBadDuration(t *testing.T) {
	if _, err := AnalyzeBlink(nil, 0); err == nil {
		t.Error("expected error for zero duration")
	}
	if _, err := AnalyzeBlink(nil, -5); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestAnalyzeBlinkRate(t *testing.T) {
	// 10 blinks in 60 seconds: 10/min, below the reduced threshold.
	res, err := AnalyzeBlink(blinkAt(6, 10), 60)
	if err != nil {
		t.Fatalf("AnalyzeBlink: %v", err)
	}
	if math.Abs(res.BlinkRate-10) > 1e-9 {
		t.Errorf("blink_rate = %v, want 10", res.BlinkRate)
	}
	if !res.RiskIndicators.ReducedBlinkRate {
		t.Error("reduced_blink_rate not flagged at 10/min")
	}
	if res.RiskIndicators.BlinkRatePercentile != "low" {
		t.Errorf("percentile = %q, want low", res.RiskIndicators.BlinkRatePercentile)
	}
	// Perfectly regular intervals: zero variability.
	if res.Variability != 0 {
		t.Errorf("variability = %v, want 0", res.Variability)
	}
}

func TestAnalyzeBlinkPercentileBands(t *testing.T) {
	cases := []struct {
		blinks int
		want   string
	}{
		{8, "low"},     // 8/min
		{15, "normal"}, // 15/min
		{25, "high"},   // 25/min
	}
	for _, tc := range cases {
		res, err := AnalyzeBlink(blinkAt(1, tc.blinks), 60)
		if err != nil {
			t.Fatalf("AnalyzeBlink: %v", err)
		}
		if got := res.RiskIndicators.BlinkRatePercentile; got != tc.want {
			t.Errorf("%d blinks/min: percentile = %q, want %q", tc.blinks, got, tc.want)
		}
	}
}

func TestAnalyzeBlinkVariability(t *testing.T) {
	// Irregular intervals: 1s, 1s, 10s -> CV well above the 0.5 flag.
	samples := []BlinkSample{{0}, {1}, {2}, {12}}
	res, err := AnalyzeBlink(samples, 30)
	if err != nil {
		t.Fatalf("AnalyzeBlink: %v", err)
	}
	if res.Variability <= 0.5 {
		t.Errorf("variability = %v, want > 0.5", res.Variability)
	}
	if !res.RiskIndicators.IncreasedVariability {
		t.Error("increased_variability not flagged")
	}
}

func floatPtr(x float64) *float64 { return &x }

func TestCombineSingleModality(t *testing.T) {
	res := Combine(floatPtr(0.6), nil, nil)

	// Weights renormalize: one modality carries full weight.
	if math.Abs(res.OverallRisk-0.6) > 1e-9 {
		t.Errorf("overall = %v, want 0.6", res.OverallRisk)
	}
	if res.Modalities != 1 {
		t.Errorf("modalities = %d, want 1", res.Modalities)
	}
	if math.Abs(res.Confidence-1.0/3) > 1e-9 {
		t.Errorf("confidence = %v, want 1/3", res.Confidence)
	}
	if res.Category != CategoryElevated {
		t.Errorf("category = %v, want elevated", res.Category)
	}
}

func TestCombineAllModalities(t *testing.T) {
	blink := &BlinkResult{BlinkRate: 20} // blink risk 0
	res := Combine(floatPtr(0.5), floatPtr(0.5), blink)

	// (0.5*0.35 + 0.5*0.40 + 0*0.25) / 1.0 = 0.375
	if math.Abs(res.OverallRisk-0.375) > 1e-9 {
		t.Errorf("overall = %v, want 0.375", res.OverallRisk)
	}
	if res.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", res.Confidence)
	}
	if res.Category != CategoryModerate {
		t.Errorf("category = %v, want moderate", res.Category)
	}
}

func TestCombineNoModalities(t *testing.T) {
	res := Combine(nil, nil, nil)
	if res.OverallRisk != 0 || res.Confidence != 0 || res.Modalities != 0 {
		t.Errorf("empty combine = %+v", res)
	}
	if res.Category != CategoryLow {
		t.Errorf("category = %v, want low", res.Category)
	}
	if len(res.Recommendations) == 0 {
		t.Error("recommendations should never be empty")
	}
}

func TestBlinkRiskMapping(t *testing.T) {
	cases := []struct {
		rate float64
		want float64
	}{
		{25, 0},   // above normal: no risk contribution
		{20, 0},   // at the normal threshold
		{12.5, 0.5},
		{5, 1},    // floor of the linear ramp
		{0, 1},    // clamped
	}
	for _, tc := range cases {
		got := blinkRisk(&BlinkResult{BlinkRate: tc.rate})
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("blinkRisk(%v) = %v, want %v", tc.rate, got, tc.want)
		}
	}
}

func TestCategoryBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Category
	}{
		{0.0, CategoryLow},
		{0.29, CategoryLow},
		{0.3, CategoryModerate},
		{0.49, CategoryModerate},
		{0.5, CategoryElevated},
		{0.69, CategoryElevated},
		{0.7, CategoryHigh},
		{1.0, CategoryHigh},
	}
	for _, tc := range cases {
		if got := categoryFor(tc.score); got != tc.want {
			t.Errorf("categoryFor(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
