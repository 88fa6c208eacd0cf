// Package report assembles screening results into the record shape shared
// with downstream consumers, and renders human-readable text reports.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"pdscreen/internal/aggregate"
	"pdscreen/internal/baseline"
	"pdscreen/internal/features"
	"pdscreen/internal/rules"
)

// Record is the JSON-serializable screening record. Field names are
// load-bearing: the aggregate scorer and external report tooling key off
// them directly.
type Record struct {
	Band       rules.Band         `json:"band"`
	Score      float64            `json:"score_0to1"`
	RulesFired []rules.FiredRule  `json:"rules_fired"`
	Features   map[string]float64 `json:"features"`
	RobustZ    map[string]float64 `json:"robust_z"`
}

// Build screens a feature vector against a fitted baseline and returns the
// complete record. Features are sanitized for serialization; the raw
// vector is untouched.
func Build(feats features.Vector, b *baseline.Baseline) *Record {
	rz := b.RZ(feats)
	eval := rules.Evaluate(feats, rz)
	return &Record{
		Band:       eval.Band,
		Score:      eval.Score,
		RulesFired: eval.Fired,
		Features:   feats.Sanitized(),
		RobustZ:    rz,
	}
}

// PrintScreening writes a formatted screening report to w.
func PrintScreening(w io.Writer, rec *Record) {
	if rec == nil {
		fmt.Fprintln(w, "No screening data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                 KEYSTROKE DYNAMICS SCREENING")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Risk Score:     %.3f  %s\n", rec.Score, FormatMetricBar(rec.Score, 0, 1, 20))
	fmt.Fprintf(w, "Risk Band:      %s\n", rec.Band)
	fmt.Fprintf(w, "Rules Fired:    %d of %d\n", len(rec.RulesFired), rules.Total)
	fmt.Fprintf(w, "  -> %s\n", interpretBand(rec.Band))
	fmt.Fprintln(w)

	if len(rec.RulesFired) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "FIRED RULES")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w)

		for i, fr := range rec.RulesFired {
			fmt.Fprintf(w, "%d. %s\n", i+1, fr.Rule)
			for _, name := range sortedKeys(fr.Detail) {
				fmt.Fprintf(w, "   %-28s %+.2f\n", name, fr.Detail[name])
			}
		}
		fmt.Fprintln(w)
	}

	printKeyFeatures(w, rec.Features)

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "Screening aid only. Not a medical diagnosis; results vary with")
	fmt.Fprintln(w, "fatigue, stress, and medication. Discuss concerns with a clinician.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// PrintFeatures writes a feature-only report, used when no baseline exists.
func PrintFeatures(w io.Writer, feats map[string]float64) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                 SESSION FEATURES (NO BASELINE)")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	printKeyFeatures(w, feats)
	fmt.Fprintln(w, "No personal baseline is available; no risk score was computed.")
	fmt.Fprintln(w, "Collect 5-10 baseline sessions at different times of day first.")
}

// PrintAggregate writes a formatted multi-modal assessment report to w.
func PrintAggregate(w io.Writer, res *aggregate.Result) {
	if res == nil {
		fmt.Fprintln(w, "No aggregate data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                 MULTI-MODAL RISK ASSESSMENT")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Overall Risk:   %.0f%%  %s\n", res.OverallRisk*100,
		FormatMetricBar(res.OverallRisk, 0, 1, 20))
	fmt.Fprintf(w, "Category:       %s\n", strings.ToUpper(string(res.Category)))
	fmt.Fprintf(w, "Confidence:     %.0f%% (%d of 3 modalities)\n",
		res.Confidence*100, res.Modalities)
	fmt.Fprintln(w)

	if len(res.Recommendations) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "RECOMMENDATIONS")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		for i, rec := range res.Recommendations {
			fmt.Fprintf(w, "%d. %s\n", i+1, rec)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
}

// FormatMetricBar produces an ASCII bar for metric visualization.
func FormatMetricBar(value, min, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	if max <= min {
		return "[" + strings.Repeat("-", width) + "]"
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	filled := int(normalized * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// keyFeatures are the features surfaced in text reports, with labels.
var keyFeatures = []struct {
	name  string
	label string
	unit  string
}{
	{"hold_mean", "Mean hold time", "s"},
	{"hold_median", "Median hold time", "s"},
	{"hold_std", "Hold variability (std)", "s"},
	{"flight_mean", "Mean flight time", "s"},
	{"flight_median", "Median flight time", "s"},
	{"flight_std", "Flight variability (std)", "s"},
	{"flight_p95", "Flight 95th percentile", "s"},
	{"pause_rate_p95", "Long-pause rate", ""},
	{"chars_per_sec", "Typing speed", "chars/s"},
	{"backspace_per_100chars", "Error repair rate", "/100 chars"},
	{"lr_imbalance_abs", "Left/right imbalance", ""},
	{"n_chars", "Characters typed", ""},
}

func printKeyFeatures(w io.Writer, feats map[string]float64) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, "SESSION FEATURES")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, kf := range keyFeatures {
		v, ok := feats[kf.name]
		if !ok {
			continue
		}
		if kf.unit != "" {
			fmt.Fprintf(w, "%-26s %10.4f %s\n", kf.label, v, kf.unit)
		} else {
			fmt.Fprintf(w, "%-26s %10.4f\n", kf.label, v)
		}
	}
	fmt.Fprintln(w)
}

func interpretBand(b rules.Band) string {
	switch b {
	case rules.BandHigh:
		return "Multiple indicators deviate from your baseline; consider a clinical consultation"
	case rules.BandModerate:
		return "Some indicators deviate from your baseline; repeat the screening over time"
	default:
		return "Typing patterns are consistent with your personal baseline"
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
