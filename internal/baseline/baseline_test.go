package baseline

import (
	"math"
	"testing"

	"pdscreen/internal/features"
)

func corpusFromColumn(name string, values ...float64) []features.Vector {
	corpus := make([]features.Vector, len(values))
	for i, v := range values {
		corpus[i] = features.Vector{name: v}
	}
	return corpus
}

func TestFitEmptyCorpus(t *testing.T) {
	if _, err := Fit(nil); err != ErrEmptyBaseline {
		t.Errorf("Fit(nil) err = %v, want ErrEmptyBaseline", err)
	}
	if _, err := Fit([]features.Vector{}); err != ErrEmptyBaseline {
		t.Errorf("Fit([]) err = %v, want ErrEmptyBaseline", err)
	}
}

func TestFitCenterIsMedian(t *testing.T) {
	b, err := Fit(corpusFromColumn("x", 1, 2, 3, 4, 100))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if got := b.Center("x"); got != 3 {
		t.Errorf("center = %v, want 3 (median, not mean)", got)
	}
}

func TestScaleLadder(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   float64
	}{
		// MAD usable: median 0.5, |dev| = {0.5,0.5,0.5,0.5}, MAD 0.5.
		{"mad", []float64{0, 0, 1, 1}, 0.5},
		// MAD degenerates to 0, IQR = p75 - p25 = 0.25, scaled by 1.349.
		{"iqr-fallback", []float64{0, 0, 0, 1}, 0.25 / 1.349},
		// MAD and IQR both 0, sample std survives.
		{"std-fallback", []float64{0, 0, 0, 0, 1}, math.Sqrt(0.2)},
		// Constant column: everything degenerates, unit scale.
		{"unit-fallback", []float64{5, 5, 5, 5}, 1.0},
		// Single session: no spread estimator works.
		{"single-session", []float64{3}, 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Fit(corpusFromColumn("x", tc.values...))
			if err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if got := b.Scale("x"); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("scale = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRZ(t *testing.T) {
	b, err := Fit(corpusFromColumn("x", 0, 0, 1, 1))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// center 0.5, scale 0.5
	rz := b.RZ(features.Vector{"x": 1.5})
	if got := rz["x"]; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("rz = %v, want 2.0", got)
	}
}

func TestRZMissingAndNonFiniteReadAsZero(t *testing.T) {
	b, err := Fit(corpusFromColumn("x", 2, 2, 2, 2))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Missing feature reads as 0: z = (0 - 2) / 1.
	rz := b.RZ(features.Vector{})
	if got := rz["x"]; got != -2 {
		t.Errorf("missing feature rz = %v, want -2", got)
	}

	// NaN input clamps to 0 the same way.
	rz = b.RZ(features.Vector{"x": math.NaN()})
	if got := rz["x"]; got != -2 {
		t.Errorf("NaN feature rz = %v, want -2", got)
	}
}

func TestFitSanitizesNonFiniteCorpus(t *testing.T) {
	corpus := []features.Vector{
		{"x": math.NaN()},
		{"x": math.Inf(1)},
		{"x": 4.0},
		{"x": 4.0},
	}
	b, err := Fit(corpus)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	// Sanitized column is {0, 0, 4, 4}: median 2, MAD 2.
	if got := b.Center("x"); got != 2 {
		t.Errorf("center = %v, want 2", got)
	}
	if got := b.Scale("x"); got != 2 {
		t.Errorf("scale = %v, want 2", got)
	}
}

func TestConstantColumnProducesFiniteZ(t *testing.T) {
	b, err := Fit(corpusFromColumn("backspace_per_100chars", 0, 0, 0, 0, 0))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	rz := b.RZ(features.Vector{"backspace_per_100chars": 3})
	z := rz["backspace_per_100chars"]
	if math.IsNaN(z) || math.IsInf(z, 0) {
		t.Fatalf("z = %v, want finite", z)
	}
	if z != 3 {
		t.Errorf("z = %v, want 3 (unit scale)", z)
	}
}

func TestFitIdempotent(t *testing.T) {
	corpus := corpusFromColumn("x", 1, 2, 3, 4, 5)

	b1, err := Fit(corpus)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	b2, err := Fit(corpus)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if b1.Center("x") != b2.Center("x") || b1.Scale("x") != b2.Scale("x") {
		t.Error("two fits over the same corpus disagree")
	}
}

func TestRZIdempotent(t *testing.T) {
	b, err := Fit(corpusFromColumn("x", 0, 0, 1, 1))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	v := features.Vector{"x": 1.5, "y": math.NaN()}
	first := b.RZ(v)
	second := b.RZ(v)

	if len(first) != len(second) {
		t.Fatalf("rz lengths differ between scorings: %d vs %d", len(first), len(second))
	}
	for name, z := range first {
		if got := second[name]; got != z && !(math.IsNaN(got) && math.IsNaN(z)) {
			t.Errorf("rz[%q] changed between scorings: %v -> %v", name, z, got)
		}
	}

	// Scoring mutates neither the fitted baseline nor the input vector.
	if b.Center("x") != 0.5 || b.Scale("x") != 0.5 {
		t.Errorf("baseline changed after scoring: center %v scale %v", b.Center("x"), b.Scale("x"))
	}
	if v["x"] != 1.5 || !math.IsNaN(v["y"]) {
		t.Errorf("input vector mutated: %v", v)
	}
}

func TestNamesIsSortedUnion(t *testing.T) {
	corpus := []features.Vector{
		{"b": 1, "a": 2},
		{"c": 3},
	}
	b, err := Fit(corpus)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	names := b.Names()
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("Names = %v, want [a b c]", names)
	}
}
