// Package stream drives one live typing session through its lifecycle:
// collecting until enough samples exist, analyzing with per-event scoring,
// and a final summary at session end.
package stream

import (
	"math"
	"time"

	"pdscreen/internal/baseline"
	"pdscreen/internal/features"
	"pdscreen/internal/keystroke"
	"pdscreen/internal/rules"
)

// MinHoldSamples is the number of hold samples required before live
// analysis starts. Below it, per-feature statistics are too noisy to show.
const MinHoldSamples = 5

// Session statuses reported in live snapshots.
const (
	StatusCollecting = "collecting"
	StatusAnalyzing  = "analyzing"
	StatusFinalized  = "finalized"
)

// Snapshot is the incremental update emitted after each processed event.
// Before MinHoldSamples only Status/Keystrokes/Message are populated.
type Snapshot struct {
	Status     string `json:"status"`
	Keystrokes int    `json:"keystrokes"`
	Message    string `json:"message,omitempty"`

	Features   map[string]float64 `json:"features,omitempty"`
	Score      *float64           `json:"score_0to1,omitempty"`
	Band       rules.Band         `json:"band,omitempty"`
	RulesFired int                `json:"rules_fired,omitempty"`
	TotalRules int                `json:"total_rules,omitempty"`
	RobustZ    map[string]float64 `json:"robust_z,omitempty"`
	NoBaseline bool               `json:"no_baseline,omitempty"`
}

// SessionStats summarizes the raw event counts of one finished session.
type SessionStats struct {
	TotalKeystrokes int `json:"total_keystrokes"`
	TotalReleases   int `json:"total_releases"`
	Backspaces      int `json:"backspaces"`
}

// Summary is the final session result produced by Finalize. Unlike live
// snapshots it is emitted regardless of sample count, so even a short
// session leaves a complete record.
type Summary struct {
	Timestamp string             `json:"timestamp"`
	Features  map[string]float64 `json:"features"`
	Session   SessionStats       `json:"session"`

	// Score and RulesFired are present together whenever the session was
	// scored. A scored summary with no deviations carries rules_fired as
	// an empty array, never a missing key; downstream consumers key off
	// the field directly. Both stay absent on the no-baseline path.
	Score      *float64           `json:"score_0to1,omitempty"`
	Band       rules.Band         `json:"band,omitempty"`
	RulesFired *[]rules.FiredRule `json:"rules_fired,omitempty"`
	RobustZ    map[string]float64 `json:"robust_z,omitempty"`
	Note       string             `json:"note,omitempty"`
}

// Analyzer owns one session's recorder and scores it incrementally against
// an optional personal baseline. Not safe for concurrent use; each session
// (one websocket connection, one replayed file) gets its own Analyzer.
type Analyzer struct {
	rec       *keystroke.Recorder
	base      *baseline.Baseline
	finalized bool
	now       func() time.Time
}

// New returns an Analyzer scoring against b. A nil baseline is allowed:
// feature extraction still runs, scoring is skipped and snapshots carry
// the no_baseline flag.
func New(b *baseline.Baseline) *Analyzer {
	return &Analyzer{
		rec:  keystroke.NewRecorder(),
		base: b,
		now:  time.Now,
	}
}

// Process feeds one event and returns the resulting snapshot. Events
// arriving after Finalize are ignored; the returned snapshot then carries
// the finalized status so callers never emit a status-less frame.
func (a *Analyzer) Process(ev keystroke.KeyEvent) Snapshot {
	if a.finalized {
		return Snapshot{
			Status:     StatusFinalized,
			Keystrokes: a.rec.Timing().Presses,
			Message:    "session already ended",
		}
	}
	a.rec.Feed(ev)
	return a.snapshot()
}

// Finalized reports whether the session has ended.
func (a *Analyzer) Finalized() bool { return a.finalized }

func (a *Analyzer) snapshot() Snapshot {
	t := a.rec.Timing()
	snap := Snapshot{Keystrokes: t.Presses}

	if len(t.Holds) < MinHoldSamples {
		snap.Status = StatusCollecting
		snap.Message = "keep typing..."
		return snap
	}

	snap.Status = StatusAnalyzing
	feats := features.Extract(t)
	snap.Features = feats.Sanitized()

	if a.base == nil {
		snap.NoBaseline = true
		snap.Message = "no baseline on file; collecting features only"
		return snap
	}

	rz := a.base.RZ(feats)
	eval := rules.Evaluate(feats, rz)
	score := eval.Score
	snap.Score = &score
	snap.Band = eval.Band
	snap.RulesFired = len(eval.Fired)
	snap.TotalRules = rules.Total
	snap.RobustZ = roundedRZ(rz)
	return snap
}

// Finalize ends the session and produces its summary. Subsequent events
// are ignored. Safe to call once per session; repeated calls return the
// summary recomputed from the same frozen timing data.
func (a *Analyzer) Finalize() Summary {
	a.finalized = true

	t := a.rec.Timing()
	feats := features.Extract(t)

	sum := Summary{
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Features:  feats.Sanitized(),
		Session: SessionStats{
			TotalKeystrokes: t.Presses,
			TotalReleases:   t.Releases,
			Backspaces:      t.Backspaces,
		},
	}

	if a.base == nil {
		sum.Note = "no baseline available; features recorded without scoring"
		return sum
	}

	rz := a.base.RZ(feats)
	eval := rules.Evaluate(feats, rz)
	score := eval.Score
	sum.Score = &score
	sum.Band = eval.Band
	sum.RulesFired = &eval.Fired
	sum.RobustZ = roundedRZ(rz)
	return sum
}

// Timing exposes the session's raw timing, used by callers that persist
// the session alongside its summary.
func (a *Analyzer) Timing() *keystroke.Timing { return a.rec.Timing() }

// roundedRZ trims z-scores to 2 decimals for wire output; full precision
// adds nothing to a human-facing stream and bloats every update frame.
func roundedRZ(rz map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rz))
	for name, z := range rz {
		out[name] = math.Round(z*100) / 100
	}
	return out
}
