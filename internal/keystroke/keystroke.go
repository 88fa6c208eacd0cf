// Package keystroke records raw key press/release timing for typing-dynamics
// analysis.
//
// The recorder measures two intervals:
//   - hold time: press -> release of the same key
//   - flight time: release of any key -> the next press of any key
//
// Timestamps must come from a monotonic clock, in seconds. Wall-clock time
// is subject to NTP adjustments that would corrupt sub-second intervals.
//
// Key identities are normalized before use so that different event sources
// (OS hooks, browser clients, replay files) agree on a single vocabulary.
// An identity that cannot be decoded maps to a stable placeholder token
// rather than failing downstream lookups.
package keystroke

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EventKind distinguishes press and release events.
type EventKind string

const (
	Press   EventKind = "press"
	Release EventKind = "release"
)

// KeyEvent is a single keyboard event with a monotonic timestamp in seconds.
type KeyEvent struct {
	Kind      EventKind `json:"event_type"`
	Key       string    `json:"key"`
	Timestamp float64   `json:"timestamp"`
}

// Canonical identities for keys the analysis cares about.
const (
	// UnknownKey is the placeholder for identities that cannot be decoded.
	UnknownKey = "unknown"

	KeyBackspace = "backspace"
	KeyDelete    = "delete"
)

// namedAliases folds the key-name spellings seen from different event
// sources into one canonical token per key.
var namedAliases = map[string]string{
	"backspace": KeyBackspace,
	"delete":    KeyDelete,
	"del":       KeyDelete,
	"enter":     "enter",
	"return":    "enter",
	"space":     "space",
	"spacebar":  "space",
	"tab":       "tab",
	"escape":    "escape",
	"esc":       "escape",
	"shift":     "shift",
	"shift_l":   "shift",
	"shift_r":   "shift",
	"ctrl":      "ctrl",
	"ctrl_l":    "ctrl",
	"ctrl_r":    "ctrl",
	"control":   "ctrl",
	"alt":       "alt",
	"alt_l":     "alt",
	"alt_r":     "alt",
	"cmd":       "meta",
	"meta":      "meta",
	"super":     "meta",
	"caps_lock": "caps_lock",
	"capslock":  "caps_lock",
}

// NormalizeKey maps a raw key identity to its canonical token.
//
// Single printable runes are lowercased and kept as-is; the ASCII backspace
// and delete control characters map to their named tokens. Named keys are
// lowercased, stripped of a "key." prefix, and folded through the alias
// table. Anything that cannot be decoded becomes UnknownKey.
func NormalizeKey(raw string) string {
	if raw == "" || !utf8.ValidString(raw) {
		return UnknownKey
	}

	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		switch r {
		case 0x08: // BS
			return KeyBackspace
		case 0x7f: // DEL
			return KeyDelete
		}
		if !unicode.IsPrint(r) {
			return UnknownKey
		}
		return strings.ToLower(raw)
	}

	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, "key.")
	if canonical, ok := namedAliases[name]; ok {
		return canonical
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return UnknownKey
		}
	}
	return name
}

// isErrorRepair reports whether a canonical key counts toward the
// error-repair (backspace) tally.
func isErrorRepair(key string) bool {
	return key == KeyBackspace || key == KeyDelete
}

// Timing holds the accumulated timing samples of one recording session.
// It is owned by exactly one Recorder and must not be shared across
// sessions or mutated concurrently.
type Timing struct {
	// Holds and Flights are interval samples in seconds, clamped to >= 0.
	Holds   []float64
	Flights []float64

	// Chars is the ordered stream of canonical key tokens, one per press.
	Chars []string

	Backspaces int
	Presses    int
	Releases   int
}

// Recorder converts key events into Timing samples. OnPress and OnRelease
// are the only mutators; both tolerate malformed input (repeated presses,
// orphan releases) without error, since keyboard drivers occasionally lose
// individual events.
type Recorder struct {
	timing Timing

	pressAt     map[string]float64
	lastRelease float64
	hasRelease  bool
}

// NewRecorder returns a Recorder with an empty session.
func NewRecorder() *Recorder {
	return &Recorder{pressAt: make(map[string]float64)}
}

// OnPress records a key press at monotonic time t (seconds).
// A repeated press without an intervening release overwrites the open
// press timestamp: last press wins.
func (r *Recorder) OnPress(key string, t float64) {
	k := NormalizeKey(key)

	if r.hasRelease {
		flight := t - r.lastRelease
		if flight < 0 {
			flight = 0
		}
		r.timing.Flights = append(r.timing.Flights, flight)
	}

	r.pressAt[k] = t
	r.timing.Presses++
	r.timing.Chars = append(r.timing.Chars, k)
	if isErrorRepair(k) {
		r.timing.Backspaces++
	}
}

// OnRelease records a key release at monotonic time t (seconds).
// A release with no matching open press contributes no hold sample but
// still advances the flight-time origin, matching what a listener that
// missed the press would have observed.
func (r *Recorder) OnRelease(key string, t float64) {
	k := NormalizeKey(key)

	if pressT, ok := r.pressAt[k]; ok {
		hold := t - pressT
		if hold < 0 {
			hold = 0
		}
		r.timing.Holds = append(r.timing.Holds, hold)
		delete(r.pressAt, k)
	}

	r.lastRelease = t
	r.hasRelease = true
	r.timing.Releases++
}

// Feed dispatches a KeyEvent to OnPress or OnRelease. Events with an
// unknown kind are ignored.
func (r *Recorder) Feed(ev KeyEvent) {
	switch ev.Kind {
	case Press:
		r.OnPress(ev.Key, ev.Timestamp)
	case Release:
		r.OnRelease(ev.Key, ev.Timestamp)
	}
}

// Timing returns the session data accumulated so far. The returned value
// is still owned by the Recorder; callers must not retain it across
// further events of the same session unless they are done feeding.
func (r *Recorder) Timing() *Timing {
	return &r.timing
}
