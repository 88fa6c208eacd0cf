// eventgen generates synthetic human-like key press/release events for
// exercising the screening pipeline without manual typing.
//
// Usage:
//
//	go run tools/eventgen/main.go -output events.jsonl -count 300
//	go run tools/eventgen/main.go -output events.jsonl -profile tremor
//	go run tools/eventgen/main.go -list
//
// Output is JSON lines, one event per line, in the wire shape accepted by
// pdscreenctl and the daemon's batch endpoints.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"
)

// Event mirrors the pipeline's key event wire shape.
type Event struct {
	EventType string  `json:"event_type"`
	Key       string  `json:"key"`
	Timestamp float64 `json:"timestamp"`
}

// TypingProfile defines parameters for simulating different typists.
type TypingProfile struct {
	Name        string
	Description string

	MedianHoldMs     float64 // median key hold duration
	HoldJitterMs     float64 // hold variation (log-normal spread)
	MedianFlightMs   float64 // median release-to-press gap
	FlightJitterMs   float64 // flight variation
	PauseProbability float64 // probability of a long thinking pause
	PauseMaxMs       float64 // maximum pause duration
	BackspaceRate    float64 // probability a keystroke is a backspace
	LeftBias         float64 // fraction of keys drawn from the left hand
}

var profiles = map[string]TypingProfile{
	"steady": {
		Name:             "Steady Typist",
		Description:      "Consistent healthy typing rhythm",
		MedianHoldMs:     85,
		HoldJitterMs:     15,
		MedianFlightMs:   140,
		FlightJitterMs:   40,
		PauseProbability: 0.02,
		PauseMaxMs:       1500,
		BackspaceRate:    0.03,
		LeftBias:         0.5,
	},
	"fast": {
		Name:             "Fast Typist",
		Description:      "Quick touch typist with short holds",
		MedianHoldMs:     65,
		HoldJitterMs:     10,
		MedianFlightMs:   90,
		FlightJitterMs:   25,
		PauseProbability: 0.01,
		PauseMaxMs:       800,
		BackspaceRate:    0.04,
		LeftBias:         0.5,
	},
	"hesitant": {
		Name:             "Hesitant Typist",
		Description:      "Slower rhythm with frequent thinking pauses",
		MedianHoldMs:     110,
		HoldJitterMs:     30,
		MedianFlightMs:   260,
		FlightJitterMs:   120,
		PauseProbability: 0.08,
		PauseMaxMs:       4000,
		BackspaceRate:    0.06,
		LeftBias:         0.5,
	},
	"tremor": {
		Name:             "High-Variability Typist",
		Description:      "Irregular timing, long pauses, elevated error repair",
		MedianHoldMs:     150,
		HoldJitterMs:     90,
		MedianFlightMs:   420,
		FlightJitterMs:   300,
		PauseProbability: 0.15,
		PauseMaxMs:       6000,
		BackspaceRate:    0.12,
		LeftBias:         0.68,
	},
}

var (
	leftKeys  = []string{"q", "w", "e", "r", "t", "a", "s", "d", "f", "g", "z", "x", "c", "v", "b"}
	rightKeys = []string{"y", "u", "i", "o", "p", "h", "j", "k", "l", "n", "m"}
)

func main() {
	var (
		outputPath   = flag.String("output", "events.jsonl", "Output file path (\"-\" = stdout)")
		count        = flag.Int("count", 300, "Number of keystrokes to generate")
		profileName  = flag.String("profile", "steady", "Typing profile to use")
		seed         = flag.Int64("seed", 0, "Random seed; 0 = use current time")
		listProfiles = flag.Bool("list", false, "List available profiles")
	)
	flag.Parse()

	if *listProfiles {
		fmt.Println("Available profiles:")
		for name, p := range profiles {
			fmt.Printf("  %-12s %s\n", name, p.Description)
		}
		os.Exit(0)
	}

	profile, ok := profiles[*profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown profile: %s\n", *profileName)
		fmt.Fprintf(os.Stderr, "Use -list to see available profiles\n")
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	events := generateEvents(rng, profile, *count)

	out := os.Stdout
	if *outputPath != "-" {
		f, err := os.Create(*outputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing event: %v\n", err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}

	if *outputPath != "-" {
		fmt.Printf("Generated %d events (%d keystrokes, profile %q, seed %d) to %s\n",
			len(events), *count, profile.Name, *seed, *outputPath)
		printStats(events)
	}
}

func generateEvents(rng *rand.Rand, p TypingProfile, keystrokes int) []Event {
	events := make([]Event, 0, keystrokes*2)
	now := 0.0

	for i := 0; i < keystrokes; i++ {
		key := pickKey(rng, p)

		hold := logNormalSample(rng, p.MedianHoldMs, p.HoldJitterMs) / 1000
		events = append(events,
			Event{EventType: "press", Key: key, Timestamp: now},
			Event{EventType: "release", Key: key, Timestamp: now + hold})

		flight := logNormalSample(rng, p.MedianFlightMs, p.FlightJitterMs) / 1000
		if rng.Float64() < p.PauseProbability {
			flight += rng.Float64() * p.PauseMaxMs / 1000
		}
		now += hold + flight
	}

	return events
}

func pickKey(rng *rand.Rand, p TypingProfile) string {
	if rng.Float64() < p.BackspaceRate {
		return "Backspace"
	}
	if rng.Float64() < p.LeftBias {
		return leftKeys[rng.Intn(len(leftKeys))]
	}
	return rightKeys[rng.Intn(len(rightKeys))]
}

// logNormalSample generates a sample from a log-normal distribution with
// the given median and approximate spread.
func logNormalSample(rng *rand.Rand, median, stdDev float64) float64 {
	mu := math.Log(median)
	sigma := math.Log(1 + stdDev/median)
	if sigma < 0.05 {
		sigma = 0.05
	}

	// Box-Muller transform
	u1 := rng.Float64()
	u2 := rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	return math.Exp(mu + sigma*z)
}

func printStats(events []Event) {
	var holds, flights []float64
	pressAt := map[string]float64{}
	lastRelease := math.NaN()

	for _, ev := range events {
		switch ev.EventType {
		case "press":
			if !math.IsNaN(lastRelease) {
				flights = append(flights, ev.Timestamp-lastRelease)
			}
			pressAt[ev.Key] = ev.Timestamp
		case "release":
			if t, ok := pressAt[ev.Key]; ok {
				holds = append(holds, ev.Timestamp-t)
				delete(pressAt, ev.Key)
			}
			lastRelease = ev.Timestamp
		}
	}

	fmt.Println("\nStatistics:")
	fmt.Printf("  Hold mean:    %.1f ms\n", meanOf(holds)*1000)
	fmt.Printf("  Flight mean:  %.1f ms\n", meanOf(flights)*1000)
	if len(events) > 0 {
		fmt.Printf("  Time span:    %.1f seconds\n", events[len(events)-1].Timestamp)
	}
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
