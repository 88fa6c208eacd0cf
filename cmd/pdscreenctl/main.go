// pdscreenctl is the batch CLI for the screening pipeline: it records
// baseline sessions, screens typing sessions, and inspects stored results.
//
// Sessions are read as JSON-lines key events, one per line in the wire
// shape {"event_type","key","timestamp"}, from a file or stdin. External
// keyboard hooks produce this format; so does the bundled event generator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"pdscreen/internal/baseline"
	"pdscreen/internal/config"
	"pdscreen/internal/features"
	"pdscreen/internal/keystroke"
	"pdscreen/internal/report"
	"pdscreen/internal/store"
	"pdscreen/internal/stream"
)

var (
	configPath = flag.String("config", "", "path to config file")
	duration   = flag.Duration("duration", 0, "capture time limit (0 = read until EOF)")
	asJSON     = flag.Bool("json", false, "emit JSON instead of a text report")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	switch cmd := flag.Arg(0); cmd {
	case "baseline":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: pdscreenctl baseline <events.jsonl | - | reset>")
			os.Exit(1)
		}
		cmdBaseline(flag.Arg(1))
	case "screen":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: pdscreenctl screen <events.jsonl | ->")
			os.Exit(1)
		}
		cmdScreen(flag.Arg(1))
	case "features":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: pdscreenctl features <events.jsonl | ->")
			os.Exit(1)
		}
		cmdFeatures(flag.Arg(1))
	case "history":
		cmdHistory()
	case "status":
		cmdStatus()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `pdscreenctl - Control utility for the typing screening pipeline

Usage: pdscreenctl [options] <command> [args]

Commands:
  baseline <events>  Record one baseline session from a JSONL event file ("-" = stdin)
  baseline reset     Delete all baseline sessions
  screen <events>    Screen a session against the personal baseline
  features <events>  Extract and print session features without scoring
  history            Print recent screening results
  status             Show baseline and database status
  help               Show this help message

Options:
  -config <path>     Path to config file
  -duration <d>      Capture time limit, e.g. 60s (default: read until EOF)
  -json              Emit JSON instead of a text report`)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func openStore(cfg *config.Config) *store.Store {
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

// captureSession reads key events from a JSONL file or stdin ("-").
func captureSession(path string, d time.Duration) *keystroke.Timing {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening events: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	src := keystroke.NewStreamSource(r)
	defer src.Close()

	timing, err := keystroke.Capture(context.Background(), src, d)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "Capture error: %v\n", err)
		os.Exit(1)
	}
	return timing
}

func cmdBaseline(arg string) {
	cfg := loadConfig()
	st := openStore(cfg)
	defer st.Close()

	if arg == "reset" {
		if err := st.ClearBaseline(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Baseline cleared.")
		return
	}

	timing := captureSession(arg, *duration)
	feats := features.Extract(timing)
	if _, err := st.AppendBaseline(feats); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving baseline session: %v\n", err)
		os.Exit(1)
	}

	count, err := st.BaselineCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Baseline session recorded (%d presses, %d hold samples).\n",
		timing.Presses, len(timing.Holds))
	fmt.Printf("Corpus now holds %d session(s); %d recommended before screening.\n",
		count, cfg.Capture.MinBaselineSessions)
}

func cmdScreen(arg string) {
	cfg := loadConfig()
	st := openStore(cfg)
	defer st.Close()

	timing := captureSession(arg, *duration)

	// Persist the raw session summary before any scoring, so typing data
	// survives a missing or broken baseline.
	feats := features.Extract(timing)
	sum := stream.Summary{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Features:  feats.Sanitized(),
		Session: stream.SessionStats{
			TotalKeystrokes: timing.Presses,
			TotalReleases:   timing.Releases,
			Backspaces:      timing.Backspaces,
		},
	}
	if _, err := st.SaveSession(&sum); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save session: %v\n", err)
	}

	corpus, err := st.LoadBaseline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading baseline: %v\n", err)
		os.Exit(1)
	}
	if len(corpus) == 0 {
		if *asJSON {
			emitJSON(map[string]any{"features": feats.Sanitized(), "no_baseline": true})
		} else {
			report.PrintFeatures(os.Stdout, feats.Sanitized())
		}
		os.Exit(1)
	}

	base, err := baseline.Fit(corpus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fitting baseline: %v\n", err)
		os.Exit(1)
	}

	rec := report.Build(feats, base)
	if _, err := st.SaveScreening(rec); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save screening: %v\n", err)
	}

	if *asJSON {
		emitJSON(rec)
		return
	}
	report.PrintScreening(os.Stdout, rec)
	if len(corpus) < cfg.Capture.MinBaselineSessions {
		fmt.Printf("\nNote: baseline has only %d session(s); results firm up at %d or more.\n",
			len(corpus), cfg.Capture.MinBaselineSessions)
	}
}

func cmdFeatures(arg string) {
	timing := captureSession(arg, *duration)
	feats := features.Extract(timing).Sanitized()

	if *asJSON {
		emitJSON(feats)
		return
	}
	report.PrintFeatures(os.Stdout, feats)
}

func cmdHistory() {
	cfg := loadConfig()
	st := openStore(cfg)
	defer st.Close()

	screenings, err := st.RecentScreenings(20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(screenings) == 0 {
		fmt.Println("No screenings recorded yet.")
		return
	}

	if *asJSON {
		emitJSON(screenings)
		return
	}

	fmt.Println("=== Screening History ===")
	fmt.Println()
	for _, sc := range screenings {
		fmt.Printf("#%-5d %s  score %.3f  %-8s  %d rule(s) fired\n",
			sc.ID, sc.CreatedAt.Format("2006-01-02 15:04"),
			sc.Record.Score, sc.Record.Band, len(sc.Record.RulesFired))
	}
}

func cmdStatus() {
	cfg := loadConfig()
	st := openStore(cfg)
	defer st.Close()

	count, err := st.BaselineCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Screening Status ===")
	fmt.Println()
	fmt.Printf("Database:          %s\n", cfg.Storage.Path)
	fmt.Printf("Baseline sessions: %d (recommended: %d)\n", count, cfg.Capture.MinBaselineSessions)
	if count == 0 {
		fmt.Println("Baseline:          NOT READY (record baseline sessions first)")
	} else if count < cfg.Capture.MinBaselineSessions {
		fmt.Println("Baseline:          USABLE (corpus below recommended size)")
	} else {
		fmt.Println("Baseline:          READY")
	}

	latest, err := st.LatestScreening()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if latest != nil {
		fmt.Printf("Last screening:    %s  score %.3f  %s\n",
			latest.CreatedAt.Format("2006-01-02 15:04"), latest.Record.Score, latest.Record.Band)
	}
}

func emitJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
