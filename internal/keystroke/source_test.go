package keystroke

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCaptureDrainsScriptedSource(t *testing.T) {
	src := NewScriptedSource([]KeyEvent{
		{Kind: Press, Key: "a", Timestamp: 0.0},
		{Kind: Release, Key: "a", Timestamp: 0.1},
		{Kind: Press, Key: "b", Timestamp: 0.3},
		{Kind: Release, Key: "b", Timestamp: 0.4},
	})

	timing, err := Capture(context.Background(), src, 0)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(timing.Holds) != 2 || len(timing.Flights) != 1 {
		t.Errorf("holds/flights = %d/%d, want 2/1", len(timing.Holds), len(timing.Flights))
	}
}

func TestCaptureReturnsPartialDataOnCancel(t *testing.T) {
	ch := make(chan KeyEvent)
	src := &chanSource{ch: ch}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	var timing *Timing
	var err error
	go func() {
		timing, err = Capture(ctx, src, 0)
		close(done)
	}()

	ch <- KeyEvent{Kind: Press, Key: "a", Timestamp: 0.0}
	ch <- KeyEvent{Kind: Release, Key: "a", Timestamp: 0.1}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Capture did not return after cancel")
	}

	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if timing == nil || len(timing.Holds) != 1 {
		t.Errorf("partial data lost: timing = %+v", timing)
	}
}

type chanSource struct{ ch chan KeyEvent }

func (s *chanSource) Events() <-chan KeyEvent { return s.ch }
func (s *chanSource) Close() error            { return nil }

func TestStreamSourceDecodesJSONLines(t *testing.T) {
	input := strings.Join([]string{
		`{"event_type":"press","key":"a","timestamp":0.0}`,
		``,
		`not json at all`,
		`{"event_type":"hover","key":"a","timestamp":0.05}`,
		`{"event_type":"release","key":"a","timestamp":0.1}`,
	}, "\n")

	src := NewStreamSource(strings.NewReader(input))
	defer src.Close()

	var events []KeyEvent
	for ev := range src.Events() {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("decoded %d events, want 2 (malformed lines skipped)", len(events))
	}
	if events[0].Kind != Press || events[1].Kind != Release {
		t.Errorf("events = %+v", events)
	}
}
