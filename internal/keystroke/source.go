package keystroke

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Source delivers key events for one capture session. Implementations wrap
// whatever produces events (an OS hook, a replay file, a test script); the
// recorder and everything downstream never see the difference.
//
// The Events channel is closed when the source is exhausted or closed.
type Source interface {
	Events() <-chan KeyEvent
	Close() error
}

// Capture drains a source into a fresh Recorder for at most d and returns
// the finished session data. A non-positive d means no time limit: capture
// ends when the source is exhausted. On context cancellation the data
// collected so far is returned together with the context error, so a
// cancelled capture never loses typing data.
func Capture(ctx context.Context, src Source, d time.Duration) (*Timing, error) {
	rec := NewRecorder()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return rec.Timing(), ctx.Err()
		case <-timeout:
			return rec.Timing(), nil
		case ev, ok := <-src.Events():
			if !ok {
				return rec.Timing(), nil
			}
			rec.Feed(ev)
		}
	}
}

// ScriptedSource replays a fixed event sequence. It exists for tests and
// demos; no real keyboard is involved.
type ScriptedSource struct {
	ch   chan KeyEvent
	once sync.Once
}

// NewScriptedSource returns a source that yields the given events in order.
func NewScriptedSource(events []KeyEvent) *ScriptedSource {
	ch := make(chan KeyEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &ScriptedSource{ch: ch}
}

// Events returns the scripted event stream.
func (s *ScriptedSource) Events() <-chan KeyEvent { return s.ch }

// Close is a no-op; the scripted stream closes itself when drained.
func (s *ScriptedSource) Close() error { return nil }

// StreamSource decodes key events from a JSON-lines reader, one event per
// line in the wire shape {"event_type", "key", "timestamp"}. This is how
// recorded sessions are replayed and how external hook processes hand
// events to the batch CLI. Lines that do not decode are skipped, matching
// the malformed-event policy of the recorder.
type StreamSource struct {
	ch     chan KeyEvent
	cancel chan struct{}
	once   sync.Once
}

// NewStreamSource starts decoding events from r in the background.
func NewStreamSource(r io.Reader) *StreamSource {
	s := &StreamSource{
		ch:     make(chan KeyEvent, 64),
		cancel: make(chan struct{}),
	}
	go s.run(r)
	return s
}

func (s *StreamSource) run(r io.Reader) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev KeyEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.Kind != Press && ev.Kind != Release {
			continue
		}

		select {
		case s.ch <- ev:
		case <-s.cancel:
			return
		}
	}
}

// Events returns the decoded event stream.
func (s *StreamSource) Events() <-chan KeyEvent { return s.ch }

// Close stops the decoder goroutine. The underlying reader is owned by the
// caller and is not closed here.
func (s *StreamSource) Close() error {
	s.once.Do(func() { close(s.cancel) })
	return nil
}
