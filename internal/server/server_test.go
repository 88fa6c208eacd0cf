package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdscreen/internal/config"
	"pdscreen/internal/logging"
	"pdscreen/internal/store"
	"pdscreen/internal/stream"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "screening.db")
	cfg.Storage.WatchForChanges = false

	log := logging.New(&logging.Config{
		Level:  logging.LevelError,
		Writer: io.Discard,
	})

	st, err := store.Open(cfg.Storage.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := New(cfg, log, st)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

// sessionBody builds an analyze request with n keystrokes at the given
// hold/flight pace.
func sessionBody(hold, flight float64, n int) []byte {
	keys := []string{"a", "s", "j", "k", "d", "l"}
	type ev struct {
		EventType string  `json:"event_type"`
		Key       string  `json:"key"`
		Timestamp float64 `json:"timestamp"`
	}
	var events []ev
	now := 0.0
	for i := 0; i < n; i++ {
		key := keys[i%len(keys)]
		jitter := 0.002 * float64(i%5)
		events = append(events,
			ev{"press", key, now},
			ev{"release", key, now + hold + jitter})
		now += hold + flight + 2*jitter
	}
	body, _ := json.Marshal(map[string]any{"events": events})
	return body
}

func postJSON(t *testing.T, url string, body []byte) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var m map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return resp, m
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, m := postHelperGet(t, ts.URL+"/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"ok"`, string(m["status"]))
	assert.JSONEq(t, `false`, string(m["baseline_ready"]))
}

func postHelperGet(t *testing.T, url string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var m map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return resp, m
}

func TestAnalyzeWithoutBaseline(t *testing.T) {
	_, ts := newTestServer(t)

	resp, m := postJSON(t, ts.URL+"/api/keystroke/analyze", sessionBody(0.08, 0.15, 30))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `true`, string(m["no_baseline"]))
	assert.Contains(t, m, "features")
}

func TestBaselineThenAnalyze(t *testing.T) {
	_, ts := newTestServer(t)

	// Record baseline sessions at slightly drifting paces.
	for j := 0; j < 6; j++ {
		body := sessionBody(0.08+0.002*float64(j), 0.15+0.004*float64(j), 40)
		resp, _ := postJSON(t, ts.URL+"/api/baseline/session", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	_, status := postHelperGet(t, ts.URL+"/api/baseline/status")
	assert.JSONEq(t, `true`, string(status["fitted"]))
	assert.JSONEq(t, `6`, string(status["sessions"]))

	// Baseline-pace session screens low.
	resp, m := postJSON(t, ts.URL+"/api/keystroke/analyze", sessionBody(0.085, 0.16, 40))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `"LOW"`, string(m["band"]))

	// Severely slowed typing raises the band.
	resp, m = postJSON(t, ts.URL+"/api/keystroke/analyze", sessionBody(0.08, 0.60, 40))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, `"LOW"`, string(m["band"]))

	// Both screenings were persisted.
	_, list := postHelperGet(t, ts.URL+"/api/screenings")
	var screenings []json.RawMessage
	require.NoError(t, json.Unmarshal(list["screenings"], &screenings))
	assert.Len(t, screenings, 2)
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	_, ts := newTestServer(t)

	cases := []string{
		`not json`,
		`{}`,
		`{"events": [{"event_type": "hover", "key": "a", "timestamp": 1}]}`,
		`{"events": [{"event_type": "press", "key": "a"}]}`,
		`{"events": [{"event_type": "press", "key": "a", "timestamp": -1}]}`,
	}
	for _, body := range cases {
		resp, err := http.Post(ts.URL+"/api/keystroke/analyze", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}

func TestBlinkAnalyze(t *testing.T) {
	_, ts := newTestServer(t)

	body := []byte(`{"blink_timestamps": [0, 6, 12, 18, 24, 30, 36, 42, 48, 54], "duration_seconds": 60}`)
	resp, m := postJSON(t, ts.URL+"/api/blink/analyze", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `10`, string(m["blink_rate"]))

	// Schema rejects missing duration.
	bad, err := http.Post(ts.URL+"/api/blink/analyze", "application/json",
		strings.NewReader(`{"blink_timestamps": []}`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestAggregateAnalyze(t *testing.T) {
	_, ts := newTestServer(t)

	body := []byte(`{"typing_score": 0.6}`)
	resp, m := postJSON(t, ts.URL+"/api/aggregate/analyze", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `0.6`, string(m["overall_risk_score"]))
	assert.JSONEq(t, `"elevated"`, string(m["risk_category"]))
}

func TestKeystrokeWebSocket(t *testing.T) {
	_, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/keystroke"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var hello wsServerMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)
	assert.True(t, hello.NoBaseline)

	// Feed a short typing burst; every event yields an update.
	keys := []string{"a", "s", "d", "f", "j", "k"}
	now := 0.0
	var last wsServerMessage
	for _, key := range keys {
		press := map[string]any{"event_type": "press", "key": key, "timestamp": now}
		release := map[string]any{"event_type": "release", "key": key, "timestamp": now + 0.08}
		require.NoError(t, conn.WriteJSON(press))
		require.NoError(t, conn.ReadJSON(&last))
		require.NoError(t, conn.WriteJSON(release))
		require.NoError(t, conn.ReadJSON(&last))
		now += 0.25
	}

	require.NotNil(t, last.Update)
	assert.Equal(t, stream.StatusAnalyzing, last.Update.Status)
	assert.Equal(t, len(keys), last.Update.Keystrokes)
	assert.True(t, last.Update.NoBaseline)

	// End the session and collect the final summary.
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "end"}))
	var final wsServerMessage
	require.NoError(t, conn.ReadJSON(&final))
	assert.Equal(t, "final", final.Type)
	require.NotNil(t, final.Final)
	assert.Equal(t, len(keys), final.Final.Session.TotalKeystrokes)
	assert.NotEmpty(t, final.Final.Note)
}

func TestWebSocketSessionPersistedOnEnd(t *testing.T) {
	srv, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/keystroke"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var hello wsServerMessage
	require.NoError(t, conn.ReadJSON(&hello))

	require.NoError(t, conn.WriteJSON(map[string]any{"event_type": "press", "key": "a", "timestamp": 0.0}))
	var upd wsServerMessage
	require.NoError(t, conn.ReadJSON(&upd))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "end"}))
	var final wsServerMessage
	require.NoError(t, conn.ReadJSON(&final))

	sum := final.Final
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Session.TotalKeystrokes)

	// The one-keystroke session still landed in storage.
	count, err := srv.store.SessionCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
