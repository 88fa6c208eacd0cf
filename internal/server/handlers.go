package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"pdscreen/internal/aggregate"
	"pdscreen/internal/features"
	"pdscreen/internal/keystroke"
	"pdscreen/internal/report"
)

// maxRequestBody bounds analysis request payloads. A one-hour typing
// session is a few hundred KB of events; 8 MB leaves ample headroom.
const maxRequestBody = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return nil, false
	}
	return raw, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	base, count := s.holder.Get()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"baseline_ready":    base != nil,
		"baseline_sessions": count,
	})
}

func (s *Server) handleBaselineStatus(w http.ResponseWriter, r *http.Request) {
	base, count := s.holder.Get()
	resp := map[string]any{
		"sessions":    count,
		"fitted":      base != nil,
		"recommended": s.cfg.Capture.MinBaselineSessions,
	}
	if base != nil {
		resp["features"] = len(base.Names())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type eventsRequest struct {
	Events []keystroke.KeyEvent `json:"events"`
}

// replayEvents runs a batch of events through a fresh recorder.
func replayEvents(events []keystroke.KeyEvent) *keystroke.Timing {
	rec := keystroke.NewRecorder()
	for _, ev := range events {
		rec.Feed(ev)
	}
	return rec.Timing()
}

// handleBaselineSession appends one recorded session to the baseline
// corpus and refits.
func (s *Server) handleBaselineSession(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validateJSON(eventsValidator, raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req eventsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feats := features.Extract(replayEvents(req.Events))
	id, err := s.store.AppendBaseline(feats)
	if err != nil {
		s.log.Error("append baseline session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "store baseline session")
		return
	}
	if err := s.holder.Reload(); err != nil {
		s.log.Error("refit baseline", "error", err)
		s.writeError(w, http.StatusInternalServerError, "refit baseline")
		return
	}

	_, count := s.holder.Get()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"sessions":   count,
	})
}

// handleKeystrokeAnalyze screens a complete recorded session in one shot.
// Without a baseline the response carries features only.
func (s *Server) handleKeystrokeAnalyze(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validateJSON(eventsValidator, raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req eventsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feats := features.Extract(replayEvents(req.Events))

	base, _ := s.holder.Get()
	if base == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"features":    feats.Sanitized(),
			"no_baseline": true,
		})
		return
	}

	rec := report.Build(feats, base)
	if _, err := s.store.SaveScreening(rec); err != nil {
		s.log.Error("save screening", "error", err)
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type blinkRequest struct {
	BlinkTimestamps []float64 `json:"blink_timestamps"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func (s *Server) handleBlinkAnalyze(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validateJSON(blinkValidator, raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req blinkRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples := make([]aggregate.BlinkSample, len(req.BlinkTimestamps))
	for i, ts := range req.BlinkTimestamps {
		samples[i] = aggregate.BlinkSample{Timestamp: ts}
	}

	result, err := aggregate.AnalyzeBlink(samples, req.DurationSeconds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type aggregateRequest struct {
	TypingScore *float64               `json:"typing_score"`
	VoiceRisk   *float64               `json:"voice_risk"`
	Blink       *aggregate.BlinkResult `json:"blink"`
}

func (s *Server) handleAggregateAnalyze(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validateJSON(aggregateValidator, raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req aggregateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, aggregate.Combine(req.TypingScore, req.VoiceRisk, req.Blink))
}

func (s *Server) handleScreenings(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be 1..500")
			return
		}
		limit = n
	}

	screenings, err := s.store.RecentScreenings(limit)
	if err != nil {
		s.log.Error("load screenings", "error", err)
		s.writeError(w, http.StatusInternalServerError, "load screenings")
		return
	}

	type row struct {
		ID        int64         `json:"id"`
		CreatedAt string        `json:"created_at"`
		Record    report.Record `json:"record"`
	}
	out := make([]row, len(screenings))
	for i, sc := range screenings {
		out[i] = row{
			ID:        sc.ID,
			CreatedAt: sc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Record:    sc.Record,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"screenings": out})
}
