package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pdscreen/internal/keystroke"
	"pdscreen/internal/stream"
)

const (
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 4 << 10
)

// wsClientMessage is one frame from the browser: either a key event or a
// control message ending the session.
type wsClientMessage struct {
	Type      string  `json:"type,omitempty"`
	EventType string  `json:"event_type,omitempty"`
	Key       string  `json:"key,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

type wsServerMessage struct {
	Type string `json:"type"`

	// connected
	Message    string `json:"message,omitempty"`
	NoBaseline bool   `json:"no_baseline,omitempty"`

	// update / final
	Update *stream.Snapshot `json:"update,omitempty"`
	Final  *stream.Summary  `json:"final,omitempty"`
}

// handleKeystrokeWS runs one live screening session per connection.
// Every key event gets an incremental update; an {"type":"end"} frame or
// a dropped connection finalizes the session, and the summary is always
// persisted so partial sessions survive browser crashes.
func (s *Server) handleKeystrokeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	base, _ := s.holder.Get()
	analyzer := stream.New(base)

	hello := wsServerMessage{
		Type:       "connected",
		Message:    "start typing; analysis begins after a few keystrokes",
		NoBaseline: base == nil,
	}
	if err := s.wsSend(conn, &hello); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Disconnect mid-session: finalize and keep what we have.
			s.finishSession(conn, analyzer, false)
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Debug("skipping malformed frame", "error", err)
			continue
		}

		if msg.Type == "end" {
			s.finishSession(conn, analyzer, true)
			return
		}

		snap := analyzer.Process(keystroke.KeyEvent{
			Kind:      keystroke.EventKind(msg.EventType),
			Key:       msg.Key,
			Timestamp: msg.Timestamp,
		})
		if err := s.wsSend(conn, &wsServerMessage{Type: "update", Update: &snap}); err != nil {
			s.finishSession(conn, analyzer, false)
			return
		}
	}
}

// finishSession finalizes, persists, and (when the peer is still there)
// sends the final summary.
func (s *Server) finishSession(conn *websocket.Conn, analyzer *stream.Analyzer, sendFinal bool) {
	sum := analyzer.Finalize()

	if _, err := s.store.SaveSession(&sum); err != nil {
		s.log.Error("save session", "error", err)
	}

	if sendFinal {
		if err := s.wsSend(conn, &wsServerMessage{Type: "final", Final: &sum}); err != nil {
			return
		}
		deadline := time.Now().Add(wsWriteWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}
}

func (s *Server) wsSend(conn *websocket.Conn, msg *wsServerMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

// checkOrigin enforces the configured origin allowlist. An empty list
// allows any origin; the daemon binds loopback by default.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
