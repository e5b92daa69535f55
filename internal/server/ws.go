package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
)

const wsWriteWait = 10 * time.Second

// safeConn serializes writes to a WebSocket connection.
type safeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func (sc *safeConn) WriteJSON(v any) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return events.ErrClosed
	}
	_ = sc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := sc.conn.WriteJSON(v); err != nil {
		sc.closed = true
		return err
	}
	return nil
}

func (sc *safeConn) CloseWith(code int, reason string) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return
	}
	sc.closed = true
	msg := websocket.FormatCloseMessage(code, reason)
	_ = sc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// Emit makes safeConn an events.Sink. The sentinel goes out as {"type":"done"}.
func (sc *safeConn) Emit(_ context.Context, e events.Event) error {
	return sc.WriteJSON(e)
}

// clientMessage is a control message sent after the turn request.
type clientMessage struct {
	Type string `json:"type"`
}

// handleTurnWS upgrades the connection, reads the turn request as the first
// message, and streams events back. A later {"type":"cancel"} message or a
// dropped connection cancels the turn. The project is claimed before the
// upgrade so a conflict can still be answered with 409.
func (s *Server) handleTurnWS(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	project := r.URL.Query().Get("project")

	release, ok := s.gate.Acquire(gateKey(user, project))
	if !ok {
		writeError(w, http.StatusConflict, "a turn is already running for this project")
		return
	}
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	sc := &safeConn{conn: conn}

	conn.SetReadLimit(maxBodyBytes)
	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var body TurnBody
	if err := json.Unmarshal(data, &body); err != nil {
		sc.CloseWith(websocket.CloseUnsupportedData, "invalid JSON turn request")
		return
	}
	if err := body.Validate(); err != nil {
		sc.CloseWith(websocket.ClosePolicyViolation, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The reader goroutine owns all reads after the first message.
	go func() {
		defer cancel()
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "cancel" {
				s.log.Info("turn cancelled by client", "user", user, "project", project)
				return
			}
		}
	}()

	if _, err := s.runner.Run(ctx, user, body.TurnRequest, sc); err != nil {
		s.log.Info("turn ended with error", "user", user, "project", project, "err", err)
	}
	sc.CloseWith(websocket.CloseNormalClosure, "")
}
