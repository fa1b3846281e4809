package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 15 * time.Second
	wsWriteWait       = 10 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsMessage is the single frame shape the streaming chat socket speaks
// in both directions: clients send {type:"chat", agent, content}; the
// server replies chat_start, one or more chat_chunk frames, then
// chat_done (or an error frame if the turn fails).
type wsMessage struct {
	Type    string `json:"type"`
	Agent   string `json:"agent,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleWS upgrades to a WebSocket and serves one streaming chat session.
// Replies are chunked at a fixed size purely to exercise the streaming
// shape; the turn engine itself doesn't produce incremental tokens.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxPayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var writeMu sync.Mutex
	done := make(chan struct{})
	go s.wsPingLoop(conn, &writeMu, done)
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.wsWriteJSON(conn, &writeMu, wsMessage{Type: "error", Error: "invalid message"})
			continue
		}
		switch msg.Type {
		case "ping":
			s.wsWriteJSON(conn, &writeMu, wsMessage{Type: "pong"})
		case "chat":
			s.wsHandleChat(r, conn, &writeMu, msg)
		default:
			s.wsWriteJSON(conn, &writeMu, wsMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (s *Server) wsHandleChat(r *http.Request, conn *websocket.Conn, writeMu *sync.Mutex, msg wsMessage) {
	if msg.Agent == "" || msg.Content == "" {
		s.wsWriteJSON(conn, writeMu, wsMessage{Type: "error", Error: "agent and content are required"})
		return
	}
	s.wsWriteJSON(conn, writeMu, wsMessage{Type: "chat_start"})

	reply, err := s.pool.RunAgentPrompt(r.Context(), msg.Agent, msg.Content)
	if err != nil {
		s.wsWriteJSON(conn, writeMu, wsMessage{Type: "error", Error: err.Error()})
		return
	}

	const chunkSize = 64
	for i := 0; i < len(reply); i += chunkSize {
		end := i + chunkSize
		if end > len(reply) {
			end = len(reply)
		}
		s.wsWriteJSON(conn, writeMu, wsMessage{Type: "chat_chunk", Content: reply[i:end]})
	}
	s.wsWriteJSON(conn, writeMu, wsMessage{Type: "chat_done"})
}

func (s *Server) wsPingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) wsWriteJSON(conn *websocket.Conn, writeMu *sync.Mutex, v any) {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Warn("ws write failed", "error", err)
	}
}
