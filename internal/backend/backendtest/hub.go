package backendtest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

const recordSeparator = "\x1e"

func (s *Server) negotiate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"negotiateVersion":    1,
		"connectionToken":     "conn-token",
		"availableTransports": []map[string]any{{"transport": "WebSockets", "transferFormats": []string{"Text"}}},
	})
}

func (s *Server) hub(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if _, _, err := conn.ReadMessage(); err != nil {
		_ = conn.Close()
		return
	}

	s.hubMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, []byte("{}"+recordSeparator))
	s.hubConns[conn] = struct{}{}
	s.hubMu.Unlock()
	if err != nil {
		s.drop(conn)
		return
	}

	// Pings and close frames from the client are read and ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.drop(conn)
			return
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.hubMu.Lock()
	delete(s.hubConns, conn)
	s.hubMu.Unlock()
	_ = conn.Close()
}

// Broadcast sends one invocation of target with payload to every hub socket.
func (s *Server) Broadcast(target string, payload any) {
	arg, err := json.Marshal(payload)
	if err != nil {
		s.t.Errorf("backendtest: marshal %s payload: %v", target, err)
		return
	}
	frame, err := json.Marshal(map[string]any{
		"type":      1,
		"target":    target,
		"arguments": []json.RawMessage{arg},
	})
	if err != nil {
		s.t.Errorf("backendtest: marshal %s frame: %v", target, err)
		return
	}

	s.hubMu.Lock()
	defer s.hubMu.Unlock()
	for conn := range s.hubConns {
		_ = conn.WriteMessage(websocket.TextMessage, append(frame, recordSeparator...))
	}
}
