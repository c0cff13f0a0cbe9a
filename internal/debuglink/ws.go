package debuglink

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSServer exposes the debug link over a WebSocket endpoint the host IDE
// connects to. One IDE connection at a time; a new connection replaces the
// sender of the previous one.
type WSServer struct {
	state    *State
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSServer wraps a channel state in a WebSocket transport.
func NewWSServer(state *State, log *slog.Logger) *WSServer {
	if log == nil {
		log = slog.Default()
	}
	ws := &WSServer{
		state: state,
		log:   log,
		upgrader: websocket.Upgrader{
			// The link is reachable only on the debug interface; the IDE
			// is not a browser, so origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	return ws
}

// ServeHTTP upgrades the connection and runs the receive loop until the
// peer disconnects.
func (ws *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Error("debug link upgrade failed", "error", err)
		return
	}
	ws.log.Info("debug link connected", "remote", conn.RemoteAddr())

	ws.mu.Lock()
	if ws.conn != nil {
		_ = ws.conn.Close()
	}
	ws.conn = conn
	ws.mu.Unlock()

	ws.state.SetSender(ws.sendFrame)
	ws.readLoop(conn)

	ws.mu.Lock()
	if ws.conn == conn {
		ws.conn = nil
	}
	ws.mu.Unlock()
	ws.log.Info("debug link disconnected", "remote", conn.RemoteAddr())
}

// readLoop decodes inbound frames and pushes them into the flag surface.
// Flag-set and enqueue only; no transition logic lives here.
func (ws *WSServer) readLoop(conn *websocket.Conn) {
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		typ, payload, err := DecodeFrame(raw)
		if err != nil {
			ws.log.Warn("dropping bad frame", "error", err)
			continue
		}
		ws.state.dispatch(typ, payload)
	}
}

// sendFrame delivers device-to-host output on the live connection, if any.
func (ws *WSServer) sendFrame(kind byte, text string) {
	ws.mu.Lock()
	conn := ws.conn
	ws.mu.Unlock()
	if conn == nil {
		return
	}
	raw, err := EncodeFrame(kind, []byte(text))
	if err != nil {
		ws.log.Warn("dropping oversized output frame", "error", err)
		return
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.conn != conn {
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
		ws.log.Warn("debug link write failed", "error", err)
	}
}
