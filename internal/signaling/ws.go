package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/im-anant/streeem/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers fit comfortably.
	maxMessageSize = 64 * 1024
)

var errSendBufferFull = errors.New("send buffer full")

// WSConn adapts a gorilla websocket to the Transport interface and pumps
// frames between the socket and the hub. All reads happen on the readPump
// goroutine and all data writes on the writePump goroutine; close control
// frames are the one exception gorilla permits from elsewhere.
type WSConn struct {
	conn *Conn
	ws   *websocket.Conn
	hub  *Hub
	send chan []byte
}

// NewWSConn wraps an upgraded websocket. The returned Conn is what the hub
// tracks; Start must be called to begin pumping.
func NewWSConn(id string, ws *websocket.Conn, hub *Hub) (*WSConn, *Conn) {
	w := &WSConn{
		ws:   ws,
		hub:  hub,
		send: make(chan []byte, 256),
	}
	w.conn = &Conn{ID: id, Transport: w}
	return w, w.conn
}

func (w *WSConn) Send(env *protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case w.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (w *WSConn) CloseWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	w.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	w.ws.Close()
}

func (w *WSConn) Close() error {
	return w.ws.Close()
}

// Start launches the read and write pumps.
func (w *WSConn) Start() {
	w.hub.ConnOpened()
	go w.writePump()
	go w.readPump()
}

func (w *WSConn) readPump() {
	defer func() {
		w.hub.ConnClosed(w.conn)
		w.ws.Close()
	}()

	w.ws.SetReadLimit(maxMessageSize)
	w.ws.SetReadDeadline(time.Now().Add(pongWait))
	w.ws.SetPongHandler(func(string) error {
		w.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := w.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "connId", w.conn.ID, "error", err)
			}
			return
		}
		w.hub.Enqueue(w.conn, data)
	}
}

func (w *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.ws.Close()
	}()

	for {
		select {
		case message, ok := <-w.send:
			w.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			w.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
