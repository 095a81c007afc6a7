package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/im-anant/streeem/internal/metrics"
	"github.com/im-anant/streeem/internal/protocol"
	"github.com/im-anant/streeem/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// TODO: check r.Header.Get("Origin") against the deployed frontend
	// domain once it is fixed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Routes builds the HTTP surface: the websocket upgrade, health/stats/metrics,
// and the collaborator room and relay-credential endpoints.
func Routes(hub *signaling.Hub, cfg *Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", serveWS(hub))
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/stats", handleStats(hub))
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("POST /api/rooms", handleCreateRoom(hub))
	mux.HandleFunc("GET /api/rooms/{id}", handleRoomExists(hub))
	mux.HandleFunc("GET /api/turn-credentials", handleRelayCredentials(cfg))

	return mux
}

// serveWS upgrades the connection, greets it with server/hello, and starts
// its pumps. Everything after that flows through the hub.
func serveWS(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "error", err)
			return
		}

		wsConn, conn := signaling.NewWSConn(uuid.NewString(), ws, hub)
		wsConn.Start()

		hello := protocol.MustNew(protocol.TypeServerHello, protocol.HelloPayload{
			ConnID:  conn.ID,
			Version: protocol.Version,
		})
		if err := wsConn.Send(hello); err != nil {
			slog.Warn("hello send failed", "error", err)
		}
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleStats(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, hub.Stats())
	}
}

func handleCreateRoom(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generateRoomID(hub.RoomExists)
		writeJSON(w, http.StatusCreated, map[string]string{"roomId": id})
	}
}

func handleRoomExists(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !hub.RoomExists(id) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"roomId": id})
	}
}

// handleRelayCredentials returns the relay server descriptors clients merge
// into their base connectivity-server list. Issuance policy is configuration;
// the server just serves it.
func handleRelayCredentials(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]RelayServer{"iceServers": cfg.Relay})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
