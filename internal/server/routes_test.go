package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-anant/streeem/internal/protocol"
	"github.com/im-anant/streeem/internal/signaling"
)

func newTestServer(t *testing.T) (*httptest.Server, *Config) {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Relay = []RelayServer{{
		URLs:       []string{"turn:relay.example.com:3478"},
		Username:   "watcher",
		Credential: "secret",
	}}

	hub := signaling.NewHub(signaling.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(Routes(hub, cfg))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoomRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Regexp(t, roomIDPattern, body.RoomID)
}

func TestRoomLookupRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/rooms/never-seen-before")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelayCredentialsRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/turn-credentials")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ICEServers []RelayServer `json:"iceServers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.ICEServers, 1)
	assert.Equal(t, "watcher", body.ICEServers[0].Username)
}

// readEnvelope reads frames until the deadline, failing the test on timeout.
func readEnvelope(t *testing.T, ws *websocket.Conn) *protocol.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env protocol.Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return &env
}

func TestWebSocketJoinFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	hello := readEnvelope(t, ws)
	require.Equal(t, protocol.TypeServerHello, hello.Type)
	var hp protocol.HelloPayload
	require.NoError(t, hello.Decode(&hp))
	assert.NotEmpty(t, hp.ConnID)
	assert.Equal(t, protocol.Version, hp.Version)

	join := protocol.MustNew(protocol.TypeRoomJoin, protocol.JoinPayload{
		RoomID:      "integration-room",
		UserID:      "alice",
		DisplayName: "Alice",
	})
	join.RequestID = "req-1"
	require.NoError(t, ws.WriteJSON(join))

	ack := readEnvelope(t, ws)
	assert.Equal(t, protocol.TypeAck, ack.Type)
	assert.Equal(t, "req-1", ack.RequestID)

	joined := readEnvelope(t, ws)
	require.Equal(t, protocol.TypeRoomJoined, joined.Type)
	assert.Equal(t, "req-1", joined.RequestID)
	var jp protocol.JoinedPayload
	require.NoError(t, joined.Decode(&jp))
	assert.Equal(t, "integration-room", jp.RoomID)
	assert.Empty(t, jp.Peers)

	// The room is now visible to the HTTP lookup.
	resp, err := http.Get(srv.URL + "/api/rooms/integration-room")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
