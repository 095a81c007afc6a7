package signaling

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-anant/streeem/internal/protocol"
)

type mockTransport struct {
	mu        sync.Mutex
	sent      []*protocol.Envelope
	closeCode int
	closed    bool
}

func (m *mockTransport) Send(env *protocol.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, env)
	return nil
}

func (m *mockTransport) CloseWithCode(code int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCode = code
	m.closed = true
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) getSent() []*protocol.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Envelope(nil), m.sent...)
}

// sentOfType returns the envelopes of one type, in send order.
func (m *mockTransport) sentOfType(msgType string) []*protocol.Envelope {
	var out []*protocol.Envelope
	for _, env := range m.getSent() {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func newTestHub(grace time.Duration) *Hub {
	return NewHub(Config{GracePeriod: grace})
}

func newTestConn(id string) (*Conn, *mockTransport) {
	t := &mockTransport{}
	return &Conn{ID: id, Transport: t}, t
}

func envelope(t *testing.T, msgType, requestID string, payload any) []byte {
	t.Helper()
	env, err := protocol.New(msgType, payload)
	require.NoError(t, err)
	env.RequestID = requestID
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func join(t *testing.T, h *Hub, c *Conn, roomID, userID, name string) {
	t.Helper()
	h.Dispatch(c, envelope(t, protocol.TypeRoomJoin, "", protocol.JoinPayload{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: name,
	}))
}

func TestJoinCreatesRoomAndListsPeers(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, aliceT := newTestConn("c1")
	bob, bobT := newTestConn("c2")

	join(t, h, alice, "movie-night", "alice", "Alice")
	join(t, h, bob, "movie-night", "bob", "Bob")

	joined := bobT.sentOfType(protocol.TypeRoomJoined)
	require.Len(t, joined, 1)
	var p protocol.JoinedPayload
	require.NoError(t, joined[0].Decode(&p))
	assert.Equal(t, "movie-night", p.RoomID)
	assert.Equal(t, "bob", p.Self.UserID)
	require.Len(t, p.Peers, 1)
	assert.Equal(t, "alice", p.Peers[0].UserID)

	// The member already present is told about the newcomer.
	peerJoined := aliceT.sentOfType(protocol.TypeRoomPeerJoined)
	require.Len(t, peerJoined, 1)
	var pj protocol.PeerJoinedPayload
	require.NoError(t, peerJoined[0].Decode(&pj))
	assert.Equal(t, "bob", pj.Peer.UserID)

	room, ok := h.registry.Room("movie-night")
	require.True(t, ok)
	assert.Len(t, room.conns, 2)
}

func TestRejoinReplacesPriorConnection(t *testing.T) {
	h := newTestHub(time.Minute)
	old, oldT := newTestConn("c1")
	fresh, _ := newTestConn("c2")

	join(t, h, old, "r1", "alice", "Alice")
	join(t, h, fresh, "r1", "alice", "Alice")

	assert.True(t, oldT.closed)
	assert.Equal(t, CloseReplaced, oldT.closeCode)

	room, ok := h.registry.Room("r1")
	require.True(t, ok)
	bound, ok := room.Get("alice")
	require.True(t, ok)
	assert.Same(t, fresh, bound)
	assert.Len(t, room.conns, 1, "no duplicate identity entries")

	// The old socket's read pump dying afterwards must not unbind the
	// replacement.
	h.HandleClose(old)
	bound, ok = room.Get("alice")
	require.True(t, ok)
	assert.Same(t, fresh, bound)
}

func TestLeaveBroadcastsAndArmsCleanup(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, _ := newTestConn("c1")
	bob, bobT := newTestConn("c2")

	join(t, h, alice, "r1", "alice", "Alice")
	join(t, h, bob, "r1", "bob", "Bob")

	h.Dispatch(alice, envelope(t, protocol.TypeRoomLeave, "", protocol.LeavePayload{RoomID: "r1"}))

	left := bobT.sentOfType(protocol.TypeRoomPeerLeft)
	require.Len(t, left, 1)
	var p protocol.PeerLeftPayload
	require.NoError(t, left[0].Decode(&p))
	assert.Equal(t, "alice", p.UserID)

	room, ok := h.registry.Room("r1")
	require.True(t, ok)
	assert.Nil(t, room.cleanup, "cleanup must not be armed while members remain")

	h.HandleClose(bob)
	assert.NotNil(t, room.cleanup, "cleanup armed once the room empties")
}

func TestRoomDeletedOnlyIfStillEmpty(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, _ := newTestConn("c1")

	join(t, h, alice, "r1", "alice", "Alice")
	h.HandleClose(alice)

	// Stale expiry after a rejoin must not delete the room.
	rejoin, _ := newTestConn("c2")
	join(t, h, rejoin, "r1", "alice", "Alice")
	h.HandleExpired("r1")
	_, ok := h.registry.Room("r1")
	assert.True(t, ok, "rejoin during the grace window cancels deletion")

	h.HandleClose(rejoin)
	h.HandleExpired("r1")
	_, ok = h.registry.Room("r1")
	assert.False(t, ok, "empty room deleted after the grace period")
}

func TestCleanupTimerFires(t *testing.T) {
	h := newTestHub(10 * time.Millisecond)
	alice, _ := newTestConn("c1")

	join(t, h, alice, "r1", "alice", "Alice")
	h.HandleClose(alice)

	select {
	case roomID := <-h.expired:
		assert.Equal(t, "r1", roomID)
	case <-time.After(time.Second):
		t.Fatal("cleanup timer never fired")
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, aliceT := newTestConn("c1")
	bob, bobT := newTestConn("c2")
	carol, carolT := newTestConn("c3")

	join(t, h, alice, "r1", "alice", "Alice")
	join(t, h, bob, "r1", "bob", "Bob")
	join(t, h, carol, "r1", "carol", "Carol")

	h.Dispatch(alice, envelope(t, protocol.TypeChatSend, "", protocol.ChatSendPayload{
		RoomID: "r1",
		Text:   "hello",
	}))

	assert.Len(t, bobT.sentOfType(protocol.TypeChatMessage), 1)
	assert.Len(t, carolT.sentOfType(protocol.TypeChatMessage), 1)
	assert.Empty(t, aliceT.sentOfType(protocol.TypeChatMessage))
}

func TestReactionsReachTheSenderToo(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, aliceT := newTestConn("c1")
	bob, bobT := newTestConn("c2")

	join(t, h, alice, "r1", "alice", "Alice")
	join(t, h, bob, "r1", "bob", "Bob")

	h.Dispatch(alice, envelope(t, protocol.TypeReactionSend, "", protocol.ReactionSendPayload{
		RoomID: "r1",
		Emoji:  "🎉",
	}))

	require.Len(t, aliceT.sentOfType(protocol.TypeReactionReceived), 1)
	require.Len(t, bobT.sentOfType(protocol.TypeReactionReceived), 1)

	var p protocol.ReactionReceivedPayload
	require.NoError(t, aliceT.sentOfType(protocol.TypeReactionReceived)[0].Decode(&p))
	assert.Equal(t, "alice", p.FromUserID)
}

func TestRelayRewritesSenderIdentity(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, _ := newTestConn("c1")
	bob, bobT := newTestConn("c2")

	join(t, h, alice, "r1", "alice", "Alice")
	join(t, h, bob, "r1", "bob", "Bob")

	h.Dispatch(alice, envelope(t, protocol.TypeWebRTCOffer, "", protocol.SignalPayload{
		RoomID:   "r1",
		ToUserID: "bob",
		SDP:      "v=0 fake offer",
	}))

	offers := bobT.sentOfType(protocol.TypeWebRTCOffer)
	require.Len(t, offers, 1)
	var p protocol.SignalPayload
	require.NoError(t, offers[0].Decode(&p))
	assert.Equal(t, "alice", p.FromUserID)
	assert.Empty(t, p.ToUserID)
	assert.Equal(t, "v=0 fake offer", p.SDP)
}

func TestRelayToMissingPeer(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, aliceT := newTestConn("c1")
	bob, bobT := newTestConn("c2")

	join(t, h, alice, "r1", "alice", "Alice")
	join(t, h, bob, "r1", "bob", "Bob")

	h.Dispatch(alice, envelope(t, protocol.TypeWebRTCICE, "", protocol.SignalPayload{
		RoomID:    "r1",
		ToUserID:  "ghost",
		Candidate: json.RawMessage(`{"candidate":"candidate:1"}`),
	}))

	errs := aliceT.sentOfType(protocol.TypeError)
	require.Len(t, errs, 1)
	var p protocol.ErrorPayload
	require.NoError(t, errs[0].Decode(&p))
	assert.Equal(t, protocol.CodePeerNotFound, p.Code)

	// No side effect on anyone else.
	assert.Empty(t, bobT.sentOfType(protocol.TypeWebRTCICE))
}

func TestPlaybackSnapshotFanOut(t *testing.T) {
	h := newTestHub(time.Minute)
	alice, _ := newTestConn("c1")
	bob, bobT := newTestConn("c2")

	join(t, h, alice, "r1", "alice", "Alice")
	join(t, h, bob, "r1", "bob", "Bob")

	h.Dispatch(alice, envelope(t, protocol.TypeWatchPlaybackState, "", protocol.PlaybackStatePayload{
		RoomID:      "r1",
		Playing:     true,
		PositionSec: 42.5,
		HostTsMs:    1700000000000,
		ContentID:   "tape-17",
	}))

	snaps := bobT.sentOfType(protocol.TypeWatchPlaybackState)
	require.Len(t, snaps, 1)
	var p protocol.PlaybackStatePayload
	require.NoError(t, snaps[0].Decode(&p))
	assert.Equal(t, "alice", p.FromUserID)
	assert.Equal(t, 42.5, p.PositionSec)

	// Late joiner learns the content id from the join confirmation.
	carol, carolT := newTestConn("c3")
	join(t, h, carol, "r1", "carol", "Carol")
	joined := carolT.sentOfType(protocol.TypeRoomJoined)
	require.Len(t, joined, 1)
	var jp protocol.JoinedPayload
	require.NoError(t, joined[0].Decode(&jp))
	assert.Equal(t, "tape-17", jp.ContentID)
}
