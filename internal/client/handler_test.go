package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-anant/streeem/internal/protocol"
)

func TestRouteJoined(t *testing.T) {
	h := NewHandler(nil)

	h.route(protocol.MustNew(protocol.TypeRoomJoined, protocol.JoinedPayload{
		RoomID: "r1",
		Self:   protocol.ClientInfo{UserID: "alice"},
		Peers:  []protocol.ClientInfo{{UserID: "bob"}},
	}))

	select {
	case joined := <-h.Joined:
		assert.Equal(t, "r1", joined.RoomID)
		require.Len(t, joined.Peers, 1)
	default:
		t.Fatal("joined payload not routed")
	}
}

func TestRoutePeerLifecycle(t *testing.T) {
	h := NewHandler(nil)

	h.route(protocol.MustNew(protocol.TypeRoomPeerJoined, protocol.PeerJoinedPayload{
		RoomID: "r1",
		Peer:   protocol.ClientInfo{UserID: "bob", DisplayName: "Bob"},
	}))
	h.route(protocol.MustNew(protocol.TypeRoomPeerLeft, protocol.PeerLeftPayload{
		RoomID: "r1",
		UserID: "bob",
	}))

	peer := <-h.PeerJoined
	assert.Equal(t, "bob", peer.UserID)
	assert.Equal(t, "bob", <-h.PeerLeft)
}

func TestRouteSignalKinds(t *testing.T) {
	h := NewHandler(nil)

	tests := []struct {
		msgType string
		want    SignalKind
	}{
		{protocol.TypeWebRTCOffer, SignalOffer},
		{protocol.TypeWebRTCAnswer, SignalAnswer},
		{protocol.TypeWebRTCICE, SignalCandidate},
	}

	for _, tt := range tests {
		h.route(protocol.MustNew(tt.msgType, protocol.SignalPayload{
			RoomID:     "r1",
			FromUserID: "bob",
			SDP:        "v=0",
		}))
		sig := <-h.Signals
		assert.Equal(t, tt.want, sig.Kind)
		assert.Equal(t, "bob", sig.Payload.FromUserID)
	}
}

func TestRouteAckIsSilent(t *testing.T) {
	h := NewHandler(nil)

	h.route(protocol.NewAck("req-1"))

	assert.Empty(t, h.Errors)
	assert.Empty(t, h.Signals)
}

func TestRouteErrorPayload(t *testing.T) {
	h := NewHandler(nil)

	h.route(protocol.NewError(protocol.CodeNotInRoom, "not joined to this room", ""))

	errPayload := <-h.Errors
	assert.Equal(t, protocol.CodeNotInRoom, errPayload.Code)
}

func TestRouteMalformedPayloadDropped(t *testing.T) {
	h := NewHandler(nil)

	env := &protocol.Envelope{
		V:       protocol.Version,
		Type:    protocol.TypeRoomPeerLeft,
		Payload: []byte(`"not an object"`),
	}
	h.route(env)

	assert.Empty(t, h.PeerLeft, "undecodable payloads are logged and dropped")
}
