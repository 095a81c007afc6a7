package client

import (
	"log/slog"

	"github.com/im-anant/streeem/internal/protocol"
)

// SignalKind distinguishes the three peer-directed message flavors.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// Signal is a server-forwarded negotiation message from another peer.
type Signal struct {
	Kind    SignalKind
	Payload protocol.SignalPayload
}

// Handler routes incoming envelopes to typed channels.
type Handler struct {
	client *Client

	Hello       chan *protocol.HelloPayload
	Joined      chan *protocol.JoinedPayload
	PeerJoined  chan *protocol.ClientInfo
	PeerLeft    chan string
	Signals     chan *Signal
	Chat        chan *protocol.ChatMessagePayload
	Content     chan *protocol.ContentPayload
	Playback    chan *protocol.PlaybackStatePayload
	UserUpdated chan *protocol.UserUpdatedPayload
	Reactions   chan *protocol.ReactionReceivedPayload
	Errors      chan *protocol.ErrorPayload

	// Done is closed when the connection dies and routing stops.
	Done chan struct{}
}

// NewHandler creates a new envelope router.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:      client,
		Hello:       make(chan *protocol.HelloPayload, 1),
		Joined:      make(chan *protocol.JoinedPayload, 1),
		PeerJoined:  make(chan *protocol.ClientInfo, 8),
		PeerLeft:    make(chan string, 8),
		Signals:     make(chan *Signal, 32),
		Chat:        make(chan *protocol.ChatMessagePayload, 32),
		Content:     make(chan *protocol.ContentPayload, 8),
		Playback:    make(chan *protocol.PlaybackStatePayload, 32),
		UserUpdated: make(chan *protocol.UserUpdatedPayload, 8),
		Reactions:   make(chan *protocol.ReactionReceivedPayload, 32),
		Errors:      make(chan *protocol.ErrorPayload, 8),
		Done:        make(chan struct{}),
	}
}

// Start consumes the client's incoming channel until the connection dies.
func (h *Handler) Start() {
	defer close(h.Done)
	for env := range h.client.Incoming() {
		h.route(env)
	}
}

func (h *Handler) route(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeServerHello:
		decodeTo(env, h.Hello)
	case protocol.TypeRoomJoined:
		decodeTo(env, h.Joined)
	case protocol.TypeRoomPeerJoined:
		var p protocol.PeerJoinedPayload
		if err := env.Decode(&p); err == nil {
			h.PeerJoined <- &p.Peer
		}
	case protocol.TypeRoomPeerLeft:
		var p protocol.PeerLeftPayload
		if err := env.Decode(&p); err == nil {
			h.PeerLeft <- p.UserID
		}
	case protocol.TypeWebRTCOffer:
		h.routeSignal(env, SignalOffer)
	case protocol.TypeWebRTCAnswer:
		h.routeSignal(env, SignalAnswer)
	case protocol.TypeWebRTCICE:
		h.routeSignal(env, SignalCandidate)
	case protocol.TypeChatMessage:
		decodeTo(env, h.Chat)
	case protocol.TypeWatchContent:
		decodeTo(env, h.Content)
	case protocol.TypeWatchPlaybackState:
		decodeTo(env, h.Playback)
	case protocol.TypeUserUpdated:
		decodeTo(env, h.UserUpdated)
	case protocol.TypeReactionReceived:
		decodeTo(env, h.Reactions)
	case protocol.TypeError:
		decodeTo(env, h.Errors)
	case protocol.TypeAck:
		// Transport-level "received"; nothing to route.
	default:
		slog.Debug("unhandled message type", "type", env.Type)
	}
}

func (h *Handler) routeSignal(env *protocol.Envelope, kind SignalKind) {
	var p protocol.SignalPayload
	if err := env.Decode(&p); err != nil {
		slog.Warn("bad signal payload", "kind", kind, "error", err)
		return
	}
	h.Signals <- &Signal{Kind: kind, Payload: p}
}

func decodeTo[T any](env *protocol.Envelope, ch chan *T) {
	var p T
	if err := env.Decode(&p); err != nil {
		slog.Warn("bad payload", "type", env.Type, "error", err)
		return
	}
	ch <- &p
}
