package watch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/im-anant/streeem/internal/client"
	"github.com/im-anant/streeem/internal/config"
	"github.com/im-anant/streeem/internal/playback"
	"github.com/im-anant/streeem/internal/protocol"
	"github.com/im-anant/streeem/internal/rtc"
)

const relayFetchTimeout = 5 * time.Second

// Session ties the client pieces together for one room visit: the signaling
// connection, the negotiation coordinator, and the playback sync engine.
type Session struct {
	cfg         *config.Config
	client      *client.Client
	handler     *client.Handler
	coordinator *rtc.Coordinator
	player      playback.Player
	engine      *playback.Engine

	roomID      string
	userID      string
	displayName string

	// joined flips once the server confirms the join; room-scoped
	// operations before that would only earn a not_in_room error back.
	joined atomic.Bool
}

// NewSession connects to the signaling server and prepares the coordinator.
// It does not join the room yet; Run does.
func NewSession(cfg *config.Config, roomID, userID, displayName string) (*Session, error) {
	c := client.NewClient(cfg.WebSocketURL)
	if err := c.Connect(); err != nil {
		return nil, NewError("connect to server", err)
	}

	h := client.NewHandler(c)
	go h.Start()

	ctx, cancel := context.WithTimeout(context.Background(), relayFetchTimeout)
	defer cancel()
	relays, err := rtc.FetchRelayServers(ctx, http.DefaultClient, cfg.ServerURL)
	if err != nil {
		slog.Warn("relay credential fetch failed, continuing without relays", "error", err)
	}

	player := playback.NewVirtualPlayer()
	s := &Session{
		cfg:         cfg,
		client:      c,
		handler:     h,
		player:      player,
		engine:      playback.NewEngine(player),
		roomID:      roomID,
		userID:      userID,
		displayName: displayName,
	}
	s.coordinator = rtc.NewCoordinator(s, rtc.NewPionFactory(cfg.STUNServer, relays))
	return s, nil
}

// Player exposes the local playback surface.
func (s *Session) Player() playback.Player { return s.player }

// Coordinator exposes the negotiation coordinator, e.g. for share toggles.
func (s *Session) Coordinator() *rtc.Coordinator { return s.coordinator }

// Run joins the room and processes events until ctx is cancelled or the
// connection dies.
func (s *Session) Run(ctx context.Context) error {
	if err := s.client.SendType(protocol.TypeRoomJoin, protocol.JoinPayload{
		RoomID:      s.roomID,
		UserID:      s.userID,
		DisplayName: s.displayName,
	}); err != nil {
		return NewError("join room", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.handler.Done:
			return ErrConnectionClosed

		case joined := <-s.handler.Joined:
			s.joined.Store(true)
			slog.Info("joined room", "room", joined.RoomID, "peers", len(joined.Peers))
			if joined.ContentID != "" {
				s.player.SetContent(joined.ContentID)
			}
			// Present members offer toward us; nothing to initiate here.

		case peer := <-s.handler.PeerJoined:
			slog.Info("peer joined", "userId", peer.UserID, "name", peer.DisplayName)
			if err := s.coordinator.PeerJoined(peer.UserID); err != nil {
				slog.Warn("negotiation start failed", "peer", peer.UserID, "error", err)
			}

		case userID := <-s.handler.PeerLeft:
			slog.Info("peer left", "userId", userID)
			s.coordinator.PeerLeft(userID)

		case sig := <-s.handler.Signals:
			s.handleSignal(sig)

		case snap := <-s.handler.Playback:
			s.engine.Apply(snap)

		case content := <-s.handler.Content:
			slog.Info("content changed", "contentId", content.ContentID, "by", content.FromUserID)
			s.player.SetContent(content.ContentID)

		case msg := <-s.handler.Chat:
			slog.Info("chat", "from", msg.DisplayName, "text", msg.Text)

		case update := <-s.handler.UserUpdated:
			slog.Info("user updated", "userId", update.UserID, "name", update.DisplayName)

		case reaction := <-s.handler.Reactions:
			slog.Info("reaction", "from", reaction.FromUserID, "emoji", reaction.Emoji)

		case errPayload := <-s.handler.Errors:
			slog.Warn("server error", "code", errPayload.Code, "message", errPayload.Message)
		}
	}
}

func (s *Session) handleSignal(sig *client.Signal) {
	from := sig.Payload.FromUserID
	var err error
	switch sig.Kind {
	case client.SignalOffer:
		err = s.coordinator.HandleOffer(from, sig.Payload.SDP)
	case client.SignalAnswer:
		err = s.coordinator.HandleAnswer(from, sig.Payload.SDP)
	case client.SignalCandidate:
		var candidate webrtc.ICECandidateInit
		if err = json.Unmarshal(sig.Payload.Candidate, &candidate); err == nil {
			err = s.coordinator.HandleCandidate(from, candidate)
		}
	}
	if err != nil {
		// Media errors degrade the session; they never terminate it.
		slog.Warn("signal handling failed", "kind", sig.Kind, "peer", from, "error", err)
	}
}

// SendOffer relays a session description offer through the server.
func (s *Session) SendOffer(toUserID, sdp string) error {
	return s.client.SendType(protocol.TypeWebRTCOffer, protocol.SignalPayload{
		RoomID:   s.roomID,
		ToUserID: toUserID,
		SDP:      sdp,
	})
}

// SendAnswer relays a session description answer through the server.
func (s *Session) SendAnswer(toUserID, sdp string) error {
	return s.client.SendType(protocol.TypeWebRTCAnswer, protocol.SignalPayload{
		RoomID:   s.roomID,
		ToUserID: toUserID,
		SDP:      sdp,
	})
}

// SendCandidate relays an ICE candidate through the server.
func (s *Session) SendCandidate(toUserID string, candidate webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return WrapError("encode candidate", err, "peer "+toUserID)
	}
	return s.client.SendType(protocol.TypeWebRTCICE, protocol.SignalPayload{
		RoomID:    s.roomID,
		ToUserID:  toUserID,
		Candidate: raw,
	})
}

// SendChat sends a chat line to the room.
func (s *Session) SendChat(text string) error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	return s.client.SendType(protocol.TypeChatSend, protocol.ChatSendPayload{
		RoomID: s.roomID,
		Text:   text,
	})
}

// SetContent announces new content and loads it locally.
func (s *Session) SetContent(contentID string) error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	s.player.SetContent(contentID)
	return s.client.SendType(protocol.TypeWatchSetContent, protocol.SetContentPayload{
		RoomID:    s.roomID,
		ContentID: contentID,
	})
}

// Play starts local playback and broadcasts the snapshot.
func (s *Session) Play() error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	s.player.Play()
	return s.broadcastSnapshot()
}

// Pause stops local playback and broadcasts the snapshot.
func (s *Session) Pause() error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	s.player.Pause()
	return s.broadcastSnapshot()
}

// Seek moves the local playhead and broadcasts the snapshot.
func (s *Session) Seek(positionSec float64) error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	s.player.Seek(positionSec)
	return s.broadcastSnapshot()
}

// React sends a reaction; the server fans it back to everyone including us.
func (s *Session) React(emoji string) error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	return s.client.SendType(protocol.TypeReactionSend, protocol.ReactionSendPayload{
		RoomID: s.roomID,
		Emoji:  emoji,
	})
}

// SetDisplayName updates our profile in the room.
func (s *Session) SetDisplayName(name string) error {
	if !s.joined.Load() {
		return ErrNotJoined
	}
	s.displayName = name
	return s.client.SendType(protocol.TypeUserUpdate, protocol.UserUpdatePayload{
		RoomID:      s.roomID,
		UserID:      s.userID,
		DisplayName: name,
	})
}

func (s *Session) broadcastSnapshot() error {
	return s.client.SendType(protocol.TypeWatchPlaybackState, protocol.PlaybackStatePayload{
		RoomID:      s.roomID,
		Playing:     s.player.Playing(),
		PositionSec: s.player.Position(),
		HostTsMs:    time.Now().UnixMilli(),
		ContentID:   s.player.ContentID(),
	})
}

// Close leaves the room and tears down every negotiation session and the
// signaling connection.
func (s *Session) Close() {
	if s.joined.Load() {
		s.client.SendType(protocol.TypeRoomLeave, protocol.LeavePayload{RoomID: s.roomID})
	}
	s.coordinator.Close()
	s.client.Close()
}
