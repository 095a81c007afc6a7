package signaling

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/im-anant/streeem/internal/protocol"
)

// Dispatch validates one inbound frame and routes it to its handler. It runs
// on the hub goroutine.
//
// The validation contract: the frame must be a well-formed envelope, declare
// the channel's protocol version, carry a known type tag, and have a payload.
// Any violation answers bad_request with no correlation identifier, since a
// malformed envelope may lack one. When a requestId is present on a
// well-formed envelope, an ack is sent before business processing starts; the
// ack means "received", not "accepted".
func (h *Hub) Dispatch(c *Conn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "malformed envelope", "")
		return
	}
	if err := env.ValidateInbound(); err != nil {
		h.sendError(c, protocol.CodeBadRequest, err.Error(), "")
		return
	}
	if env.RequestID != "" {
		h.send(c, protocol.NewAck(env.RequestID))
	}
	h.collector.MessageReceived(env.Type, len(data))

	switch env.Type {
	case protocol.TypeRoomJoin:
		h.handleJoin(c, &env)
	case protocol.TypeRoomLeave:
		h.handleLeave(c, &env)
	case protocol.TypeChatSend:
		h.handleChat(c, &env)
	case protocol.TypeWatchSetContent:
		h.handleSetContent(c, &env)
	case protocol.TypeWatchPlaybackState:
		h.handlePlayback(c, &env)
	case protocol.TypeUserUpdate:
		h.handleUserUpdate(c, &env)
	case protocol.TypeReactionSend:
		h.handleReaction(c, &env)
	case protocol.TypeWebRTCOffer, protocol.TypeWebRTCAnswer, protocol.TypeWebRTCICE:
		h.handleSignal(c, &env)
	}
}

func (h *Hub) send(c *Conn, env *protocol.Envelope) {
	if err := c.Transport.Send(env); err != nil {
		slog.Warn("send failed", "connId", c.ID, "type", env.Type, "error", err)
	}
}

func (h *Hub) sendError(c *Conn, code, message, requestID string) {
	h.collector.ErrorSent(code)
	h.send(c, protocol.NewError(code, message, requestID))
}

// requireRoom enforces that every room-scoped operation other than join comes
// from a Joined connection naming its own bound room.
func (h *Hub) requireRoom(c *Conn, roomID, requestID string) bool {
	if !c.Joined() || c.RoomID != roomID {
		h.sendError(c, protocol.CodeNotInRoom, "not joined to this room", requestID)
		return false
	}
	return true
}

func (h *Hub) handleJoin(c *Conn, env *protocol.Envelope) {
	var p protocol.JoinPayload
	if err := env.Decode(&p); err != nil || p.RoomID == "" || p.UserID == "" {
		h.sendError(c, protocol.CodeBadRequest, "invalid join payload", env.RequestID)
		return
	}
	joined := h.join(c, p)
	resp := protocol.MustNew(protocol.TypeRoomJoined, joined)
	resp.RequestID = env.RequestID
	h.send(c, resp)
}

func (h *Hub) handleLeave(c *Conn, env *protocol.Envelope) {
	var p protocol.LeavePayload
	if err := env.Decode(&p); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "invalid leave payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}
	h.leave(c)
}

func (h *Hub) handleChat(c *Conn, env *protocol.Envelope) {
	var p protocol.ChatSendPayload
	if err := env.Decode(&p); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "invalid chat payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}
	h.router.BroadcastToRoom(p.RoomID, protocol.MustNew(protocol.TypeChatMessage, protocol.ChatMessagePayload{
		RoomID:      p.RoomID,
		FromUserID:  c.Info.UserID,
		DisplayName: c.Info.DisplayName,
		Text:        p.Text,
		SentAtMs:    time.Now().UnixMilli(),
	}), c.Info.UserID)
}

func (h *Hub) handleSetContent(c *Conn, env *protocol.Envelope) {
	var p protocol.SetContentPayload
	if err := env.Decode(&p); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "invalid content payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}
	room, _ := h.registry.Room(p.RoomID)
	room.contentID = p.ContentID
	h.router.BroadcastToRoom(p.RoomID, protocol.MustNew(protocol.TypeWatchContent, protocol.ContentPayload{
		RoomID:     p.RoomID,
		ContentID:  p.ContentID,
		FromUserID: c.Info.UserID,
	}), c.Info.UserID)
}

func (h *Hub) handlePlayback(c *Conn, env *protocol.Envelope) {
	var p protocol.PlaybackStatePayload
	if err := env.Decode(&p); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "invalid playback payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}
	p.FromUserID = c.Info.UserID
	if p.ContentID != "" {
		if room, ok := h.registry.Room(p.RoomID); ok {
			room.contentID = p.ContentID
		}
	}
	h.router.BroadcastToRoom(p.RoomID, protocol.MustNew(protocol.TypeWatchPlaybackState, p), c.Info.UserID)
}

func (h *Hub) handleUserUpdate(c *Conn, env *protocol.Envelope) {
	var p protocol.UserUpdatePayload
	if err := env.Decode(&p); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "invalid user payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}
	if p.UserID != "" && p.UserID != c.Info.UserID {
		h.sendError(c, protocol.CodeUnauthorized, "cannot update another user", env.RequestID)
		return
	}
	c.Info.DisplayName = p.DisplayName
	h.router.BroadcastToRoom(p.RoomID, protocol.MustNew(protocol.TypeUserUpdated, protocol.UserUpdatedPayload{
		RoomID:      p.RoomID,
		UserID:      c.Info.UserID,
		DisplayName: p.DisplayName,
	}), c.Info.UserID)
}

func (h *Hub) handleReaction(c *Conn, env *protocol.Envelope) {
	var p protocol.ReactionSendPayload
	if err := env.Decode(&p); err != nil {
		h.sendError(c, protocol.CodeBadRequest, "invalid reaction payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}
	// Reactions go to everyone, sender included, so the sender renders its
	// own effect on the same delivery path.
	h.router.BroadcastToRoom(p.RoomID, protocol.MustNew(protocol.TypeReactionReceived, protocol.ReactionReceivedPayload{
		RoomID:     p.RoomID,
		FromUserID: c.Info.UserID,
		Emoji:      p.Emoji,
	}), "")
}

// handleSignal relays offer/answer/ICE envelopes to the named peer. The
// forwarded payload carries fromUserId in place of the client's toUserId.
func (h *Hub) handleSignal(c *Conn, env *protocol.Envelope) {
	var p protocol.SignalPayload
	if err := env.Decode(&p); err != nil || p.ToUserID == "" {
		h.sendError(c, protocol.CodeBadRequest, "invalid signal payload", env.RequestID)
		return
	}
	if !h.requireRoom(c, p.RoomID, env.RequestID) {
		return
	}

	to := p.ToUserID
	p.ToUserID = ""
	p.FromUserID = c.Info.UserID

	err := h.router.RelayToPeer(p.RoomID, p.FromUserID, to, protocol.MustNew(env.Type, p))
	switch {
	case errors.Is(err, ErrRoomNotFound):
		h.sendError(c, protocol.CodeRoomNotFound, "room is gone", env.RequestID)
	case errors.Is(err, ErrPeerNotFound):
		h.sendError(c, protocol.CodePeerNotFound, "no such peer in room", env.RequestID)
	}
}
