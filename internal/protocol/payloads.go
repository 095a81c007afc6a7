package protocol

import "encoding/json"

// ClientInfo identifies a room member. Immutable once bound at join, except
// for the display name which user/update may change.
type ClientInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// JoinPayload is sent by a client to enter a room.
type JoinPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// JoinedPayload confirms a join. Peers lists every other bound member, and
// ContentID carries the room's last-known content so late joiners catch up.
type JoinedPayload struct {
	RoomID    string       `json:"roomId"`
	Self      ClientInfo   `json:"self"`
	Peers     []ClientInfo `json:"peers"`
	ContentID string       `json:"contentId,omitempty"`
}

// LeavePayload is sent by a client to leave its room.
type LeavePayload struct {
	RoomID string `json:"roomId"`
}

// PeerJoinedPayload announces a new member to the rest of the room.
type PeerJoinedPayload struct {
	RoomID string     `json:"roomId"`
	Peer   ClientInfo `json:"peer"`
}

// PeerLeftPayload announces a departed member.
type PeerLeftPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// ChatSendPayload carries an outbound chat line.
type ChatSendPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// ChatMessagePayload is the fan-out form of a chat line.
type ChatMessagePayload struct {
	RoomID      string `json:"roomId"`
	FromUserID  string `json:"fromUserId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
	SentAtMs    int64  `json:"sentAtMs"`
}

// SetContentPayload selects what the room is watching.
type SetContentPayload struct {
	RoomID    string `json:"roomId"`
	ContentID string `json:"contentId"`
}

// ContentPayload is the fan-out form of a content change.
type ContentPayload struct {
	RoomID     string `json:"roomId"`
	ContentID  string `json:"contentId"`
	FromUserID string `json:"fromUserId"`
}

// PlaybackStatePayload is a playback snapshot. Receivers treat the most
// recently received snapshot as current truth; no history is kept.
type PlaybackStatePayload struct {
	RoomID      string  `json:"roomId"`
	Playing     bool    `json:"playing"`
	PositionSec float64 `json:"positionSec"`
	HostTsMs    int64   `json:"hostTsMs"`
	ContentID   string  `json:"contentId,omitempty"`
	FromUserID  string  `json:"fromUserId,omitempty"`
}

// SignalPayload carries offer/answer SDP or an ICE candidate between two
// peers. Clients address with ToUserID; the server rewrites to FromUserID
// before forwarding.
type SignalPayload struct {
	RoomID     string          `json:"roomId"`
	ToUserID   string          `json:"toUserId,omitempty"`
	FromUserID string          `json:"fromUserId,omitempty"`
	SDP        string          `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// UserUpdatePayload changes the sender's display name.
type UserUpdatePayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// UserUpdatedPayload is the fan-out form of a profile change.
type UserUpdatedPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// ReactionSendPayload carries an outbound reaction.
type ReactionSendPayload struct {
	RoomID string `json:"roomId"`
	Emoji  string `json:"emoji"`
}

// ReactionReceivedPayload is fanned out to the whole room, sender included,
// so the sender renders its own effect on the same path as everyone else.
type ReactionReceivedPayload struct {
	RoomID     string `json:"roomId"`
	FromUserID string `json:"fromUserId"`
	Emoji      string `json:"emoji"`
}

// HelloPayload greets a freshly upgraded connection.
type HelloPayload struct {
	ConnID  string `json:"connId"`
	Version int    `json:"version"`
}

// AckPayload is intentionally empty: the ack is addressed by the envelope's
// requestId alone.
type AckPayload struct{}

// ErrorPayload describes a handled failure. The connection survives it.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
