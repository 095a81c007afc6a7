package protocol

import (
	"encoding/json"
	"errors"
)

// Version is the wire protocol version carried in every envelope.
const Version = 1

// Message type constants. The set is closed: anything else is rejected at the
// channel boundary with a bad_request error.
const (
	TypeRoomJoin       = "room/join"
	TypeRoomLeave      = "room/leave"
	TypeRoomJoined     = "room/joined"
	TypeRoomPeerJoined = "room/peer_joined"
	TypeRoomPeerLeft   = "room/peer_left"

	TypeChatSend    = "chat/send"
	TypeChatMessage = "chat/message"

	TypeWatchSetContent    = "watch/set_content"
	TypeWatchContent       = "watch/content"
	TypeWatchPlaybackState = "watch/playback_state"

	TypeWebRTCOffer  = "webrtc/offer"
	TypeWebRTCAnswer = "webrtc/answer"
	TypeWebRTCICE    = "webrtc/ice"

	TypeUserUpdate  = "user/update"
	TypeUserUpdated = "user/updated"

	TypeReactionSend     = "reaction/send"
	TypeReactionReceived = "reaction/received"

	TypeServerHello = "server/hello"
	TypeAck         = "ack"
	TypeError       = "error"
)

// Error codes surfaced in error envelopes. The set is closed.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeNotInRoom    = "not_in_room"
	CodeRoomNotFound = "room_not_found"
	CodePeerNotFound = "peer_not_found"
	CodeInternal     = "internal"
)

var (
	ErrBadVersion     = errors.New("protocol version mismatch")
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingPayload = errors.New("missing payload")
)

// clientTypes is the set of message types a client may send. Server-to-client
// types arriving inbound are rejected like any other unknown type.
var clientTypes = map[string]bool{
	TypeRoomJoin:           true,
	TypeRoomLeave:          true,
	TypeChatSend:           true,
	TypeWatchSetContent:    true,
	TypeWatchPlaybackState: true,
	TypeWebRTCOffer:        true,
	TypeWebRTCAnswer:       true,
	TypeWebRTCICE:          true,
	TypeUserUpdate:         true,
	TypeReactionSend:       true,
}

// Envelope wraps every message in both directions.
type Envelope struct {
	V         int             `json:"v"`
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ValidateInbound checks envelope shape for a client-to-server message:
// matching version, known type tag, payload present. It does not look inside
// the payload; each handler decodes its own variant exactly once.
func (e *Envelope) ValidateInbound() error {
	if e.V != Version {
		return ErrBadVersion
	}
	if !clientTypes[e.Type] {
		return ErrUnknownType
	}
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return ErrMissingPayload
	}
	return nil
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// New builds an envelope of the given type around payload.
func New(msgType string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{V: Version, Type: msgType, Payload: raw}, nil
}

// MustNew is New for payloads that cannot fail to marshal (our own structs).
func MustNew(msgType string, payload any) *Envelope {
	env, err := New(msgType, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// NewError builds an error envelope. requestID may be empty when the
// offending message carried no correlation identifier.
func NewError(code, message, requestID string) *Envelope {
	env := MustNew(TypeError, ErrorPayload{Code: code, Message: message})
	env.RequestID = requestID
	return env
}

// NewAck builds the transport-level "received" acknowledgement for a request.
func NewAck(requestID string) *Envelope {
	env := MustNew(TypeAck, AckPayload{})
	env.RequestID = requestID
	return env
}
