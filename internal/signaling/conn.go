package signaling

import "github.com/im-anant/streeem/internal/protocol"

// CloseReplaced is the websocket close code sent to a connection whose
// (room, identity) binding was taken over by a newer connection. Distinct
// from normal closure so the old client can tell it was superseded rather
// than disconnected.
const CloseReplaced = 4001

// Transport is the write side of a client connection. The websocket
// implementation lives in ws.go; tests substitute their own.
type Transport interface {
	// Send queues an envelope for delivery. It must not block the caller.
	Send(env *protocol.Envelope) error

	// CloseWithCode closes the transport with an application close code.
	CloseWithCode(code int, reason string)

	Close() error
}

// Conn is the server-side state of one client connection: the transport
// handle plus, once joined, the room binding. A Conn exists for the lifetime
// of the underlying transport and is mutated only by the hub goroutine.
type Conn struct {
	ID        string
	Transport Transport

	// Info and RoomID are set on join and cleared on leave. At most one
	// room binding exists at a time.
	Info   *protocol.ClientInfo
	RoomID string
}

// Joined reports whether the connection is bound into a room.
func (c *Conn) Joined() bool {
	return c.RoomID != "" && c.Info != nil
}
