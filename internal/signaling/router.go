package signaling

import (
	"errors"
	"log/slog"

	"github.com/im-anant/streeem/internal/metrics"
	"github.com/im-anant/streeem/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrPeerNotFound = errors.New("peer not found")
)

// Router delivers outbound envelopes to room members. It reads the registry
// and therefore runs only on the hub goroutine, which also guarantees the
// member set cannot change mid-iteration.
type Router struct {
	registry  *Registry
	collector metrics.Collector
}

func NewRouter(registry *Registry, collector metrics.Collector) *Router {
	return &Router{registry: registry, collector: collector}
}

// BroadcastToRoom delivers env to every bound connection in the room. When
// exceptUserID is non-empty that one member is skipped. Send failures are
// best-effort: logged, and the dead transport is closed so its read pump
// drives the normal leave path.
func (rt *Router) BroadcastToRoom(roomID string, env *protocol.Envelope, exceptUserID string) {
	room, ok := rt.registry.Room(roomID)
	if !ok {
		return
	}

	delivered := 0
	for userID, conn := range room.conns {
		if userID == exceptUserID {
			continue
		}
		if err := conn.Transport.Send(env); err != nil {
			slog.Warn("broadcast send failed", "room", roomID, "userId", userID, "error", err)
			conn.Transport.Close()
			continue
		}
		delivered++
	}
	rt.collector.MessageDelivered(env.Type, delivered)
}

// RelayToPeer delivers env to exactly one named member of the room. A missing
// room or target is reported to the caller, never silently dropped.
func (rt *Router) RelayToPeer(roomID, fromUserID, toUserID string, env *protocol.Envelope) error {
	room, ok := rt.registry.Room(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	target, ok := room.Get(toUserID)
	if !ok {
		return ErrPeerNotFound
	}
	if err := target.Transport.Send(env); err != nil {
		slog.Warn("relay send failed", "room", roomID, "from", fromUserID, "to", toUserID, "error", err)
		target.Transport.Close()
		return ErrPeerNotFound
	}
	rt.collector.MessageDelivered(env.Type, 1)
	return nil
}
