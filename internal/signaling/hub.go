package signaling

import (
	"context"
	"log/slog"
	"time"

	"github.com/im-anant/streeem/internal/metrics"
	"github.com/im-anant/streeem/internal/protocol"
)

// DefaultGracePeriod is how long an empty room survives before deletion.
const DefaultGracePeriod = 30 * time.Second

// Config tunes a Hub.
type Config struct {
	// GracePeriod is the empty-room deletion delay. Zero means
	// DefaultGracePeriod.
	GracePeriod time.Duration

	// Collector receives server metrics. Nil means none.
	Collector metrics.Collector
}

// Stats is a point-in-time view of the hub for the /stats route.
type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
}

type inboundMessage struct {
	conn *Conn
	data []byte
}

// Hub owns the room registry. All registry mutation and broadcast iteration
// happens on the single goroutine running Run, so each inbound message is
// fully applied before the next one is looked at: no peer ever observes a
// partially-applied room mutation. Everything below the channel receives is
// therefore lock-free.
type Hub struct {
	registry  *Registry
	router    *Router
	grace     time.Duration
	collector metrics.Collector

	inbound chan inboundMessage
	closed  chan *Conn
	expired chan string
	statsCh chan chan Stats
	lookups chan roomLookup
}

type roomLookup struct {
	roomID string
	reply  chan bool
}

func NewHub(cfg Config) *Hub {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Collector == nil {
		cfg.Collector = metrics.Noop{}
	}
	registry := NewRegistry()
	return &Hub{
		registry:  registry,
		router:    NewRouter(registry, cfg.Collector),
		grace:     cfg.GracePeriod,
		collector: cfg.Collector,
		inbound:   make(chan inboundMessage, 64),
		closed:    make(chan *Conn, 16),
		expired:   make(chan string, 16),
		statsCh:   make(chan chan Stats),
		lookups:   make(chan roomLookup),
	}
}

// Run processes hub events until ctx is cancelled. Exactly one goroutine may
// run it.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-h.inbound:
			h.Dispatch(m.conn, m.data)
		case c := <-h.closed:
			h.HandleClose(c)
		case id := <-h.expired:
			h.HandleExpired(id)
		case reply := <-h.statsCh:
			rooms, clients := h.registry.Counts()
			reply <- Stats{Rooms: rooms, Clients: clients}
		case lookup := <-h.lookups:
			_, ok := h.registry.Room(lookup.roomID)
			lookup.reply <- ok
		}
	}
}

// Enqueue hands a raw inbound frame to the hub loop. Called by read pumps.
func (h *Hub) Enqueue(c *Conn, data []byte) {
	h.inbound <- inboundMessage{conn: c, data: data}
}

// ConnOpened records a freshly upgraded connection.
func (h *Hub) ConnOpened() {
	h.collector.ClientConnected()
}

// ConnClosed notifies the hub that a transport died. Called by read pumps on
// exit.
func (h *Hub) ConnClosed(c *Conn) {
	h.closed <- c
}

// Stats asks the hub loop for current counts.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	h.statsCh <- reply
	return <-reply
}

// RoomExists asks the hub loop whether a room is live.
func (h *Hub) RoomExists(roomID string) bool {
	reply := make(chan bool, 1)
	h.lookups <- roomLookup{roomID: roomID, reply: reply}
	return <-reply
}

// join binds c into the room, creating the room on first join and replacing
// any prior connection already bound to the same identity. Returns the join
// confirmation for c.
func (h *Hub) join(c *Conn, p protocol.JoinPayload) *protocol.JoinedPayload {
	// A connection switching rooms leaves its old one first; there is no
	// multi-room membership.
	if c.Joined() {
		h.leave(c)
	}

	room, created := h.registry.Ensure(p.RoomID)
	if created {
		h.collector.RoomCreated()
		slog.Info("room created", "room", p.RoomID)
	}
	room.CancelCleanup()

	// Same identity, new socket: the old connection is force-closed with
	// the replaced code strictly before the new one is registered.
	if prev, ok := room.Get(p.UserID); ok && prev != c {
		prev.RoomID = ""
		prev.Info = nil
		room.Unbind(p.UserID)
		prev.Transport.CloseWithCode(CloseReplaced, "replaced by a newer connection")
		slog.Info("connection replaced", "room", p.RoomID, "userId", p.UserID)
	}

	c.Info = &protocol.ClientInfo{UserID: p.UserID, DisplayName: p.DisplayName}
	c.RoomID = p.RoomID
	room.Bind(p.UserID, c)

	peers := room.Members(p.UserID)
	slog.Info("client joined", "room", p.RoomID, "userId", p.UserID, "clients", len(room.conns))

	h.router.BroadcastToRoom(p.RoomID, protocol.MustNew(protocol.TypeRoomPeerJoined, protocol.PeerJoinedPayload{
		RoomID: p.RoomID,
		Peer:   *c.Info,
	}), p.UserID)

	return &protocol.JoinedPayload{
		RoomID:    p.RoomID,
		Self:      *c.Info,
		Peers:     peers,
		ContentID: room.contentID,
	}
}

// leave unbinds c from its room, tells the rest of the room, and arms the
// empty-room cleanup timer when c was the last one out.
func (h *Hub) leave(c *Conn) {
	if !c.Joined() {
		return
	}
	roomID, userID := c.RoomID, c.Info.UserID
	c.RoomID = ""
	c.Info = nil

	room, ok := h.registry.Room(roomID)
	if !ok {
		return
	}
	if bound, ok := room.Get(userID); !ok || bound != c {
		// Already replaced by a newer connection; nothing to unbind.
		return
	}
	room.Unbind(userID)
	slog.Info("client left", "room", roomID, "userId", userID, "clients", len(room.conns))

	h.router.BroadcastToRoom(roomID, protocol.MustNew(protocol.TypeRoomPeerLeft, protocol.PeerLeftPayload{
		RoomID: roomID,
		UserID: userID,
	}), "")

	if room.Empty() {
		room.ScheduleCleanup(h.grace, func() {
			h.expired <- roomID
		})
	}
}

// HandleClose runs the leave path for a dead transport, using the
// connection's last bound room and identity.
func (h *Hub) HandleClose(c *Conn) {
	h.leave(c)
	h.collector.ClientDisconnected()
}

// HandleExpired deletes a room whose grace period elapsed, unless someone
// rejoined in the interim.
func (h *Hub) HandleExpired(roomID string) {
	room, ok := h.registry.Room(roomID)
	if !ok || !room.Empty() {
		return
	}
	h.registry.Delete(roomID)
	h.collector.RoomDeleted()
	slog.Info("room removed", "room", roomID)
}
