package signaling

import (
	"time"

	"github.com/im-anant/streeem/internal/protocol"
)

// Room holds the connections bound into one named room, keyed by user
// identity. A Room also remembers the last content id announced in it so a
// late joiner can catch up without a retroactive replay of anything else.
//
// Rooms are owned by the hub goroutine; none of this is safe for concurrent
// use from elsewhere.
type Room struct {
	ID        string
	conns     map[string]*Conn
	contentID string
	cleanup   *time.Timer
}

func newRoom(id string) *Room {
	return &Room{ID: id, conns: make(map[string]*Conn)}
}

func (r *Room) Bind(userID string, c *Conn) {
	r.conns[userID] = c
}

func (r *Room) Unbind(userID string) {
	delete(r.conns, userID)
}

func (r *Room) Get(userID string) (*Conn, bool) {
	c, ok := r.conns[userID]
	return c, ok
}

func (r *Room) Empty() bool {
	return len(r.conns) == 0
}

// Members returns the ClientInfo of every bound connection except the given
// identity.
func (r *Room) Members(exceptUserID string) []protocol.ClientInfo {
	members := make([]protocol.ClientInfo, 0, len(r.conns))
	for id, c := range r.conns {
		if id == exceptUserID || c.Info == nil {
			continue
		}
		members = append(members, *c.Info)
	}
	return members
}

// ScheduleCleanup arms the room's single-shot deletion timer, replacing any
// timer already pending. fn runs on the timer's own goroutine; it must
// re-enter the hub loop rather than touch room state directly.
func (r *Room) ScheduleCleanup(d time.Duration, fn func()) {
	r.CancelCleanup()
	r.cleanup = time.AfterFunc(d, fn)
}

// CancelCleanup disarms a pending deletion, if any. A rejoin during the grace
// window lands here.
func (r *Room) CancelCleanup() {
	if r.cleanup != nil {
		r.cleanup.Stop()
		r.cleanup = nil
	}
}

// Registry owns the set of rooms. Like Room it is single-writer: only the hub
// goroutine may call into it.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Room looks up an existing room.
func (g *Registry) Room(id string) (*Room, bool) {
	r, ok := g.rooms[id]
	return r, ok
}

// Ensure returns the room with the given id, creating it on first join.
// The second result reports whether the room was created by this call.
func (g *Registry) Ensure(id string) (*Room, bool) {
	if r, ok := g.rooms[id]; ok {
		return r, false
	}
	r := newRoom(id)
	g.rooms[id] = r
	return r, true
}

func (g *Registry) Delete(id string) {
	delete(g.rooms, id)
}

// Counts reports the number of rooms and bound connections.
func (g *Registry) Counts() (rooms, clients int) {
	rooms = len(g.rooms)
	for _, r := range g.rooms {
		clients += len(r.conns)
	}
	return rooms, clients
}
