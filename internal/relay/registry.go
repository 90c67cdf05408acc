package relay

import (
	"sync"

	"github.com/JINAY2910/RideMate-sub000/internal/auth"
	"github.com/JINAY2910/RideMate-sub000/internal/observability"
)

// Sink is the write side of a relay connection.
type Sink interface {
	WriteJSON(v any) error
	Close() error
}

// Session is one authenticated connection. The mutex serializes concurrent
// writes onto the underlying connection.
type Session struct {
	identity auth.Identity
	mu       sync.Mutex
	sink     Sink
}

func NewSession(identity auth.Identity, sink Sink) *Session {
	return &Session{identity: identity, sink: sink}
}

func (s *Session) Identity() auth.Identity { return s.identity }

func (s *Session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.WriteJSON(v)
}

// Registry tracks per-ride room membership. It is owned by the relay
// service, created at service start, and carries no persistent state: a
// restart simply starts with empty rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Session]struct{})}
}

// Join adds the session to the ride's room. Joining twice is a no-op.
func (r *Registry) Join(rideID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[rideID]
	if !ok {
		room = make(map[*Session]struct{})
		r.rooms[rideID] = room
	}
	room[s] = struct{}{}
	observability.RelayRooms.Set(float64(len(r.rooms)))
}

// Leave removes the session from one room, pruning the room when empty.
func (r *Registry) Leave(rideID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(rideID, s)
	observability.RelayRooms.Set(float64(len(r.rooms)))
}

// Drop removes the session from every room it belongs to.
func (r *Registry) Drop(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for rideID := range r.rooms {
		r.leaveLocked(rideID, s)
	}
	observability.RelayRooms.Set(float64(len(r.rooms)))
}

func (r *Registry) leaveLocked(rideID string, s *Session) {
	room, ok := r.rooms[rideID]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(r.rooms, rideID)
	}
}

// Members returns a snapshot of the ride's room.
func (r *Registry) Members(rideID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[rideID]
	out := make([]*Session, 0, len(room))
	for s := range room {
		out = append(out, s)
	}
	return out
}

// RoomCount reports the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
