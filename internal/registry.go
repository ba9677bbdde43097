package internal

import (
	"log"
	"net"
	"sync"

	"binchat/internal/protocol"
)

// Registry holds the active sessions keyed by their transport handle.
//
// Every operation holds the lock for its whole duration, so a broadcast
// observes one consistent snapshot. Sends only enqueue into the session
// outboxes and never block on the network.
type Registry struct {
	mu       sync.RWMutex
	sessions map[net.Conn]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[net.Conn]*Session)}
}

// Register adds s under its connection. Names are not required to be unique.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.sessions {
		if other.name == s.name {
			log.Printf("warning: duplicate name %q (sessions %s and %s)", s.name, other.id, s.id)
			break
		}
	}
	r.sessions[s.conn] = s
}

// Deregister removes the session kept for conn and returns its name.
// ok is false when conn was not registered, so a departure is announced once.
func (r *Registry) Deregister(conn net.Conn) (name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conn]
	if !ok {
		return "", false
	}
	delete(r.sessions, conn)
	return s.name, true
}

// Broadcast sends msg to every registered session.
func (r *Registry) Broadcast(msg protocol.Message) {
	r.BroadcastExcept(msg, nil)
}

// BroadcastExcept sends msg to every registered session but the one kept for exclude.
func (r *Registry) BroadcastExcept(msg protocol.Message, exclude net.Conn) {
	frame := protocol.Encode(msg)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for conn, s := range r.sessions {
		if conn != exclude {
			r.deliver(s, frame)
		}
	}
}

// BroadcastRoster sends the current roster to every registered session.
// Snapshot and delivery happen under the same lock.
func (r *Registry) BroadcastRoster() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frame := protocol.Encode(protocol.UserList{Users: r.roster()})
	for _, s := range r.sessions {
		r.deliver(s, frame)
	}
}

// Unicast sends msg to the first session named name.
// It reports whether a session was found.
func (r *Registry) Unicast(name string, msg protocol.Message) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.name == name {
			r.deliver(s, protocol.Encode(msg))
			return true
		}
	}
	return false
}

// Roster returns up to protocol.MaxUsers names in iteration order.
func (r *Registry) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roster()
}

func (r *Registry) roster() []string {
	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		if len(names) == protocol.MaxUsers {
			break
		}
		names = append(names, s.name)
	}
	return names
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every registered transport and clears the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn, s := range r.sessions {
		s.setState(StateClosing)
		conn.Close()
		delete(r.sessions, conn)
	}
}

// deliver must be called with the lock held.
// A session that cannot take the frame is stalled and gets dropped.
func (r *Registry) deliver(s *Session, frame []byte) {
	if s.enqueue(frame) {
		return
	}
	if s.State() == StateActive {
		log.Printf("session %s (%s): outbox full, dropping connection", s.id, s.name)
		go s.conn.Close()
	}
}
