package client

import (
	"sync"

	"binchat/internal/protocol"
)

// EventKind tags a presentation event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventPublicMessage
	EventPrivateMessage
	EventUserListUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventPublicMessage:
		return "public"
	case EventPrivateMessage:
		return "private"
	case EventUserListUpdate:
		return "userlist"
	default:
		return "unknown"
	}
}

// Event is a decoded frame ready for the presentation layer.
type Event struct {
	Kind   EventKind
	Sender string
	Target string
	Text   string
	Users  []string
}

// eventFrom maps an inbound frame to an event.
// Frames a server never sends to clients yield false.
func eventFrom(m protocol.Message) (Event, bool) {
	switch m := m.(type) {
	case protocol.Public:
		return Event{Kind: EventPublicMessage, Sender: m.Sender, Text: m.Content}, true
	case protocol.Private:
		return Event{Kind: EventPrivateMessage, Sender: m.Sender, Target: m.Target, Text: m.Content}, true
	case protocol.UserList:
		return Event{Kind: EventUserListUpdate, Users: m.Users}, true
	default:
		return Event{}, false
	}
}

// EventQueue is an ordered queue with a single consumer.
// Push and Drain never block on each other for longer than a slice copy.
type EventQueue struct {
	mu     sync.Mutex
	events []Event
}

// Push appends ev.
func (q *EventQueue) Push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
}

// Drain removes and returns every queued event in arrival order.
// It returns nil when the queue is empty.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	events := q.events
	q.events = nil
	return events
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
