package internal

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SystemName is the sender of server generated notices.
const SystemName = "System"

// DefaultPort is the listen port used when none is configured.
const DefaultPort = "65432"

// SessionState tracks a connection from accept to close.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session represents a connected chat client
type Session struct {
	id       uuid.UUID
	conn     net.Conn
	name     string
	joinTime time.Time
	state    atomic.Int32

	// outbox is drained by the session writer; it is never closed,
	// done signals the writer to stop.
	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn net.Conn, outboxSize int) *Session {
	return &Session{
		id:     uuid.New(),
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Name returns the display name given in the handshake.
func (s *Session) Name() string { return s.name }

// Conn returns the transport handle the session is registered under.
func (s *Session) Conn() net.Conn { return s.conn }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

func (s *Session) setState(st SessionState) { s.state.Store(int32(st)) }

// enqueue hands a frame to the writer without blocking.
// It reports false when the outbox is full or the session is finished.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- frame:
		return true
	default:
		return false
	}
}
