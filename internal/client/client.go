// Package client is the client side of the chat protocol.
//
// A Client owns the connection and a background receiver which turns
// inbound frames into Events. The presentation layer drains the Events
// queue on its own schedule and feeds them into a Conversation.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"binchat/internal/protocol"
	"binchat/internal/wsconn"
)

var (
	// ErrNotConnected - the operation needs an established connection.
	ErrNotConnected = errors.New("client: not connected")
	// ErrAlreadyConnected - Connect was called on a connected client.
	ErrAlreadyConnected = errors.New("client: already connected")
)

// Notifier is signalled for every inbound event from another user.
// It runs in its own goroutine; ctx is cancelled on disconnect.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Client is one chat connection.
type Client struct {
	// Events receives everything the presentation layer has to show.
	Events *EventQueue

	notifier    Notifier
	dialTimeout time.Duration

	mu       sync.Mutex
	conn     net.Conn
	username string
	received chan struct{}

	wmu     sync.Mutex
	running atomic.Bool
}

// Option configures a Client.
type Option func(c *Client)

// WithNotifier sets the notifier for inbound messages.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithDialTimeout bounds Connect. Zero means no bound.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// New returns a disconnected client.
func New(opts ...Option) *Client {
	c := &Client{
		Events:      &EventQueue{},
		dialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server over TCP and performs the handshake as name.
func (c *Client) Connect(address string, port int, name string) error {
	if c.running.Load() {
		return ErrAlreadyConnected
	}
	addr := net.JoinHostPort(address, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("client: connect %s: %w", addr, err)
	}
	return c.attach(conn, name)
}

// ConnectURL dials the server WebSocket gateway, e.g. ws://host:port/ws.
func (c *Client) ConnectURL(url string, name string) error {
	if c.running.Load() {
		return ErrAlreadyConnected
	}
	conn, err := wsconn.Dial(url)
	if err != nil {
		return fmt.Errorf("client: connect %s: %w", url, err)
	}
	return c.attach(conn, name)
}

func (c *Client) attach(conn net.Conn, name string) error {
	if err := protocol.WriteFrame(conn, protocol.Connect{Name: name}); err != nil {
		conn.Close()
		return fmt.Errorf("client: handshake: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.username = protocol.Truncate(name, protocol.NameSize)
	c.received = received
	c.mu.Unlock()

	c.running.Store(true)
	c.Events.Push(Event{Kind: EventConnected, Sender: c.username})

	go c.receive(ctx, cancel, conn, received)
	return nil
}

// Username returns the name used in the last handshake.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Connected reports whether the receiver is running.
func (c *Client) Connected() bool { return c.running.Load() }

// Disconnect announces the leave, closes the connection and waits for the
// receiver to finish. It is a no-op when not connected.
func (c *Client) Disconnect() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.mu.Lock()
	conn, received := c.conn, c.received
	c.mu.Unlock()

	c.wmu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	protocol.WriteFrame(conn, protocol.Disconnect{})
	c.wmu.Unlock()

	conn.Close()
	<-received
}

// SendPublic sends text to every connected user, the sender included.
func (c *Client) SendPublic(text string) error {
	return c.send(protocol.Public{Sender: c.Username(), Content: text})
}

// SendPrivate sends text to target only. The server does not echo private
// messages, so the outgoing message is queued locally as an event.
func (c *Client) SendPrivate(target, text string) error {
	name := c.Username()
	if err := c.send(protocol.Private{Sender: name, Target: target, Content: text}); err != nil {
		return err
	}
	c.Events.Push(Event{
		Kind:   EventPrivateMessage,
		Sender: name,
		Target: protocol.Truncate(target, protocol.NameSize),
		Text:   protocol.Truncate(text, protocol.ContentSize),
	})
	return nil
}

func (c *Client) send(m protocol.Message) error {
	if !c.running.Load() {
		return ErrNotConnected
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.WriteFrame(conn, m); err != nil {
		return fmt.Errorf("client: send %s: %w", m.Kind(), err)
	}
	return nil
}

// receive turns inbound frames into events until the transport fails.
func (c *Client) receive(ctx context.Context, cancel context.CancelFunc, conn net.Conn, received chan<- struct{}) {
	defer close(received)

	self := c.Username()
	for {
		msg, err := protocol.ReadFrame(conn)
		if err != nil {
			if protocol.IsProtocolError(err) {
				continue
			}
			reason := "Disconnected from server"
			if c.running.Swap(false) {
				reason = "Connection lost"
			}
			c.Events.Push(Event{Kind: EventDisconnected, Text: reason})
			cancel()
			conn.Close()
			return
		}

		ev, ok := eventFrom(msg)
		if !ok {
			continue
		}
		c.Events.Push(ev)

		if c.notifier != nil && ev.Sender != self {
			go c.notifier.Notify(ctx, ev)
		}
	}
}
