package internal

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"binchat/internal/protocol"
	"binchat/internal/wsconn"
)

// Server represents the chat server
type Server struct {
	registry *Registry
	running  atomic.Bool
	stopped  bool

	mutex    sync.Mutex
	listener net.Listener
	web      *http.Server
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	accepted chan struct{}

	host         string
	port         string
	idleTimeout  time.Duration
	writeTimeout time.Duration
	outboxSize   int
	maxClients   int
	logPath      string

	logMu   sync.Mutex
	hooks   []func(string)
	Logfile *os.File
}

// Option configures a Server.
type Option func(s *Server)

// WithHost sets the listen address. Empty means all interfaces.
func WithHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithIdleTimeout disconnects clients silent for longer than d.
// Zero keeps idle clients forever.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithWriteTimeout bounds every frame write. Zero disables the bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// WithOutboxSize sets how many frames may wait for a slow client
// before it is considered stalled and dropped.
func WithOutboxSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.outboxSize = n
		}
	}
}

// WithMaxClients refuses connections above n active sessions. Zero means no limit.
func WithMaxClients(n int) Option {
	return func(s *Server) { s.maxClients = n }
}

// WithLogFile sets the activity log path. Empty disables the activity log.
func WithLogFile(path string) Option {
	return func(s *Server) { s.logPath = path }
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		registry:     NewRegistry(),
		conns:        make(map[net.Conn]struct{}),
		accepted:     make(chan struct{}),
		writeTimeout: 10 * time.Second,
		outboxSize:   64,
		logPath:      "chat.log",
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logPath != "" {
		Logfile, err := os.OpenFile(s.logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("Error opening log file: %v", err)
		} else {
			s.Logfile = Logfile
		}
	}
	return s
}

// Registry exposes the session table, mainly for monitoring.
func (s *Server) Registry() *Registry { return s.registry }

// Running reports whether the server accepts connections.
func (s *Server) Running() bool { return s.running.Load() }

// Port returns the port given to Start.
func (s *Server) Port() string { return s.port }

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// OnActivity registers fn to receive every activity log line.
func (s *Server) OnActivity(fn func(string)) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Start listens on port and accepts connections in the background.
// Port "0" picks a free port, see Addr.
func (s *Server) Start(port string) error {
	if portNum, err := strconv.Atoi(port); err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("%w: invalid port %q", ErrBind, port)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stopped || s.running.Load() {
		return ErrServerStopped
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListen, err)
	}
	s.listener = listener
	s.port = port
	s.running.Store(true)

	log.Printf("Listening on %s", listener.Addr())
	s.logActivity("Server started on port " + port)

	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer close(s.accepted)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		if s.maxClients > 0 && s.registry.Len() >= s.maxClients {
			log.Printf("Chat is full, refusing %s", conn.RemoteAddr())
			conn.Close()
			continue
		}

		s.serveConn(conn)
	}
}

// serveConn runs a session for conn in its own goroutine.
func (s *Server) serveConn(conn net.Conn) {
	s.mutex.Lock()
	if !s.running.Load() {
		s.mutex.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mutex.Unlock()

	go func() {
		defer func() {
			s.mutex.Lock()
			delete(s.conns, conn)
			s.mutex.Unlock()
			s.wg.Done()
		}()
		s.handleConnection(conn)
	}()
}

// Wait blocks until the accept loop has ended.
func (s *Server) Wait() {
	s.mutex.Lock()
	started := s.listener != nil
	s.mutex.Unlock()
	if started {
		<-s.accepted
	}
}

// Stop closes the listener and every connection, then clears the registry.
// In-flight frames may be lost.
func (s *Server) Stop() {
	s.mutex.Lock()
	if !s.running.CompareAndSwap(true, false) {
		s.mutex.Unlock()
		s.closeLog()
		return
	}
	s.stopped = true
	s.listener.Close()
	if s.web != nil {
		s.web.Close()
	}
	s.mutex.Unlock()

	s.registry.CloseAll()

	// sessions still in the handshake are not registered yet
	s.mutex.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mutex.Unlock()

	s.wg.Wait()
	<-s.accepted

	log.Println("Server stopped")
	s.logActivity("Server stopped")
	s.closeLog()
}

// Announce sends a public notice from SystemName to every session.
func (s *Server) Announce(text string) {
	s.registry.Broadcast(protocol.Public{Sender: SystemName, Content: text})
	s.logActivity("Announcement: " + text)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades requests and serves them as chat sessions
// speaking the same binary frames, one frame per WebSocket message.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
			return
		}
		s.serveConn(wsconn.New(ws))
	})
}

// ServeWebSocket starts the WebSocket gateway on addr, path /ws.
// The server must be started first.
func (s *Server) ServeWebSocket(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListen, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", s.WebSocketHandler())
	web := &http.Server{Handler: mux}

	s.mutex.Lock()
	if !s.running.Load() {
		s.mutex.Unlock()
		listener.Close()
		return ErrServerStopped
	}
	s.web = web
	s.mutex.Unlock()

	log.Printf("WebSocket gateway on ws://%s/ws", listener.Addr())
	go func() {
		if err := web.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WebSocket gateway error: %v", err)
		}
	}()
	return nil
}
