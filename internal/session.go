package internal

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"binchat/internal/protocol"
)

// handleConnection drives one session through
// connecting, active, closing and closed.
func (s *Server) handleConnection(conn net.Conn) {
	sess := newSession(conn, s.outboxSize)
	log.Printf("Accepted connection %s from %s", sess.id, conn.RemoteAddr())

	name, err := s.handshake(sess)
	if err != nil {
		log.Printf("Session %s: handshake failed: %v", sess.id, err)
		sess.setState(StateClosed)
		conn.Close()
		return
	}
	sess.name = name
	sess.joinTime = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeLoop(sess)
	}()

	s.join(sess)
	s.readLoop(sess)
	s.closeSession(sess)
}

// handshake waits for the Connect frame and returns the proposed name.
func (s *Server) handshake(sess *Session) (string, error) {
	s.armIdle(sess.conn)
	msg, err := protocol.ReadFrame(sess.conn)
	if err != nil {
		return "", err
	}
	connect, ok := msg.(protocol.Connect)
	if !ok {
		return "", fmt.Errorf("expected %s frame, got %s", protocol.KindConnect, msg.Kind())
	}
	return connect.Name, nil
}

func (s *Server) join(sess *Session) {
	sess.setState(StateActive)
	s.registry.Register(sess)

	log.Printf("User %s joined the room (session %s)", sess.name, sess.id)
	s.logActivity("User joined: " + sess.name)

	s.registry.BroadcastExcept(protocol.Public{Sender: SystemName, Content: joinedNotice(sess.name)}, sess.conn)
	s.registry.BroadcastRoster()
}

// readLoop dispatches inbound frames until the client leaves or the
// transport fails.
func (s *Server) readLoop(sess *Session) {
	for {
		s.armIdle(sess.conn)
		msg, err := protocol.ReadFrame(sess.conn)
		if err != nil {
			if protocol.IsProtocolError(err) {
				log.Printf("Session %s (%s): ignoring frame: %v", sess.id, sess.name, err)
				continue
			}
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				log.Printf("Client '%s' timed out", sess.name)
			case errors.Is(err, io.EOF), !s.running.Load():
				log.Printf("Client '%s' disconnected", sess.name)
			default:
				log.Printf("Client '%s' disconnected: %v", sess.name, err)
			}
			return
		}

		switch m := msg.(type) {
		case protocol.Public:
			log.Printf("Public message from %s: %s", m.Sender, m.Content)
			s.registry.Broadcast(m)
		case protocol.Private:
			log.Printf("Private message from %s to %s", m.Sender, m.Target)
			if !s.registry.Unicast(m.Target, m) {
				log.Printf("Private message target %q not found, dropped", m.Target)
			}
		case protocol.Disconnect:
			log.Printf("Client %s requested disconnect", sess.name)
			return
		default:
			log.Printf("Session %s (%s): unexpected %s frame ignored", sess.id, sess.name, msg.Kind())
		}
	}
}

// writeLoop drains the session outbox onto the transport.
func (s *Server) writeLoop(sess *Session) {
	for {
		select {
		case frame := <-sess.outbox:
			if s.writeTimeout > 0 {
				sess.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if _, err := sess.conn.Write(frame); err != nil {
				log.Printf("Session %s (%s): write failed: %v", sess.id, sess.name, err)
				// unblocks the reader, which closes the session
				sess.conn.Close()
				return
			}
		case <-sess.done:
			return
		}
	}
}

// closeSession deregisters sess, announces the departure once and
// releases the transport. Calling it again is a no-op.
func (s *Server) closeSession(sess *Session) {
	sess.closeOnce.Do(func() {
		sess.setState(StateClosing)

		name, ok := s.registry.Deregister(sess.conn)
		if ok && s.running.Load() {
			log.Printf("User '%s' left the chat", name)
			s.logActivity("User left: " + name)
			s.registry.Broadcast(protocol.Public{Sender: SystemName, Content: leftNotice(name)})
			s.registry.BroadcastRoster()
		}

		close(sess.done)
		sess.conn.Close()
		sess.setState(StateClosed)
	})
}

func (s *Server) armIdle(conn net.Conn) {
	if s.idleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	}
}
