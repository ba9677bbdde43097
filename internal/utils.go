package internal

import (
	"fmt"
	"time"
)

func joinedNotice(name string) string {
	return fmt.Sprintf("%s joined the chat", name)
}

func leftNotice(name string) string {
	return fmt.Sprintf("%s left the chat", name)
}

func formatActivity(t time.Time, message string) string {
	return fmt.Sprintf("[%s] %s", t.Format("2006-01-02 15:04:05"), message)
}

func (s *Server) logActivity(message string) {
	line := formatActivity(time.Now(), message)

	s.logMu.Lock()
	if s.Logfile != nil {
		fmt.Fprintln(s.Logfile, line)
	}
	hooks := s.hooks
	s.logMu.Unlock()

	for _, hook := range hooks {
		hook(line)
	}
}

func (s *Server) closeLog() {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.Logfile != nil {
		s.Logfile.Close()
		s.Logfile = nil
	}
}
