package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wtask/relay/internal/relay/broker"
)

// ServerOption - configures Server on construction.
type ServerOption func(s *Server) error

// WithLogger - attach logger to the server and its connections.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("relay.WithLogger: logger is nil")
		}
		s.logger = logger
		s.connOptions = append(s.connOptions, broker.WithLogger(logger))
		return nil
	}
}

// WithIdleTimeout - drops clients which are silent longer than timeout, zero disables.
func WithIdleTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) error {
		if timeout < 0 {
			return fmt.Errorf("relay.WithIdleTimeout: invalid timeout (%v)", timeout)
		}
		s.connOptions = append(s.connOptions, broker.WithIdleTimeout(timeout))
		return nil
	}
}

// WithWriteTimeout - limits writing to a client, zero disables.
func WithWriteTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) error {
		if timeout < 0 {
			return fmt.Errorf("relay.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		s.connOptions = append(s.connOptions, broker.WithWriteTimeout(timeout))
		return nil
	}
}

// WithMaxLineSize - limits size of incoming message line.
func WithMaxLineSize(size int) ServerOption {
	return func(s *Server) error {
		if size <= 0 {
			return fmt.Errorf("relay.WithMaxLineSize: invalid size (%d)", size)
		}
		s.connOptions = append(s.connOptions, broker.WithMaxLineSize(size))
		return nil
	}
}

// WithInboxSize - buffer size of the inbound queue shared by all clients.
func WithInboxSize(size int) ServerOption {
	return func(s *Server) error {
		if size < 0 {
			return fmt.Errorf("relay.WithInboxSize: invalid size (%d)", size)
		}
		s.inboxSize = size
		return nil
	}
}

// WithMessageHistory - keeps relayed Text messages in h and pushes
// the latest greets of them to every newly connected client.
func WithMessageHistory(h MessageHistory, greets int) ServerOption {
	return func(s *Server) error {
		if h == nil {
			return errors.New("relay.WithMessageHistory: history is nil")
		}
		if greets < 0 {
			return fmt.Errorf("relay.WithMessageHistory: invalid greets (%d)", greets)
		}
		s.history = h
		s.greets = greets
		return nil
	}
}

// WithBridge - federates the server with other instances.
func WithBridge(b Bridge) ServerOption {
	return func(s *Server) error {
		if b == nil {
			return errors.New("relay.WithBridge: bridge is nil")
		}
		s.bridge = b
		return nil
	}
}
