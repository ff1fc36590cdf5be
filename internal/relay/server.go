// Package relay implements the relay server: it accepts clients and rebroadcasts
// every message of a client to all other clients.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/wtask/relay/internal/relay/broker"
	"github.com/wtask/relay/internal/relay/message"
	"github.com/wtask/relay/pkg/background"
)

// Bridge - link to other relay instances.
type Bridge interface {
	// Publish - sends locally originated data message to other instances
	Publish(message.Message) error
	// Subscribe - delivers data messages of other instances
	Subscribe(handler func(message.Message)) error
}

// Server - relay server over any net.Listener implementation.
type Server struct {
	logger      *slog.Logger
	connOptions []broker.Option
	inboxSize   int
	history     MessageHistory
	greets      int
	bridge      Bridge

	inbox    *broker.Inbox
	registry *broker.Registry

	mu       sync.Mutex
	launched bool
	cancel   context.CancelFunc
	done     chan struct{}
	drained  []*broker.Connection
}

// NewServer - creates new relay server which is ready to serve a single listener.
func NewServer(options ...ServerOption) (*Server, error) {
	s := &Server{
		logger:    discardLogger(),
		inboxSize: 64,
		done:      make(chan struct{}),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return nil, err
		}
	}
	s.inbox = broker.NewInbox(s.inboxSize)
	registry, err := broker.NewRegistry(s.inbox, s.connOptions...)
	if err != nil {
		return nil, fmt.Errorf("relay.NewServer: can't build registry: %w", err)
	}
	s.registry = registry
	return s, nil
}

// Registry - connections of the server.
func (s *Server) Registry() *broker.Registry {
	return s.registry
}

// Serve - accepts connections on listener and routes their messages until ctx is done,
// Shutdown is called or routing fails. Listener is closed on return.
// Returns nil for orderly stop and the routing (or accepting) error otherwise.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("relay.Server: net listener is nil")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.launched {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.launched = true
	s.cancel = cancel
	s.mu.Unlock()
	scope, stopScope := background.NewScope(ctx)
	defer stopScope()
	defer close(s.done)

	if s.bridge != nil {
		err := s.bridge.Subscribe(func(m message.Message) {
			if err := s.inbox.Push(scope.Context(), broker.Envelope{ID: broker.NoConnection, Message: m}); err != nil {
				s.logger.Debug("bridged message dropped", "error", err)
			}
		})
		if err != nil {
			listener.Close()
			s.stop()
			return fmt.Errorf("relay.Server: can't subscribe bridge: %w", err)
		}
	}

	s.logger.Info("relay started", "address", listener.Addr().String())
	scope.Go(func(ctx context.Context) error {
		<-ctx.Done()
		// stops both accept and dispatch loops
		listener.Close()
		s.inbox.Close()
		return nil
	})
	scope.Go(func(ctx context.Context) error {
		return s.acceptLoop(ctx, listener)
	})
	scope.Go(func(ctx context.Context) error {
		return s.dispatchLoop(ctx)
	})

	err := scope.Wait()
	s.stop()
	if err != nil {
		s.logger.Error("relay stopped", "error", err)
	} else {
		s.logger.Info("relay stopped")
	}
	return err
}

// stop - disconnects all clients, keeps them to wait on Shutdown.
func (s *Server) stop() {
	drained := s.registry.DisconnectAll()
	s.mu.Lock()
	s.drained = drained
	s.mu.Unlock()
}

// Shutdown - stops server with the specified timeout and returns stopping duration.
// Clients which did not finish in time are aborted.
func (s *Server) Shutdown(timeout time.Duration) time.Duration {
	from := time.Now()
	s.mu.Lock()
	launched, cancel := s.launched, s.cancel
	s.launched = true
	s.mu.Unlock()
	if !launched {
		s.stop()
		return 0
	}
	if cancel != nil {
		cancel()
	}

	ctx, cancelWait := context.WithTimeout(context.Background(), timeout)
	defer cancelWait()
	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("router did not stop in time")
		return time.Since(from)
	}

	s.mu.Lock()
	drained := s.drained
	s.mu.Unlock()
	for _, c := range drained {
		if err := c.Wait(ctx); err != nil {
			s.logger.Warn("client aborted", "conn", uint64(c.ID()), "error", err)
			c.Abort()
		}
	}
	return time.Since(from)
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("relay.Server: listener closed: %w", err)
			}
			// backoff like net/http does, otherwise a persistent error spins the loop
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.logger.Error("accept failed", "error", err, "retry", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		id, err := s.registry.Add(conn)
		if err != nil {
			s.logger.Warn("connection rejected", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			continue
		}
		s.logger.Info("client connected", "conn", uint64(id), "remote", conn.RemoteAddr().String())
		s.greet(id)
	}
}

// greet - replays history to newly connected client.
func (s *Server) greet(id broker.ConnectionID) {
	if s.history == nil || s.greets == 0 {
		return
	}
	for _, m := range s.history.Tail(s.greets) {
		if err := s.registry.Forward(id, m); err != nil {
			s.logger.Warn("can't replay history", "conn", uint64(id), "error", err)
			return
		}
	}
}

func (s *Server) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-s.inbox.Done():
			return nil
		case e := <-s.inbox.Receive():
			if err := s.route(e); err != nil {
				return err
			}
		}
	}
}

// route - the only place where message tags are interpreted.
func (s *Server) route(e broker.Envelope) error {
	m := e.Message
	switch m.Kind {
	case message.KindPing, message.KindText:
		// history is updated first, so a client connected after receiving m is greeted with it
		if m.Kind == message.KindText && s.history != nil {
			s.history.Push(m)
		}
		if dead := s.registry.ForwardToAll(m, e.ID); len(dead) > 0 {
			s.logger.Warn("dead clients evicted", "count", len(dead))
		}
		if s.bridge != nil && e.ID != broker.NoConnection {
			if err := s.bridge.Publish(m); err != nil {
				s.logger.Error("can't publish to bridge", "conn", uint64(e.ID), "error", err)
			}
		}
		return nil
	case message.KindDisconnect:
		if err := s.registry.Disconnect(e.ID); err != nil {
			return fmt.Errorf("relay.Server: can't disconnect client: %w", err)
		}
		s.logger.Info("client disconnected", "conn", uint64(e.ID))
		return nil
	default:
		return &UnexpectedMessageError{ID: e.ID, Kind: m.Kind}
	}
}
