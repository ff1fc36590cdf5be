package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/wtask/relay/internal/relay/message"
)

// Registry - keeper of live connections and the single point of their lifecycle.
// The lock is held for map operations only, never while forwarding.
type Registry struct {
	inbox  *Inbox
	cfg    config
	logger *slog.Logger

	mu      sync.Mutex
	lastID  ConnectionID
	list    map[ConnectionID]*Connection
	stopped bool
}

// NewRegistry - builds Registry, every added connection pushes inbound messages into inbox.
func NewRegistry(inbox *Inbox, options ...Option) (*Registry, error) {
	if inbox == nil {
		return nil, errors.New("broker.NewRegistry: inbox is nil")
	}
	cfg := defaultConfig()
	if err := setup(&cfg, options...); err != nil {
		return nil, err
	}
	return &Registry{
		inbox:  inbox,
		cfg:    cfg,
		logger: cfg.logger,
		list:   make(map[ConnectionID]*Connection),
	}, nil
}

// Add - registers net connection and starts its workers.
// Returns ErrUnderStopCondition after DisconnectAll, the caller owns conn in that case.
func (r *Registry) Add(conn net.Conn) (ConnectionID, error) {
	if conn == nil {
		return NoConnection, errors.New("broker.Registry: net connection is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return NoConnection, ErrUnderStopCondition
	}
	r.lastID++
	id := r.lastID
	if dupe, ok := r.list[id]; ok {
		panic(fmt.Sprintf("broker.Registry: connection %d already exists (%v)", id, remoteAddr(dupe.conn)))
	}
	r.list[id] = newConnection(id, conn, r.inbox, r.cfg)
	r.logger.Debug("connection registered", "conn", uint64(id))
	return id, nil
}

// Len - number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// Get - returns live connection.
func (r *Registry) Get(id ConnectionID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.list[id]
	return c, ok
}

// Forward - sends message to a single connection. Dead connection is disconnected.
func (r *Registry) Forward(id ConnectionID, m message.Message) error {
	c, ok := r.Get(id)
	if !ok {
		return &InvalidConnectionIDError{id}
	}
	err := c.Forward(m)
	if r.isDead(c, err) {
		r.Disconnect(id)
	}
	return err
}

// isDead - reports whether forwarding error means the connection has to be evicted.
// A leaving connection is not, its Disconnect is on the way to the router, which removes it.
func (r *Registry) isDead(c *Connection, err error) bool {
	if !errors.Is(err, ErrSenderDisconnected) || c.Leaving() {
		return false
	}
	r.logger.Warn("found dead connection", "conn", uint64(c.id), "error", err)
	return true
}

// ForwardToAll - sends message to all connections except the excluded one.
// Connections which failed to accept the message are removed after the pass,
// their IDs are returned.
func (r *Registry) ForwardToAll(m message.Message, exclude ConnectionID) []ConnectionID {
	r.mu.Lock()
	peers := make([]*Connection, 0, len(r.list))
	for id, c := range r.list {
		if id == exclude {
			continue
		}
		peers = append(peers, c)
	}
	r.mu.Unlock()

	var dead []ConnectionID
	for _, c := range peers {
		err := c.Forward(m)
		switch {
		case err == nil:
		case r.isDead(c, err):
			dead = append(dead, c.id)
		case !errors.Is(err, ErrSenderDisconnected):
			r.logger.Error("can't forward message", "conn", uint64(c.id), "error", err)
		}
	}
	for _, id := range dead {
		// may be removed concurrently, that's fine
		if err := r.Disconnect(id); err != nil {
			r.logger.Debug("dead connection is gone already", "conn", uint64(id))
		}
	}
	return dead
}

// Remove - removes connection from registry without stopping it.
func (r *Registry) Remove(id ConnectionID) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.list[id]
	if !ok {
		return nil, &InvalidConnectionIDError{id}
	}
	delete(r.list, id)
	r.logger.Debug("connection removed", "conn", uint64(id))
	return c, nil
}

// Disconnect - removes connection and disconnects it.
func (r *Registry) Disconnect(id ConnectionID) error {
	c, err := r.Remove(id)
	if err != nil {
		return err
	}
	c.Disconnect()
	return nil
}

// DisconnectAll - drains the registry, disconnects every connection and
// returns them for waiting. Registry does not accept connections afterwards.
func (r *Registry) DisconnectAll() []*Connection {
	r.mu.Lock()
	r.stopped = true
	list := make([]*Connection, 0, len(r.list))
	for id, c := range r.list {
		list = append(list, c)
		delete(r.list, id)
	}
	r.mu.Unlock()

	for _, c := range list {
		c.Disconnect()
	}
	r.logger.Debug("all connections disconnected", "count", len(list))
	return list
}
