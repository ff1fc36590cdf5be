package broker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wtask/relay/internal/relay/message"
)

// Connection - keeps a single client stream and communicates over it
// with two independent workers: reader pushes incoming messages into Inbox,
// writer drains outbound queue into the stream.
type Connection struct {
	id     ConnectionID
	conn   net.Conn
	inbox  *Inbox
	cfg    config
	logger *slog.Logger

	outbox   *outbox
	stopRead chan struct{}
	stopOnce sync.Once
	discOnce sync.Once
	done     chan struct{}
	// leaving - the client has announced Disconnect which is not routed yet
	leaving atomic.Bool

	mu       sync.Mutex
	readErr  error
	writeErr error
}

// NewConnection - starts reader and writer workers over conn in background.
// Non-nil error is only possible for invalid options.
func NewConnection(id ConnectionID, conn net.Conn, inbox *Inbox, options ...Option) (*Connection, error) {
	if conn == nil {
		return nil, errors.New("broker.NewConnection: net connection is nil")
	}
	if inbox == nil {
		return nil, errors.New("broker.NewConnection: inbox is nil")
	}
	cfg := defaultConfig()
	if err := setup(&cfg, options...); err != nil {
		return nil, err
	}
	return newConnection(id, conn, inbox, cfg), nil
}

func newConnection(id ConnectionID, conn net.Conn, inbox *Inbox, cfg config) *Connection {
	c := &Connection{
		id:       id,
		conn:     conn,
		inbox:    inbox,
		cfg:      cfg,
		logger:   cfg.logger.With("conn", uint64(id)),
		outbox:   newOutbox(),
		stopRead: make(chan struct{}),
		done:     make(chan struct{}),
	}

	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := c.runReader()
		c.mu.Lock()
		c.readErr = err
		c.mu.Unlock()
		if err != nil {
			c.logger.Debug("reader stopped", "error", err)
			// peer is gone, so refuse further forwarding and let the writer drain
			c.outbox.close()
		}
	}()
	go func() {
		defer wg.Done()
		err := c.runWriter()
		c.mu.Lock()
		c.writeErr = err
		c.mu.Unlock()
		if err != nil {
			c.logger.Debug("writer stopped", "error", err)
			c.outbox.discard()
			c.stopReader()
		}
	}()
	go func() {
		wg.Wait()
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("close error", "error", err)
		}
		c.logger.Debug("connection closed")
		close(c.done)
	}()

	c.logger.Debug("connection started", "remote", remoteAddr(conn))
	return c
}

// ID - returns connection identifier.
func (c *Connection) ID() ConnectionID {
	return c.id
}

// Forward - enqueues message for the writer worker, never blocks on the network.
// Returns ErrSenderDisconnected if the writer does not accept messages anymore.
func (c *Connection) Forward(m message.Message) error {
	if !m.Kind.Valid() {
		return fmt.Errorf("broker.Connection: can't forward message of %v", m.Kind)
	}
	if !c.outbox.push(m) {
		return ErrSenderDisconnected
	}
	return nil
}

// Leaving - reports whether the client has sent Disconnect.
func (c *Connection) Leaving() bool {
	return c.leaving.Load()
}

// Disconnect - notifies the client with Disconnect message and stops both workers.
// Writer sends everything queued before it exits. Repeated calls do nothing.
func (c *Connection) Disconnect() {
	c.discOnce.Do(func() {
		c.logger.Debug("disconnecting")
		if err := c.Forward(message.Disconnect()); err != nil {
			c.logger.Warn("can't notify client about disconnect", "error", err)
		}
		c.outbox.close()
		c.stopReader()
	})
}

// Abort - drops queued messages and closes the stream immediately.
func (c *Connection) Abort() {
	c.outbox.discard()
	c.stopReader()
	c.conn.Close()
}

// Done - is closed when both workers exited and the stream is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Wait - blocks until Done or ctx expires.
func (c *Connection) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err - errors of the workers; nil if both stopped on request or are still running.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.readErr, c.writeErr)
}

// stopReader - signals the reader and unblocks its pending read.
func (c *Connection) stopReader() {
	c.stopOnce.Do(func() {
		close(c.stopRead)
		if cr, ok := c.conn.(interface{ CloseRead() error }); ok {
			if err := cr.CloseRead(); err != nil && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("close read error", "error", err)
			}
		}
		if err := c.conn.SetReadDeadline(time.Now()); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("read deadline error", "error", err)
		}
	})
}

func (c *Connection) stopping() bool {
	select {
	case <-c.stopRead:
		return true
	default:
		return false
	}
}

func (c *Connection) runReader() error {
	decoder := message.NewDecoder(c.conn, c.cfg.maxLineSize)
	for {
		if c.cfg.idleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.cfg.idleTimeout))
		}
		// checked after the deadline is set, so stopReader can't be overridden
		if c.stopping() {
			return nil
		}
		m, err := decoder.Decode()
		if err != nil {
			if c.stopping() {
				return nil
			}
			return err
		}
		c.logger.Debug("message received", "kind", m.Kind.String())
		if m.Kind == message.KindDisconnect {
			c.leaving.Store(true)
		}
		switch err := c.inbox.push(c.stopRead, Envelope{ID: c.id, Message: m}); {
		case errors.Is(err, errStopped):
			return nil
		case err != nil:
			return err
		}
		if m.Kind == message.KindDisconnect {
			// nothing is read after the client said goodbye
			return nil
		}
	}
}

func (c *Connection) runWriter() error {
	w := bufio.NewWriter(c.conn)
	for {
		batch, ok := c.outbox.next()
		if !ok {
			return nil
		}
		if c.cfg.writeTimeout > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
		}
		for _, m := range batch {
			if err := message.Write(w, m); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.Network() + " " + a.String()
	}
	return ""
}
