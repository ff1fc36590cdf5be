// Package client is a client-side helper for the relay protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wtask/relay/internal/relay/message"
)

// ErrClosed - the client is closed.
var ErrClosed = errors.New("client.Client: closed")

// Client holds the persistent connection to the relay.
type Client struct {
	conn    net.Conn
	decoder *message.Decoder

	wmu    sync.Mutex
	closed bool
}

// Dial - establishes the TCP connection to the relay at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client.Dial: %w", err)
	}
	return New(conn), nil
}

// New - wraps already established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn:    conn,
		decoder: message.NewDecoder(conn, 0),
	}
}

// Send - writes message to the relay. Safe for concurrent use.
func (c *Client) Send(m message.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := message.Write(c.conn, m); err != nil {
		return fmt.Errorf("client.Send: %w", err)
	}
	return nil
}

// Receive - reads next message from the relay. Must be called from a single goroutine.
// Zero timeout waits forever.
func (c *Client) Receive(timeout time.Duration) (message.Message, error) {
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}
	m, err := c.decoder.Decode()
	if err != nil {
		return message.Message{}, fmt.Errorf("client.Receive: %w", err)
	}
	return m, nil
}

// Close - says goodbye to the relay with Disconnect message and closes the connection.
func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	werr := message.Write(c.conn, message.Disconnect())
	cerr := c.conn.Close()
	if werr != nil && !errors.Is(werr, net.ErrClosed) {
		return fmt.Errorf("client.Close: %w", werr)
	}
	return cerr
}

// Request - connects to the relay, sends message and returns the first message received back.
func Request(ctx context.Context, addr string, m message.Message) (message.Message, error) {
	c, err := Dial(ctx, addr)
	if err != nil {
		return message.Message{}, err
	}
	defer c.Close()

	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		if timeout = time.Until(deadline); timeout <= 0 {
			return message.Message{}, context.DeadlineExceeded
		}
	}
	if err := c.Send(m); err != nil {
		return message.Message{}, err
	}
	return c.Receive(timeout)
}
