package broker

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/relay/internal/relay/message"
)

func TestNewConnection_ErrorCase(test *testing.T) {
	l := connect()
	defer l.clientConn.Close()
	_, err := NewConnection(1, nil, NewInbox(0))
	assert.Error(test, err)
	_, err = NewConnection(1, l.brokerConn, nil)
	assert.Error(test, err)
	_, err = NewConnection(1, l.brokerConn, NewInbox(0), WithIdleTimeout(-time.Second))
	assert.Error(test, err)
	_, err = NewConnection(1, l.brokerConn, NewInbox(0), WithMaxLineSize(0))
	assert.Error(test, err)
	_, err = NewConnection(1, l.brokerConn, NewInbox(0), WithLogger(nil))
	assert.Error(test, err)
}

func TestConnection_Inbound(test *testing.T) {
	inbox := NewInbox(0)
	l := connect()
	c, err := NewConnection(7, l.brokerConn, inbox)
	require.NoError(test, err)
	drain(l.clientConn)

	go send(test, l.clientConn, message.Ping(), message.Text("hello"))

	assert.Equal(test, Envelope{7, message.Ping()}, receive(test, inbox))
	assert.Equal(test, Envelope{7, message.Text("hello")}, receive(test, inbox))

	c.Disconnect()
	waitDone(test, c)
	assert.NoError(test, c.Err())
}

func TestConnection_Forward(test *testing.T) {
	l := connect()
	c, err := NewConnection(1, l.brokerConn, NewInbox(0))
	require.NoError(test, err)
	result := collect(l.clientConn)

	require.NoError(test, c.Forward(message.Text("message-1")))
	require.NoError(test, c.Forward(message.Ping()))
	assert.Error(test, c.Forward(message.Message{}))
	c.Disconnect()

	expected := []message.Message{message.Text("message-1"), message.Ping(), message.Disconnect()}
	assert.Equal(test, expected, waitMessages(test, result))
	waitDone(test, c)
}

func TestConnection_Disconnect_Idempotent(test *testing.T) {
	l := connect()
	c, err := NewConnection(1, l.brokerConn, NewInbox(0))
	require.NoError(test, err)
	result := collect(l.clientConn)

	c.Disconnect()
	c.Disconnect()

	assert.Equal(test, []message.Message{message.Disconnect()}, waitMessages(test, result))
	waitDone(test, c)
	assert.Equal(test, ErrSenderDisconnected, c.Forward(message.Ping()))
	assert.NotPanics(test, c.Disconnect)
}

func TestConnection_PeerClosed(test *testing.T) {
	inbox := NewInbox(0)
	l := connect()
	c, err := NewConnection(1, l.brokerConn, inbox)
	require.NoError(test, err)

	l.clientConn.Close()
	waitDone(test, c)

	assert.Equal(test, ErrSenderDisconnected, c.Forward(message.Ping()))
	assert.Error(test, c.Err())
	assert.NotPanics(test, c.Disconnect)
}

func TestConnection_DecodeError(test *testing.T) {
	l := connect()
	c, err := NewConnection(1, l.brokerConn, NewInbox(0))
	require.NoError(test, err)
	drain(l.clientConn)

	go l.clientConn.Write([]byte("definitely not json\n"))

	waitDone(test, c)
	var decodeErr *message.DecodeError
	assert.True(test, errors.As(c.Err(), &decodeErr), "unexpected error: %v", c.Err())
}

func TestConnection_InboxClosed(test *testing.T) {
	inbox := NewInbox(0)
	inbox.Close()
	l := connect()
	c, err := NewConnection(1, l.brokerConn, inbox)
	require.NoError(test, err)
	drain(l.clientConn)

	go send(test, l.clientConn, message.Ping())

	waitDone(test, c)
	assert.ErrorIs(test, c.Err(), ErrInboxClosed)
}

func TestConnection_IdleTimeout(test *testing.T) {
	l := connect()
	c, err := NewConnection(1, l.brokerConn, NewInbox(0), WithIdleTimeout(20*time.Millisecond))
	require.NoError(test, err)
	drain(l.clientConn)

	waitDone(test, c)
	var netErr net.Error
	require.True(test, errors.As(c.Err(), &netErr), "unexpected error: %v", c.Err())
	assert.True(test, netErr.Timeout())
}

func TestConnection_Abort(test *testing.T) {
	l := connect()
	c, err := NewConnection(1, l.brokerConn, NewInbox(0))
	require.NoError(test, err)
	// nobody reads client side, so the writer is stuck on Disconnect
	c.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(test, context.DeadlineExceeded, c.Wait(ctx))

	c.Abort()
	waitDone(test, c)
	l.clientConn.Close()
}
