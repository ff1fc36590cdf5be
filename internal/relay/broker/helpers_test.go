package broker

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/relay/internal/relay/message"
)

const waitTimeout = 2 * time.Second

type link struct{ clientConn, brokerConn net.Conn }

func connect() link {
	c, s := net.Pipe()
	return link{c, s}
}

// collect - reads messages from client side until the stream ends.
func collect(conn net.Conn) <-chan []message.Message {
	result := make(chan []message.Message, 1)
	go func() {
		decoder := message.NewDecoder(conn, 0)
		received := []message.Message{}
		for {
			m, err := decoder.Decode()
			if err != nil {
				result <- received
				return
			}
			received = append(received, m)
		}
	}()
	return result
}

// drain - consumes client side so writers never block.
func drain(conn net.Conn) {
	go io.Copy(io.Discard, conn)
}

// send - safe to call from a separate goroutine.
func send(test *testing.T, conn net.Conn, messages ...message.Message) {
	for _, m := range messages {
		if !assert.NoError(test, message.Write(conn, m)) {
			return
		}
	}
}

func waitDone(test *testing.T, c *Connection) {
	test.Helper()
	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		require.FailNow(test, "connection is still alive", "conn %d", c.ID())
	}
}

func waitMessages(test *testing.T, result <-chan []message.Message) []message.Message {
	test.Helper()
	select {
	case received := <-result:
		return received
	case <-time.After(waitTimeout):
		require.FailNow(test, "client has not finished reading")
		return nil
	}
}

func receive(test *testing.T, inbox *Inbox) Envelope {
	test.Helper()
	select {
	case e := <-inbox.Receive():
		return e
	case <-time.After(waitTimeout):
		require.FailNow(test, "there is no inbound message")
		return Envelope{}
	}
}
