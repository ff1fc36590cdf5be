package bridge

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/relay/internal/relay/message"
)

const waitTimeout = 2 * time.Second

func runServer(test *testing.T) *server.Server {
	test.Helper()
	s := natsserver.RunRandClientPortServer()
	test.Cleanup(s.Shutdown)
	return s
}

func connect(test *testing.T, url string, options ...bridgeOption) *Bridge {
	test.Helper()
	b, err := Connect(url, options...)
	require.NoError(test, err)
	test.Cleanup(func() { b.Close() })
	return b
}

func subscribe(test *testing.T, b *Bridge) <-chan message.Message {
	test.Helper()
	received := make(chan message.Message, 16)
	require.NoError(test, b.Subscribe(func(m message.Message) {
		received <- m
	}))
	return received
}

func expect(test *testing.T, received <-chan message.Message, expected message.Message) {
	test.Helper()
	select {
	case m := <-received:
		assert.Equal(test, expected, m)
	case <-time.After(waitTimeout):
		require.FailNow(test, "message is not delivered", "%v", expected)
	}
}

func expectNothing(test *testing.T, received <-chan message.Message) {
	test.Helper()
	select {
	case m := <-received:
		assert.Fail(test, "unexpected message", "%v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnect_ErrorCase(test *testing.T) {
	s := runServer(test)
	_, err := Connect(s.ClientURL(), WithSubject(""))
	assert.Error(test, err)
	_, err = Connect(s.ClientURL(), WithLogger(nil))
	assert.Error(test, err)
	_, err = Connect("nats://127.0.0.1:1")
	assert.Error(test, err)
}

func TestBridge_PublishSubscribe(test *testing.T) {
	s := runServer(test)
	a, b := connect(test, s.ClientURL()), connect(test, s.ClientURL())
	assert.NotEqual(test, a.Origin(), b.Origin())
	fromA, fromB := subscribe(test, a), subscribe(test, b)

	require.NoError(test, a.Publish(message.Text("hello")))
	require.NoError(test, a.Publish(message.Ping()))
	expect(test, fromB, message.Text("hello"))
	expect(test, fromB, message.Ping())
	// own messages are not looped back
	expectNothing(test, fromA)

	require.NoError(test, b.Publish(message.Text("hi")))
	expect(test, fromA, message.Text("hi"))
	expectNothing(test, fromB)
}

func TestBridge_Subject(test *testing.T) {
	s := runServer(test)
	a := connect(test, s.ClientURL(), WithSubject("relay.a"))
	b := connect(test, s.ClientURL(), WithSubject("relay.b"))
	c := connect(test, s.ClientURL(), WithSubject("relay.a"))
	fromB, fromC := subscribe(test, b), subscribe(test, c)

	require.NoError(test, a.Publish(message.Text("a only")))
	expect(test, fromC, message.Text("a only"))
	expectNothing(test, fromB)
}

func TestBridge_Publish_NonData(test *testing.T) {
	s := runServer(test)
	b := connect(test, s.ClientURL())
	for _, m := range []message.Message{message.Disconnect(), message.Invalid(), message.Error("x")} {
		assert.Error(test, b.Publish(m), "%v", m)
	}
}

func TestBridge_Subscribe_DropsForeignFormats(test *testing.T) {
	s := runServer(test)
	b := connect(test, s.ClientURL())
	received := subscribe(test, b)

	nc, err := nats.Connect(s.ClientURL())
	require.NoError(test, err)
	defer nc.Close()
	publish := func(version string, data string) {
		msg := nats.NewMsg(DefaultSubject)
		msg.Header.Set(HeaderOrigin, "elsewhere")
		if version != "" {
			msg.Header.Set(HeaderVersion, version)
		}
		msg.Data = []byte(data)
		require.NoError(test, nc.PublishMsg(msg))
	}

	publish("", `{"Text":"no version"}`)
	publish("1.0.0", `{"Text":"future"}`)
	publish("garbage", `{"Text":"garbage"}`)
	publish(ProtocolVersion.String(), `"Disconnect"`)
	publish(ProtocolVersion.String(), `{"Unknown":1}`)
	publish(ProtocolVersion.String(), `{"Text":"welcome"}`)
	require.NoError(test, nc.Flush())

	// delivery is ordered, everything before the last one is dropped
	expect(test, received, message.Text("welcome"))
	expectNothing(test, received)
}

func TestBridge_Subscribe_ErrorCase(test *testing.T) {
	s := runServer(test)
	b := connect(test, s.ClientURL())
	assert.Error(test, b.Subscribe(nil))
	subscribe(test, b)
	assert.Error(test, b.Subscribe(func(message.Message) {}))
}

func TestBridge_Close(test *testing.T) {
	s := runServer(test)
	b, err := Connect(s.ClientURL())
	require.NoError(test, err)
	require.NoError(test, b.Close())
	require.NoError(test, b.Close())
	assert.Equal(test, ErrClosed, b.Subscribe(func(message.Message) {}))
}
