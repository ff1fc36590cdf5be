// Package bridge federates relay instances over NATS.
//
// Every instance publishes relayed data messages to a shared subject and
// rebroadcasts the data messages published by other instances to its own clients.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/wtask/relay/internal/relay/message"
	"github.com/wtask/relay/pkg/semver"
)

const (
	// DefaultSubject - NATS subject used when none is configured.
	DefaultSubject = "relay.messages"

	// HeaderOrigin - instance identifier of the publisher.
	HeaderOrigin = "Relay-Origin"
	// HeaderVersion - bridge protocol version of the publisher.
	HeaderVersion = "Relay-Version"
)

// ProtocolVersion - version of the bridge payload format.
var ProtocolVersion = semver.V{Minor: 1}

// ErrClosed - the bridge was closed.
var ErrClosed = errors.New("bridge.Bridge: closed")

// Bridge - NATS link of a single relay instance.
type Bridge struct {
	nc      *nats.Conn
	subject string
	origin  string
	logger  *slog.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	closed bool
}

type bridgeOption func(b *Bridge) error

// WithSubject - overwrites DefaultSubject.
func WithSubject(subject string) bridgeOption {
	return func(b *Bridge) error {
		if subject == "" {
			return errors.New("bridge.WithSubject: subject is empty")
		}
		b.subject = subject
		return nil
	}
}

// WithLogger - attach logger.
func WithLogger(logger *slog.Logger) bridgeOption {
	return func(b *Bridge) error {
		if logger == nil {
			return errors.New("bridge.WithLogger: logger is nil")
		}
		b.logger = logger
		return nil
	}
}

// Connect - dials NATS server at url.
func Connect(url string, options ...bridgeOption) (*Bridge, error) {
	b := &Bridge{
		subject: DefaultSubject,
		origin:  uuid.New().String(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(b); err != nil {
			return nil, err
		}
	}
	nc, err := nats.Connect(
		url,
		nats.Name("relay "+b.origin),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("bridge.Connect: %w", err)
	}
	b.nc = nc
	b.logger = b.logger.With("origin", b.origin, "subject", b.subject)
	return b, nil
}

// Origin - unique identifier of this instance.
func (b *Bridge) Origin() string {
	return b.origin
}

// Publish - sends data message to other instances.
func (b *Bridge) Publish(m message.Message) error {
	if !m.IsData() {
		return fmt.Errorf("bridge.Publish: %v is not a data message", m.Kind)
	}
	data, err := message.Encode(m)
	if err != nil {
		return fmt.Errorf("bridge.Publish: %w", err)
	}
	msg := nats.NewMsg(b.subject)
	msg.Header.Set(HeaderOrigin, b.origin)
	msg.Header.Set(HeaderVersion, ProtocolVersion.String())
	msg.Data = data
	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("bridge.Publish: %w", err)
	}
	return nil
}

// Subscribe - delivers data messages of other instances to handler.
// Own messages, messages of incompatible protocol versions and
// non-data messages are dropped. Handler is called from a single goroutine.
func (b *Bridge) Subscribe(handler func(message.Message)) error {
	if handler == nil {
		return errors.New("bridge.Subscribe: handler is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.sub != nil {
		return errors.New("bridge.Subscribe: already subscribed")
	}
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		if m, ok := b.accept(msg); ok {
			handler(m)
		}
	})
	if err != nil {
		return fmt.Errorf("bridge.Subscribe: %w", err)
	}
	b.sub = sub
	return b.nc.Flush()
}

func (b *Bridge) accept(msg *nats.Msg) (message.Message, bool) {
	if msg.Header.Get(HeaderOrigin) == b.origin {
		return message.Message{}, false
	}
	v, err := semver.Parse(msg.Header.Get(HeaderVersion))
	if err != nil || !v.Compatible(ProtocolVersion) {
		b.logger.Warn("dropped message of incompatible version", "version", msg.Header.Get(HeaderVersion))
		return message.Message{}, false
	}
	m, err := message.Decode(msg.Data)
	if err != nil {
		b.logger.Warn("dropped undecodable message", "error", err)
		return message.Message{}, false
	}
	if !m.IsData() {
		b.logger.Warn("dropped non-data message", "kind", m.Kind.String())
		return message.Message{}, false
	}
	return m, true
}

// Close - unsubscribes and drains NATS connection.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		b.nc.Close()
		return fmt.Errorf("bridge.Close: %w", err)
	}
	return nil
}
