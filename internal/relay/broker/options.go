package broker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wtask/relay/internal/relay/message"
)

// config - connection settings shared by all connections of Registry.
type config struct {
	idleTimeout,
	writeTimeout time.Duration
	maxLineSize int
	logger      *slog.Logger
}

func defaultConfig() config {
	return config{
		maxLineSize: message.DefaultMaxLineSize,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option - tunes connections.
type Option func(c *config) error

func setup(c *config, options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(c); err != nil {
			return err
		}
	}
	return nil
}

// WithIdleTimeout - drops connection if the client is silent for given period.
// Zero disables the timeout.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return fmt.Errorf("broker.WithIdleTimeout: invalid timeout (%v)", timeout)
		}
		c.idleTimeout = timeout
		return nil
	}
}

// WithWriteTimeout - limits time of writing a batch of outgoing messages.
// Zero disables the timeout.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return fmt.Errorf("broker.WithWriteTimeout: invalid timeout (%v)", timeout)
		}
		c.writeTimeout = timeout
		return nil
	}
}

// WithMaxLineSize - overwrites message.DefaultMaxLineSize for incoming messages.
func WithMaxLineSize(size int) Option {
	return func(c *config) error {
		if size <= 0 {
			return fmt.Errorf("broker.WithMaxLineSize: invalid size (%d)", size)
		}
		c.maxLineSize = size
		return nil
	}
}

// WithLogger - attach logger, connection events are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return errors.New("broker.WithLogger: logger is nil")
		}
		c.logger = logger
		return nil
	}
}
