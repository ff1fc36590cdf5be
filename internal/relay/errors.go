package relay

import (
	"errors"
	"fmt"

	"github.com/wtask/relay/internal/relay/broker"
	"github.com/wtask/relay/internal/relay/message"
)

// ErrServerClosed - returns by Serve after the server was shut down or has served already.
var ErrServerClosed = errors.New("relay.Server: closed")

// UnexpectedMessageError - router got a message it does not know how to route.
// It stops the server.
type UnexpectedMessageError struct {
	ID   broker.ConnectionID
	Kind message.Kind
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("relay.Server: unexpected message %s from connection %d", e.Kind, e.ID)
}
