package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnderStopCondition - returns in case if Registry is under stop condition
	// and will not accept any new connections, so you should close such connection by your own.
	ErrUnderStopCondition = errors.New("broker.Registry: under stop condition")

	// ErrSenderDisconnected - returns by Connection.Forward when the writer worker
	// does not accept messages anymore. Registry treats such connection as dead.
	ErrSenderDisconnected = errors.New("broker.Connection: sender disconnected")

	// ErrInboxClosed - the shared inbound queue was closed, no more messages are routed.
	ErrInboxClosed = errors.New("broker.Inbox: closed")

	errStopped = errors.New("broker: stopped")
)

// InvalidConnectionIDError - there is no live connection with such ID.
type InvalidConnectionIDError struct {
	ID ConnectionID
}

func (e *InvalidConnectionIDError) Error() string {
	return fmt.Sprintf("broker.Registry: invalid connection id %d", e.ID)
}
