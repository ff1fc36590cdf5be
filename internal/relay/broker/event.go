package broker

import (
	"context"
	"sync"

	"github.com/wtask/relay/internal/relay/message"
)

// ConnectionID - unique identifier of connection assigned by Registry.
// Identifiers grow monotonically and are never reused.
type ConnectionID uint64

// NoConnection - reserved ID which never belongs to a connection.
// Messages without local origin carry it and it excludes nobody on broadcast.
const NoConnection ConnectionID = 0

// Envelope - inbound message and its origin.
type Envelope struct {
	ID      ConnectionID
	Message message.Message
}

// Inbox - the queue shared by all reader workers, consumed by the router.
type Inbox struct {
	c    chan Envelope
	done chan struct{}
	once sync.Once
}

// NewInbox - builds inbound queue with given buffer size.
func NewInbox(size int) *Inbox {
	if size < 0 {
		size = 0
	}
	return &Inbox{
		c:    make(chan Envelope, size),
		done: make(chan struct{}),
	}
}

// Receive - channel of inbound envelopes in arrival order.
// It is never closed, select it together with Done.
func (q *Inbox) Receive() <-chan Envelope {
	return q.c
}

// Done - closed after Close.
func (q *Inbox) Done() <-chan struct{} {
	return q.done
}

// Close - stops accepting envelopes. Pending pushes fail with ErrInboxClosed.
func (q *Inbox) Close() {
	q.once.Do(func() { close(q.done) })
}

// Push - enqueues envelope, blocks while queue is full.
func (q *Inbox) Push(ctx context.Context, e Envelope) error {
	if err := q.push(ctx.Done(), e); err != nil {
		if err == errStopped {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// push - returns errStopped without delivery if stop is closed first.
func (q *Inbox) push(stop <-chan struct{}, e Envelope) error {
	select {
	case <-q.done:
		return ErrInboxClosed
	default:
	}
	select {
	case q.c <- e:
		return nil
	case <-q.done:
		return ErrInboxClosed
	case <-stop:
		return errStopped
	}
}
