package broker

import (
	"sync"

	"github.com/wtask/relay/internal/relay/message"
)

// outbox - unbounded FIFO of outgoing messages consumed by the writer worker.
// After close no pushes are accepted, but queued messages are still handed out.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []message.Message
	closed bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) push(m message.Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.queue = append(o.queue, m)
	o.cond.Signal()
	return true
}

// close - returns false if the outbox was closed already.
func (o *outbox) close() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.closed = true
	o.cond.Broadcast()
	return true
}

// discard - closes the outbox and drops everything queued.
func (o *outbox) discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.queue = nil
	o.cond.Broadcast()
}

// next - blocks until there is something to write or the outbox is closed and drained.
// Returns false when nothing is left.
func (o *outbox) next() ([]message.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for len(o.queue) == 0 && !o.closed {
		o.cond.Wait()
	}
	if len(o.queue) == 0 {
		return nil, false
	}
	batch := o.queue
	o.queue = nil
	return batch, true
}
