// Package mailbox implements the bounded per-node inbox of spec §4.5,
// adapted from the teacher's packages/core/message.Queue: a
// channel-backed bounded queue with the same Enqueue/Dequeue/Len/Close
// shape. Unlike the teacher's queue, which is drained by a receiving
// goroutine via Channel()/DequeueBlocking, this Inbox is drained
// synchronously by the coordinator inside a single dispatch step (spec §5:
// handlers never yield), so DequeueBlocking has no equivalent here.
package mailbox

import "github.com/19h/ftsim/pkg/message"

// Inbox is a bounded FIFO queue of envelopes awaiting delivery to a node's
// protocol handler.
type Inbox struct {
	items    chan message.Envelope
	capacity int
}

// New creates an inbox with the given capacity.
func New(capacity int) *Inbox {
	return &Inbox{items: make(chan message.Envelope, capacity), capacity: capacity}
}

// Capacity returns the inbox's configured bound.
func (b *Inbox) Capacity() int { return b.capacity }

// Enqueue adds env to the inbox. Returns false if the inbox is full, in
// which case the caller (the network/coordinator) treats this the same as
// a dropped delivery.
func (b *Inbox) Enqueue(env message.Envelope) bool {
	select {
	case b.items <- env:
		return true
	default:
		return false
	}
}

// Dequeue removes and returns the oldest envelope, if any.
func (b *Inbox) Dequeue() (message.Envelope, bool) {
	select {
	case env := <-b.items:
		return env, true
	default:
		return message.Envelope{}, false
	}
}

// DrainAll removes and returns every currently queued envelope in FIFO
// order, for a NodeLifecycle::Crash discarding volatile state (spec §4.5).
func (b *Inbox) DrainAll() []message.Envelope {
	out := make([]message.Envelope, 0, len(b.items))
	for {
		env, ok := b.Dequeue()
		if !ok {
			break
		}
		out = append(out, env)
	}
	return out
}

// Len returns the number of envelopes currently queued.
func (b *Inbox) Len() int { return len(b.items) }
