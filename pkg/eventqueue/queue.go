// Package eventqueue implements the simulator's stable-ordered min-priority
// queue: a min-heap keyed by (scheduled_time, EventSeq), with logical
// cancellation via a tombstone set so timers can be cancelled cheaply.
package eventqueue

import (
	"container/heap"

	"github.com/19h/ftsim/pkg/simtime"
)

// Entry is one scheduled item: an opaque Value (typically an *event.Event)
// tagged with the time it should fire and the sequence number that broke
// ties at insertion time.
type Entry struct {
	Time  simtime.SimTime
	Seq   simtime.EventSeq
	Value any
}

// Queue is a min-heap over Entry ordered by (Time, Seq), per spec §4.2.
// Not safe for concurrent use — the engine is single-threaded by design
// (spec §5), so the queue takes no locks.
type Queue struct {
	h          entryHeap
	tombstoned map[simtime.EventSeq]struct{}
	seq        simtime.Counter
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{tombstoned: make(map[simtime.EventSeq]struct{})}
}

// Push inserts value to fire at t and returns the EventSeq assigned to it,
// which is also the handle Cancel expects.
func (q *Queue) Push(t simtime.SimTime, value any) simtime.EventSeq {
	seq := simtime.EventSeq(q.seq.Next())
	heap.Push(&q.h, Entry{Time: t, Seq: seq, Value: value})
	return seq
}

// Pop removes and returns the earliest non-cancelled entry. The second
// return value is false once the queue (modulo tombstones) is empty.
func (q *Queue) Pop() (Entry, bool) {
	for q.h.Len() > 0 {
		e := heap.Pop(&q.h).(Entry)
		if _, dead := q.tombstoned[e.Seq]; dead {
			delete(q.tombstoned, e.Seq)
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// PeekTime returns the scheduled time of the earliest non-cancelled entry
// without removing it.
func (q *Queue) PeekTime() (simtime.SimTime, bool) {
	for q.h.Len() > 0 {
		top := q.h[0]
		if _, dead := q.tombstoned[top.Seq]; dead {
			heap.Pop(&q.h)
			delete(q.tombstoned, top.Seq)
			continue
		}
		return top.Time, true
	}
	return simtime.SimTime{}, false
}

// Cancel logically removes the entry with the given EventSeq. It is safe to
// call Cancel for a seq that has already fired or was never pushed — both
// are no-ops reported as false.
func (q *Queue) Cancel(seq simtime.EventSeq) bool {
	for _, e := range q.h {
		if e.Seq == seq {
			q.tombstoned[seq] = struct{}{}
			return true
		}
	}
	return false
}

// Len reports the number of entries still in the heap, including any not
// yet skipped tombstones (so it is an upper bound on remaining live work,
// not an exact count — exact liveness is only known at Pop/PeekTime time).
func (q *Queue) Len() int {
	return q.h.Len()
}

// Entries returns every live (non-tombstoned) entry still in the queue,
// without popping any of them. Order is unspecified. Used by quiescence
// detection (spec §4.9), which needs to inspect what kind of work remains
// scheduled rather than just whether any remains.
func (q *Queue) Entries() []Entry {
	live := make([]Entry, 0, q.h.Len())
	for _, e := range q.h {
		if _, dead := q.tombstoned[e.Seq]; dead {
			continue
		}
		live = append(live, e)
	}
	return live
}

// entryHeap implements container/heap.Interface over Entry, ordered first
// by Time then by Seq — the tie-break that makes dispatch order stable for
// events scheduled at the same SimTime.
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	c := h[i].Time.Compare(h[j].Time)
	if c != 0 {
		return c < 0
	}
	return h[i].Seq < h[j].Seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(Entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
