// Package clock provides Lamport and vector logical clocks for protocol
// authors who want happens-before reasoning without hand-rolling it. It is
// adapted from the teacher's packages/core/clock package: the algorithms are
// unchanged, but both clocks drop their internal sync.RWMutex. A node's
// logical clock is only ever touched while that node's single event handler
// is running (spec §5: no event handler is preempted, and NodeRuntime state
// is exclusively owned per spec §3), so the lock was dead weight — worse,
// carrying it would suggest these clocks are meant to be shared across
// goroutines, which would violate the single-threaded dispatch model.
package clock

// Lamport implements a Lamport logical clock.
type Lamport struct {
	time uint64
}

// NewLamport creates a new Lamport clock starting at 0.
func NewLamport() *Lamport {
	return &Lamport{}
}

// Time returns the current clock value.
func (c *Lamport) Time() uint64 {
	return c.time
}

// Tick advances the clock by 1 for a local event and returns the new value.
func (c *Lamport) Tick() uint64 {
	c.time++
	return c.time
}

// Observe updates the clock based on a received message timestamp, setting
// it to max(local, received) + 1, and returns the new value.
func (c *Lamport) Observe(received uint64) uint64 {
	if received > c.time {
		c.time = received
	}
	c.time++
	return c.time
}

// CompareLamport compares two Lamport timestamps. Returns -1 if a < b, 1 if
// a > b, 0 if equal. Note a < b does not imply a happens-before b — Lamport
// clocks can only certify happens-before in the other direction (if a
// happens-before b then a < b); concurrent events can still compare unequal.
func CompareLamport(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
