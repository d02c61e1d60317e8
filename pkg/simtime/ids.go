package simtime

import "fmt"

// NodeId identifies a simulated node. Its value is the ID the scenario's
// NodeSpec gives the node.
type NodeId uint32

func (id NodeId) String() string { return fmt.Sprintf("node-%d", uint32(id)) }

// LinkId identifies a directed link in the network topology, including the
// per-node reserved loopback link.
type LinkId uint32

func (id LinkId) String() string { return fmt.Sprintf("link-%d", uint32(id)) }

// TimerId identifies a single outstanding timer on a node. Scoped per node:
// two different nodes may reuse the same TimerId value without collision,
// since timers are always looked up via (NodeId, TimerId).
type TimerId uint64

func (id TimerId) String() string { return fmt.Sprintf("timer-%d", uint64(id)) }

// TraceId correlates an envelope and everything it causes (retries, derived
// messages, timers set while handling it) across the run, for telemetry.
type TraceId uint64

func (id TraceId) String() string { return fmt.Sprintf("trace-%d", uint64(id)) }

// MsgId is assigned monotonically to every envelope handed to the network.
type MsgId uint64

func (id MsgId) String() string { return fmt.Sprintf("msg-%d", uint64(id)) }

// EventSeq is assigned monotonically at event insertion time and breaks ties
// in the event queue; it is the sole source of dispatch-order stability for
// events scheduled at the same SimTime.
type EventSeq uint64

func (s EventSeq) String() string { return fmt.Sprintf("seq-%d", uint64(s)) }

// Counter is a monotonic generator for any of the id types above. It is not
// itself goroutine-safe: the engine is single-threaded per §5, so the only
// counters that need locking are ones shared with external reporting code,
// which should wrap a Counter rather than push locking into this type.
type Counter uint64

// Next returns the next value and advances the counter.
func (c *Counter) Next() uint64 {
	*c++
	return uint64(*c)
}
