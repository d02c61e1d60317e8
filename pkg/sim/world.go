// Package sim implements the Simulation Coordinator of spec §4.9: the
// World ownership tree (spec §3) and the seven-step dispatch loop that
// pops events, dispatches them to the network/storage/node/fault
// subsystems, commits deferred effects, and emits telemetry. Grounded on
// the teacher's packages/simulation/engine.Engine for the overall
// orchestrator shape (node registry, Pause/Resume/Step, control channel,
// GetState snapshot), with the teacher's wall-clock tick loop replaced by
// the deterministic event-queue loop spec §4.9 requires.
package sim

import (
	"fmt"
	"sort"

	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/network"
	"github.com/19h/ftsim/pkg/node"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
	"github.com/19h/ftsim/pkg/telemetry"
)

// World owns every NodeRuntime, the Network, the telemetry Bus handle, and
// the top-level RNG (spec §3 "World owns"). Ownership is tree-shaped:
// Simulation exclusively owns World and the EventQueue; World exclusively
// owns each NodeRuntime; cross-references elsewhere are by id only.
type World struct {
	Nodes             map[simtime.NodeId]*node.Runtime
	Net               *network.Network
	Bus               *telemetry.Bus
	RNG               *rng.Source
	ProtocolFactories map[simtime.NodeId]func() protocol.Core
	ClockSkew         map[simtime.NodeId]simtime.Duration

	msgCounter   simtime.Counter
	traceCounter simtime.Counter
}

// NewWorld creates an empty World seeded from seed; every subsystem's RNG
// sub-stream is derived from this one source by domain tag (spec §4.1).
func NewWorld(seed uint64, bus *telemetry.Bus) *World {
	src := rng.NewSource(seed)
	return &World{
		Nodes:             make(map[simtime.NodeId]*node.Runtime),
		Net:               network.New(src.Derive("net")),
		Bus:               bus,
		RNG:               src,
		ProtocolFactories: make(map[simtime.NodeId]func() protocol.Core),
		ClockSkew:         make(map[simtime.NodeId]simtime.Duration),
	}
}

// AddNode instantiates a node with the given protocol factory and store,
// registering it in the world and wiring its reserved loopback link.
func (w *World) AddNode(id simtime.NodeId, factory func() protocol.Core, store storage.Store, inboxCapacity int, members []simtime.NodeId) {
	nodeRNG := w.RNG.Derive(fmt.Sprintf("node-%d", uint32(id)))
	rt := node.New(id, factory(), store, inboxCapacity, nodeRNG, members, w.Bus)
	w.Nodes[id] = rt
	w.ProtocolFactories[id] = factory
	w.Net.EnsureLoopback(id)
}

// SortedNodeIDs returns every registered node id in ascending order, the
// fixed per-node commit order of spec §4.9 step 5.
func (w *World) SortedNodeIDs() []simtime.NodeId {
	ids := make([]simtime.NodeId, 0, len(w.Nodes))
	for id := range w.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PeersOf returns every node id other than self, in ascending order, for
// Ctx.Broadcast fan-out.
func (w *World) PeersOf(self simtime.NodeId) []simtime.NodeId {
	ids := w.SortedNodeIDs()
	out := make([]simtime.NodeId, 0, len(ids))
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func (w *World) nextMsgID() simtime.MsgId     { return simtime.MsgId(w.msgCounter.Next()) }
func (w *World) nextTraceID() simtime.TraceId { return simtime.TraceId(w.traceCounter.Next()) }

// newEnvelope stamps a fresh Envelope for an outbound send, assigning the
// next monotonic MsgId/TraceId.
func (w *World) newEnvelope(now simtime.SimTime, src, dst simtime.NodeId, payload []byte) message.Envelope {
	return message.Envelope{
		Src:     src,
		Dst:     dst,
		Created: now,
		Trace:   w.nextTraceID(),
		Msg:     w.nextMsgID(),
		Payload: payload,
	}
}
