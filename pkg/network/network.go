package network

import (
	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
)

// DropReason names why Offer did not produce a delivery.
type DropReason string

const (
	DropPartition DropReason = "partition"
	DropLoss      DropReason = "loss"
)

// Dropped records one dropped envelope for
// telemetry purposes; the core never discards this information silently
// (spec §4.3 step 1/2: "emit MsgDropped metric").
type Dropped struct {
	Envelope message.Envelope
	Reason   DropReason
}

// Delivery is one scheduled delivery produced by Offer: a copy of the
// envelope (duplication may produce more than one) and the SimTime it
// should be delivered at.
type Delivery struct {
	At       simtime.SimTime
	Envelope message.Envelope
}

// Network owns the directed multigraph of Links plus the stacked partition
// predicate, and implements the fixed six-step delivery transform of spec
// §4.3. Grounded on the teacher's NetworkTransport (packages/network/
// transport/transport.go): the partition map, configurable latency and
// packet-loss knobs, and drop/deliver split are the same shape, but
// wall-clock goroutines and math/rand are replaced with SimTime-scheduled
// Delivery values drawn from named, deterministic RNG sub-streams.
type Network struct {
	links      map[simtime.NodeId]map[simtime.NodeId]*Link
	linksByID  map[simtime.LinkId]*Link
	nextLinkID simtime.LinkId

	partitions   []partitionFrame
	nextPartID   uint64

	dropSelectors   []dropSelectorFrame
	nextSelectorID  uint64

	rngDrop        *rng.Source
	rngDup         *rng.Source
	rngDelay       *rng.Source
	rngReorder     *rng.Source
	rngCorrupt     *rng.Source
	rngDropSelect  *rng.Source
}

type partitionFrame struct {
	id   uint64
	a, b map[simtime.NodeId]bool
}

// dropSelectorFrame is one stacked DirectiveDrop(probability, selector)
// applied independently of any link's own DropProbability (spec §4.7
// Drop(prob, selector, from, until)): nil Src/Dst means "matches any node".
// The selector is evaluated here so pkg/network does not need to import
// pkg/fault.
type dropSelectorFrame struct {
	id          uint64
	src, dst    *simtime.NodeId
	probability rng.Fraction64
}

func (f dropSelectorFrame) matches(src, dst simtime.NodeId) bool {
	if f.src != nil && *f.src != src {
		return false
	}
	if f.dst != nil && *f.dst != dst {
		return false
	}
	return true
}

// New creates an empty network whose fault draws come from independent
// sub-streams of source (expected to already be the engine's "net"-tagged
// sub-stream).
func New(source *rng.Source) *Network {
	return &Network{
		links:         make(map[simtime.NodeId]map[simtime.NodeId]*Link),
		linksByID:     make(map[simtime.LinkId]*Link),
		rngDrop:       source.Derive("net-drop"),
		rngDup:        source.Derive("net-dup"),
		rngDelay:      source.Derive("net-delay"),
		rngReorder:    source.Derive("net-reorder"),
		rngCorrupt:    source.Derive("net-corrupt"),
		rngDropSelect: source.Derive("net-drop-selector"),
	}
}

// PushDropSelector stacks a DirectiveDrop(probability, selector) frame,
// independent of link topology, until popped with the returned handle.
func (n *Network) PushDropSelector(src, dst *simtime.NodeId, probability rng.Fraction64) uint64 {
	n.nextSelectorID++
	id := n.nextSelectorID
	n.dropSelectors = append(n.dropSelectors, dropSelectorFrame{id: id, src: src, dst: dst, probability: probability})
	return id
}

// PopDropSelector removes a previously pushed drop-selector frame.
func (n *Network) PopDropSelector(id uint64) bool {
	for i, f := range n.dropSelectors {
		if f.id == id {
			n.dropSelectors = append(n.dropSelectors[:i], n.dropSelectors[i+1:]...)
			return true
		}
	}
	return false
}

// AddLink creates a directed link from -> to with the given properties and
// returns its id. Self-loops should use the automatically-created loopback
// link instead (see EnsureLoopback).
func (n *Network) AddLink(from, to simtime.NodeId, props LinkProps) simtime.LinkId {
	n.nextLinkID++
	id := n.nextLinkID
	l := newLink(id, from, to, props)
	if n.links[from] == nil {
		n.links[from] = make(map[simtime.NodeId]*Link)
	}
	n.links[from][to] = l
	n.linksByID[id] = l
	return id
}

// EnsureLoopback registers node's zero-delay, zero-loss self-delivery path
// if it is not already present (spec §4.3 "Edge policies").
func (n *Network) EnsureLoopback(node simtime.NodeId) {
	if n.links[node] != nil && n.links[node][node] != nil {
		return
	}
	l := newLink(LoopbackLink, node, node, LinkProps{})
	if n.links[node] == nil {
		n.links[node] = make(map[simtime.NodeId]*Link)
	}
	n.links[node][node] = l
}

// LinkByID returns a link for directive application (LinkDegrade/LinkSet).
func (n *Network) LinkByID(id simtime.LinkId) (*Link, bool) {
	l, ok := n.linksByID[id]
	return l, ok
}

// LinkBetween returns the link routing from -> to, if one exists.
func (n *Network) LinkBetween(from, to simtime.NodeId) (*Link, bool) {
	m := n.links[from]
	if m == nil {
		return nil, false
	}
	l, ok := m[to]
	return l, ok
}

// PushPartition partitions every node in a from every node in b (and vice
// versa) until popped with the returned handle. Grounded on the teacher's
// CreateBidirectionalPartition, generalized from single-node pairs to
// groups per spec §4.7 Partition(group_a, group_b, from, until).
func (n *Network) PushPartition(a, b []simtime.NodeId) uint64 {
	n.nextPartID++
	id := n.nextPartID
	n.partitions = append(n.partitions, partitionFrame{id: id, a: toSet(a), b: toSet(b)})
	return id
}

// PopPartition removes a previously pushed partition frame.
func (n *Network) PopPartition(id uint64) bool {
	for i, f := range n.partitions {
		if f.id == id {
			n.partitions = append(n.partitions[:i], n.partitions[i+1:]...)
			return true
		}
	}
	return false
}

func toSet(ids []simtime.NodeId) map[simtime.NodeId]bool {
	s := make(map[simtime.NodeId]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func (n *Network) isPartitioned(from, to simtime.NodeId) bool {
	for _, f := range n.partitions {
		if (f.a[from] && f.b[to]) || (f.a[to] && f.b[from]) {
			return true
		}
	}
	return false
}

// Offer runs the envelope through the fixed six-step delivery transform of
// spec §4.3 and returns the deliveries (zero, one, or more, per
// duplication) it produced, plus any drops for telemetry. now is the
// offering SimTime; size is the payload size in bytes for bandwidth
// accounting.
func (n *Network) Offer(now simtime.SimTime, env message.Envelope, size uint64) ([]Delivery, []Dropped) {
	link, ok := n.LinkBetween(env.Src, env.Dst)
	if !ok {
		// No link configured between these nodes: treat as an unconditional
		// partition rather than panicking, so a scenario that forgets to
		// wire a link fails closed instead of silently "just working".
		return nil, []Dropped{{Envelope: env, Reason: DropPartition}}
	}

	// Step 1: partition predicate (topology-level, from PushPartition) or a
	// link-local partition modifier frame.
	if n.isPartitioned(env.Src, env.Dst) || link.partitioned() {
		return nil, []Dropped{{Envelope: env, Reason: DropPartition}}
	}

	props := link.effective()

	// Step 2: independent loss draw, plus any standalone drop-selector
	// directives layered on top of the link's own loss probability (spec
	// §4.7 Drop(prob, selector, from, until)).
	if n.rngDrop.Draw(props.DropProbability) {
		return nil, []Dropped{{Envelope: env, Reason: DropLoss}}
	}
	for _, f := range n.dropSelectors {
		if f.matches(env.Src, env.Dst) && n.rngDropSelect.Draw(f.probability) {
			return nil, []Dropped{{Envelope: env, Reason: DropLoss}}
		}
	}

	// Step 3: duplication. Higher-order duplication is not drawn
	// recursively per copy (spec §4.3 step 3 parenthetical: "higher-order
	// duplication is configurable") — a single duplication draw yields at
	// most one extra copy in this engine.
	copies := 1
	if n.rngDup.Draw(props.DuplicationProbability) {
		copies = 2
	}

	deliveries := make([]Delivery, 0, copies)
	for i := 0; i < copies; i++ {
		// Step 4: delay = base_delay + jitter sample, reorder optionally
		// allowing a negative relative jitter bounded so t + d >= t.
		delay := n.sampleDelay(props)

		// Step 5: bandwidth accounting via the per-link next_available_time
		// cursor; a link with unlimited bandwidth neither reads nor advances it.
		deliverAt := now.Add(delay)
		if props.BandwidthBytesPerNs > 0 {
			if deliverAt.Before(link.nextAvailable) {
				deliverAt = link.nextAvailable
			}
			if size > 0 {
				transmitNs := size / props.BandwidthBytesPerNs
				if size%props.BandwidthBytesPerNs != 0 {
					transmitNs++
				}
				deliverAt = deliverAt.Add(simtime.DurationFromNanos(transmitNs))
			}
			link.nextAvailable = deliverAt
		}

		copyEnv := env.Clone()
		if n.rngCorrupt.Draw(props.CorruptionProbability) {
			copyEnv = copyEnv.WithCorrupt()
		}
		deliveries = append(deliveries, Delivery{At: deliverAt, Envelope: copyEnv})
	}

	// Step 6: the caller (coordinator) schedules the MessageDelivery
	// event(s) for each returned Delivery.
	return deliveries, nil
}

func (n *Network) sampleDelay(props LinkProps) simtime.Duration {
	if props.JitterMax.Nanos() == 0 {
		return props.BaseDelay
	}
	if !n.rngReorder.Draw(props.ReorderProbability) {
		offset := n.rngDelay.Uint64() % (props.JitterMax.Nanos() + 1)
		return props.BaseDelay.Add(simtime.DurationFromNanos(offset))
	}
	// This delivery draws as reorder-eligible: jitter may go negative,
	// bounded so base+jitter >= 0.
	span := 2*props.JitterMax.Nanos() + 1
	raw := n.rngDelay.Uint64() % span
	signedOffset := int64(raw) - int64(props.JitterMax.Nanos())
	base := int64(props.BaseDelay.Nanos())
	total := base + signedOffset
	if total < 0 {
		total = 0
	}
	return simtime.DurationFromNanos(uint64(total))
}
