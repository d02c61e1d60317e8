// Package network implements the directed-multigraph topology and delivery
// transform of spec §4.3: per-link delay/drop/duplication/reorder/bandwidth
// properties, a stacked partition predicate, and a reserved zero-cost
// loopback link per node. It is grounded on the teacher's
// packages/network/transport package (partition map, configurable
// loss/latency, drop/delivery handler split) generalized from the teacher's
// wall-clock goroutine delivery to scheduled SimTime events drawn from
// fixed-point RNG sub-streams.
package network

import (
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
)

// LoopbackLink is the reserved link id used for a node's self-delivery path.
// It carries zero delay and no loss by construction (§4.3 "Edge policies").
const LoopbackLink simtime.LinkId = 0

// LinkProps are the tunable per-link properties of spec §3 "Network link
// state": `{base_delay, jitter_distribution, drop_probability,
// duplication_probability, reorder_probability, bandwidth_limit,
// corruption_probability}`. The partition flag is not a LinkProps field: it
// is carried by modifier frames (see modifierFrame).
type LinkProps struct {
	BaseDelay              simtime.Duration
	JitterMax              simtime.Duration
	DropProbability        rng.Fraction64
	DuplicationProbability rng.Fraction64
	ReorderProbability     rng.Fraction64
	BandwidthBytesPerNs    uint64 // 0 means unlimited
	CorruptionProbability  rng.Fraction64
}

// modifierFrame is one pending stacked adjustment from a fault directive
// (LinkDegrade et al, spec §4.7): each numeric field is additive over the
// link's base LinkProps and frames are popped in LIFO-independent fashion —
// every frame simply contributes its delta until its own expiry event
// removes it, so two overlapping directives compose additively regardless
// of pop order. partitioned is not additive: it is true if any active frame
// set it, so the last one popped still releases the link.
type modifierFrame struct {
	id                       uint64
	deltaDelay               simtime.Duration
	deltaJitterMax           simtime.Duration
	deltaDropProbability     int64 // signed delta against Fraction64, clamped at apply time
	deltaDuplication         int64
	deltaReorderProbability  int64
	deltaBandwidth           int64 // signed delta against BandwidthBytesPerNs, clamped at apply time
	deltaCorruption          int64
	partitioned              bool
}

// ModifierDelta is the additive adjustment PushModifier stacks onto a
// link's base LinkProps. Zero-value fields contribute no change; Partitioned
// is the one non-additive field (see modifierFrame).
type ModifierDelta struct {
	DeltaDelay              simtime.Duration
	DeltaJitterMax          simtime.Duration
	DeltaDropProbability    int64
	DeltaDuplication        int64
	DeltaReorderProbability int64
	DeltaBandwidth          int64
	DeltaCorruption         int64
	Partitioned             bool
}

// Link is one directed edge of the network graph.
type Link struct {
	ID   simtime.LinkId
	From simtime.NodeId
	To   simtime.NodeId

	base    LinkProps
	frames  []modifierFrame
	nextID  uint64

	nextAvailable simtime.SimTime // bandwidth accounting cursor
}

func newLink(id simtime.LinkId, from, to simtime.NodeId, props LinkProps) *Link {
	return &Link{ID: id, From: from, To: to, base: props}
}

// effective folds the base properties with every active modifier frame.
func (l *Link) effective() LinkProps {
	p := l.base
	for _, f := range l.frames {
		p.BaseDelay = p.BaseDelay.Add(f.deltaDelay)
		p.JitterMax = p.JitterMax.Add(f.deltaJitterMax)
		p.DropProbability = applyDelta(p.DropProbability, f.deltaDropProbability)
		p.DuplicationProbability = applyDelta(p.DuplicationProbability, f.deltaDuplication)
		p.ReorderProbability = applyDelta(p.ReorderProbability, f.deltaReorderProbability)
		p.CorruptionProbability = applyDelta(p.CorruptionProbability, f.deltaCorruption)
		p.BandwidthBytesPerNs = applyUintDelta(p.BandwidthBytesPerNs, f.deltaBandwidth)
	}
	return p
}

func applyDelta(base rng.Fraction64, delta int64) rng.Fraction64 {
	if delta < 0 {
		dec := rng.Fraction64(uint64(-delta))
		if dec >= base {
			return 0
		}
		return base - dec
	}
	inc := rng.Fraction64(delta)
	if base > rng.FractionAlways-inc {
		return rng.FractionAlways
	}
	return base + inc
}

func applyUintDelta(base uint64, delta int64) uint64 {
	v := int64(base) + delta
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// partitioned reports whether any active modifier frame has flagged this
// link as partitioned.
func (l *Link) partitioned() bool {
	for _, f := range l.frames {
		if f.partitioned {
			return true
		}
	}
	return false
}

// PushModifier stacks a new frame on the link and returns a handle for
// later removal via PopModifier.
func (l *Link) PushModifier(d ModifierDelta) uint64 {
	l.nextID++
	id := l.nextID
	l.frames = append(l.frames, modifierFrame{
		id:                      id,
		deltaDelay:              d.DeltaDelay,
		deltaJitterMax:          d.DeltaJitterMax,
		deltaDropProbability:    d.DeltaDropProbability,
		deltaDuplication:        d.DeltaDuplication,
		deltaReorderProbability: d.DeltaReorderProbability,
		deltaBandwidth:          d.DeltaBandwidth,
		deltaCorruption:         d.DeltaCorruption,
		partitioned:             d.Partitioned,
	})
	return id
}

// PopModifier removes the frame with the given handle, if present.
func (l *Link) PopModifier(id uint64) bool {
	for i, f := range l.frames {
		if f.id == id {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return true
		}
	}
	return false
}

// SetBase replaces the link's base properties. The LinkSet directive does
// not use it: fault.Expand turns LinkSet into an additive modifier frame.
func (l *Link) SetBase(props LinkProps) {
	l.base = props
}
