package clock

import (
	"sort"

	"github.com/19h/ftsim/pkg/simtime"
)

// Relation describes the causal relationship between two vector clock
// readings.
type Relation int

const (
	// HappensBefore indicates the receiver causally precedes the argument.
	HappensBefore Relation = iota
	// HappensAfter indicates the argument causally precedes the receiver.
	HappensAfter
	// Concurrent indicates neither side causally precedes the other.
	Concurrent
	// Equal indicates identical clocks.
	Equal
)

// Vector implements a vector clock keyed by NodeId (rather than the
// teacher's string node names, to match this repo's typed identifiers).
type Vector struct {
	self  simtime.NodeId
	clock map[simtime.NodeId]uint64
}

// NewVector creates a vector clock for self, with an entry for every member
// of members initialized to 0.
func NewVector(self simtime.NodeId, members []simtime.NodeId) *Vector {
	v := &Vector{self: self, clock: make(map[simtime.NodeId]uint64, len(members))}
	for _, m := range members {
		v.clock[m] = 0
	}
	v.clock[self] = 0
	return v
}

// Self returns the node this clock belongs to.
func (v *Vector) Self() simtime.NodeId { return v.self }

// Snapshot returns a copy of the current clock values. The result is a
// plain map, so its iteration order is not defined.
func (v *Vector) Snapshot() map[simtime.NodeId]uint64 {
	return v.copy()
}

// Get returns the clock's value for the given node.
func (v *Vector) Get(node simtime.NodeId) uint64 {
	return v.clock[node]
}

// Tick increments this node's own component for a local event and returns
// the new snapshot.
func (v *Vector) Tick() map[simtime.NodeId]uint64 {
	v.clock[v.self]++
	return v.copy()
}

// Merge folds a received vector clock into the local one: each component
// becomes max(local, received), then this node's own component increments.
func (v *Vector) Merge(received map[simtime.NodeId]uint64) map[simtime.NodeId]uint64 {
	for k, val := range received {
		if val > v.clock[k] {
			v.clock[k] = val
		}
	}
	v.clock[v.self]++
	return v.copy()
}

// Compare determines the causal relationship between this clock and other.
func (v *Vector) Compare(other map[simtime.NodeId]uint64) Relation {
	return CompareVectors(v.clock, other)
}

// CompareVectors compares two vector clock readings directly.
func CompareVectors(a, b map[simtime.NodeId]uint64) Relation {
	keys := make(map[simtime.NodeId]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	ordered := make([]simtime.NodeId, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	aLessOrEqual, bLessOrEqual, equal := true, true, true
	for _, k := range ordered {
		av, bv := a[k], b[k]
		if av != bv {
			equal = false
		}
		if av > bv {
			bLessOrEqual = false
		}
		if bv > av {
			aLessOrEqual = false
		}
	}

	switch {
	case equal:
		return Equal
	case aLessOrEqual && !bLessOrEqual:
		return HappensBefore
	case bLessOrEqual && !aLessOrEqual:
		return HappensAfter
	default:
		return Concurrent
	}
}

// Clone returns an independent copy of the vector clock.
func (v *Vector) Clone() *Vector {
	clone := &Vector{self: v.self, clock: v.copy()}
	return clone
}

func (v *Vector) copy() map[simtime.NodeId]uint64 {
	out := make(map[simtime.NodeId]uint64, len(v.clock))
	for k, val := range v.clock {
		out[k] = val
	}
	return out
}
