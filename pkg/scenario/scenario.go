// Package scenario defines the typed in-memory shape a scenario is loaded
// into before the fault injector and coordinator consume it (spec §4.7,
// §4.9). Parsing scenario source text (YAML) is explicitly out of core
// scope and lives in internal/yamlscenario; this package only defines the
// taxonomy.
package scenario

import (
	"github.com/19h/ftsim/pkg/event"
	"github.com/19h/ftsim/pkg/network"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
)

// NodeSpec describes one node to instantiate at scenario load time.
type NodeSpec struct {
	ID            simtime.NodeId
	Protocol      string // looked up in a protocol factory registry by cmd/simcore
	InboxCapacity int
}

// LinkSpec describes one directed link to wire into the network graph.
type LinkSpec struct {
	From, To simtime.NodeId
	Props    network.LinkProps
}

// DirectiveKind enumerates every fault-injector directive shape of spec
// §4.7.
type DirectiveKind int

const (
	DirectiveCrash DirectiveKind = iota
	DirectiveRestart
	DirectivePause
	DirectiveResume
	DirectivePartition
	DirectiveLinkSet
	DirectiveDrop
	DirectiveClockSkew
	DirectiveByzantineInject
	DirectiveStorageFault
)

// Directive is one scenario-scheduled fault-injection action. Only the
// fields relevant to Kind are populated; Until is nil for instantaneous
// directives (Crash, Restart, ByzantineInject) and set for windowed ones
// (Partition, LinkSet, Drop, StorageFault) per spec §4.7's "modifier frame"
// stacking semantics.
type Directive struct {
	Kind DirectiveKind
	At   simtime.SimTime
	Until *simtime.SimTime

	Node simtime.NodeId // Crash/Restart/Pause/Resume/ClockSkew/ByzantineInject/StorageFault

	GroupA, GroupB []simtime.NodeId // Partition

	Link            simtime.LinkId // LinkSet
	LinkProps       *network.LinkProps
	LinkPartitioned *bool // LinkSet: windowed link-local partition toggle

	DropProbability rng.Fraction64 // Drop
	DropSelectorSrc *simtime.NodeId
	DropSelectorDst *simtime.NodeId

	ClockSkewOffset simtime.Duration // ClockSkew

	ByzantinePayload []byte             // ByzantineInject
	ByzantineSrc     *simtime.NodeId    // ByzantineInject: forged source, defaults to Node itself

	StorageFaultKind   event.StorageFaultKind // StorageFault
	StorageFaultParams event.StorageFaultParams
}

// Scenario is the fully-parsed, validated input to a simulation run.
type Scenario struct {
	Seed       uint64
	Horizon    simtime.SimTime
	Nodes      []NodeSpec
	Links      []LinkSpec
	Directives []Directive

	// QuiescenceSilenceWindow configures the Quiescence termination
	// condition (spec §4.9): the run is quiescent once every event still in
	// the queue is a periodic SnapshotTick scheduled at or after
	// Now+QuiescenceSilenceWindow, i.e. nothing but far-future housekeeping
	// remains. Zero means "empty queue" is the only quiescent state.
	QuiescenceSilenceWindow simtime.Duration

	// SnapshotInterval, when non-zero, makes the coordinator reschedule a
	// KindSnapshotTick event this far after Now every time one fires,
	// giving the engine a genuine periodic snapshot cadence.
	SnapshotInterval simtime.Duration
}

// File is the top-level artifact cmd/simcore loads: a Scenario plus
// metadata that never affects simulated behavior (a human-facing name and
// description).
type File struct {
	Name        string
	Description string
	Scenario    Scenario
}
