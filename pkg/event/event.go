// Package event defines the tagged variant of everything the coordinator
// can dispatch (spec §3 "Event"). Go has no native sum types, so Event is a
// struct with a Kind discriminator and one populated payload pointer per
// kind — the same shape the teacher's packages/visualization/events package
// uses for its BaseEvent-embedding event structs, generalized here to cover
// the engine's own dispatch loop rather than just UI notifications.
package event

import (
	"fmt"

	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
)

// Kind discriminates the variant carried by an Event.
type Kind int

const (
	KindMessageDelivery Kind = iota
	KindTimerFire
	KindNodeLifecycle
	KindNetDirective
	KindStorageDirective
	KindSnapshotTick
	KindHalt
)

func (k Kind) String() string {
	switch k {
	case KindMessageDelivery:
		return "message_delivery"
	case KindTimerFire:
		return "timer_fire"
	case KindNodeLifecycle:
		return "node_lifecycle"
	case KindNetDirective:
		return "net_directive"
	case KindStorageDirective:
		return "storage_directive"
	case KindSnapshotTick:
		return "snapshot_tick"
	case KindHalt:
		return "halt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is the unit of work the coordinator pops from the event queue and
// dispatches. At most one of the payload fields is non-nil, matching Kind;
// a SnapshotTick carries none.
type Event struct {
	Kind Kind

	Delivery  *Delivery
	Timer     *TimerFire
	Lifecycle *Lifecycle
	Net       *NetDirective
	Storage   *StorageDirective
	Halt      *Halt
}

// Delivery carries an envelope that has reached the end of the network's
// delivery transform and is ready to be handed to its destination node.
type Delivery struct {
	Envelope message.Envelope
}

// TimerFire fires a timer previously set by a node's protocol handler.
type TimerFire struct {
	Node    simtime.NodeId
	Timer   simtime.TimerId
	Payload []byte
}

// LifecycleKind enumerates the node lifecycle transitions of spec §3.
type LifecycleKind int

const (
	LifecycleStart LifecycleKind = iota
	LifecycleCrash
	LifecycleRestart
	LifecyclePause
	LifecycleResume
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleStart:
		return "start"
	case LifecycleCrash:
		return "crash"
	case LifecycleRestart:
		return "restart"
	case LifecyclePause:
		return "pause"
	case LifecycleResume:
		return "resume"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(k))
	}
}

// Lifecycle drives a node through the state machine of spec §3.
type Lifecycle struct {
	Node simtime.NodeId
	Kind LifecycleKind
}

// NetDirectiveKind enumerates the network-affecting directive shapes.
type NetDirectiveKind int

const (
	NetPartitionBegin NetDirectiveKind = iota
	NetPartitionEnd
	NetLinkDegrade
	NetLinkRestore
	NetDropSelectorBegin
	NetDropSelectorEnd
)

func (k NetDirectiveKind) String() string {
	switch k {
	case NetPartitionBegin:
		return "partition_begin"
	case NetPartitionEnd:
		return "partition_end"
	case NetLinkDegrade:
		return "link_degrade"
	case NetLinkRestore:
		return "link_restore"
	case NetDropSelectorBegin:
		return "drop_selector_begin"
	case NetDropSelectorEnd:
		return "drop_selector_end"
	default:
		return fmt.Sprintf("net_directive(%d)", int(k))
	}
}

// LinkDelta is a modifier frame pushed onto (NetLinkDegrade) or popped from
// (NetLinkRestore) a link's property stack; nil fields in a push mean
// "inherit the link's current value for this property" (contribute no
// change). Partitioned, when set, is the windowed directive's own
// link-local partition toggle — distinct from the topology-level group
// partition pushed by NetPartitionBegin.
type LinkDelta struct {
	DropProbability        *rng.Fraction64
	DuplicationProbability *rng.Fraction64
	ReorderProbability     *rng.Fraction64
	CorruptionProbability  *rng.Fraction64
	BaseDelay              *simtime.Duration
	JitterMax              *simtime.Duration
	BandwidthBytesPerNs    *uint64
	Partitioned            *bool
}

// NetDirective is a scheduled partition, link-property change, or
// standalone drop-selector directive.
type NetDirective struct {
	Kind NetDirectiveKind

	// Token correlates a *Begin/*Degrade event with its paired *End/
	// *Restore event, so the coordinator can look up the modifier-frame
	// handle the begin side pushed and pop exactly that frame. Assigned by
	// the scenario scheduler at load time; it has no bearing on RNG
	// determinism, it is pure bookkeeping.
	Token uint64

	// Used by PartitionBegin/PartitionEnd: every node in GroupA is
	// partitioned from every node in GroupB (and vice versa) while active.
	GroupA []simtime.NodeId
	GroupB []simtime.NodeId

	// Used by LinkDegrade/LinkRestore.
	Link  simtime.LinkId
	Delta *LinkDelta

	// Used by DropSelectorBegin/DropSelectorEnd (spec §4.7 Drop(prob,
	// selector, from, until)): nil Src/Dst means "matches any node".
	DropSelectorSrc *simtime.NodeId
	DropSelectorDst *simtime.NodeId
	DropProbability rng.Fraction64
}

// StorageFaultKind enumerates the storage fault modifier kinds of spec §4.4.
type StorageFaultKind int

const (
	StorageLatency StorageFaultKind = iota
	StorageTornWrite
	StorageSyncLoss
	StorageReadCorrupt
)

func (k StorageFaultKind) String() string {
	switch k {
	case StorageLatency:
		return "latency"
	case StorageTornWrite:
		return "torn_write"
	case StorageSyncLoss:
		return "sync_loss"
	case StorageReadCorrupt:
		return "read_corrupt"
	default:
		return fmt.Sprintf("storage_fault(%d)", int(k))
	}
}

// StorageFaultParams parametrizes a storage fault modifier frame.
type StorageFaultParams struct {
	Probability rng.Fraction64
	LatencyMin  simtime.Duration
	LatencyMax  simtime.Duration
}

// StorageDirective pushes (Clear == false) or pops (Clear == true) a fault
// modifier frame on a node's store.
type StorageDirective struct {
	Node   simtime.NodeId
	Kind   StorageFaultKind
	Params StorageFaultParams
	Clear  bool

	// Token correlates a push with its pop, exactly like NetDirective.Token.
	Token uint64
}

// Halt carries the operator-visible reason the run should stop, when it was
// requested as an explicit scheduled event rather than derived from horizon
// or quiescence.
type Halt struct {
	Reason string
}
