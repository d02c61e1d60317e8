// Package fault converts scenario directives into scheduled events and
// applies the windowed ones as stacked modifier frames on the network or a
// node's store, per spec §4.7. It is grounded on the teacher's
// packages/failure/injector package for the "read a directive list, drive
// the affected subsystem" shape, though the teacher injects faults
// immediately via direct transport calls rather than scheduling them.
package fault

import (
	"github.com/19h/ftsim/pkg/event"
	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/network"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
)

// TimedEvent pairs a scenario-scheduled Event with the SimTime it should be
// pushed onto the event queue at.
type TimedEvent struct {
	At simtime.SimTime
	Ev event.Event
}

// Expand converts a scenario's directive list into the Events the
// Scenario Scheduler pushes onto the event queue at load time (spec
// §4.7/§4.9). Windowed directives (Partition, LinkSet, Drop, StorageFault)
// produce a begin event and, when Until is set, a paired end event
// sharing a Token the coordinator uses to find the begin side's pushed
// modifier-frame handle; instantaneous directives (Crash, Restart, Pause,
// Resume, ByzantineInject) produce a single NodeLifecycle (or, for
// ByzantineInject, a MessageDelivery) event. ClockSkew produces no event.
func Expand(directives []scenario.Directive) []TimedEvent {
	var out []TimedEvent
	var token uint64

	for _, d := range directives {
		switch d.Kind {
		case scenario.DirectiveCrash:
			out = append(out, TimedEvent{d.At, event.Event{Kind: event.KindNodeLifecycle,
				Lifecycle: &event.Lifecycle{Node: d.Node, Kind: event.LifecycleCrash}}})
		case scenario.DirectiveRestart:
			out = append(out, TimedEvent{d.At, event.Event{Kind: event.KindNodeLifecycle,
				Lifecycle: &event.Lifecycle{Node: d.Node, Kind: event.LifecycleRestart}}})
		case scenario.DirectivePause:
			out = append(out, TimedEvent{d.At, event.Event{Kind: event.KindNodeLifecycle,
				Lifecycle: &event.Lifecycle{Node: d.Node, Kind: event.LifecyclePause}}})
		case scenario.DirectiveResume:
			out = append(out, TimedEvent{d.At, event.Event{Kind: event.KindNodeLifecycle,
				Lifecycle: &event.Lifecycle{Node: d.Node, Kind: event.LifecycleResume}}})

		case scenario.DirectivePartition:
			token++
			out = append(out,
				TimedEvent{d.At, event.Event{Kind: event.KindNetDirective, Net: &event.NetDirective{
					Kind: event.NetPartitionBegin, Token: token, GroupA: d.GroupA, GroupB: d.GroupB,
				}}})
			if d.Until != nil {
				out = append(out, TimedEvent{*d.Until, event.Event{Kind: event.KindNetDirective, Net: &event.NetDirective{
					Kind: event.NetPartitionEnd, Token: token, GroupA: d.GroupA, GroupB: d.GroupB,
				}}})
			}

		case scenario.DirectiveLinkSet:
			token++
			delta := &event.LinkDelta{}
			if d.LinkProps != nil {
				delay := d.LinkProps.BaseDelay
				jitter := d.LinkProps.JitterMax
				drop := d.LinkProps.DropProbability
				dup := d.LinkProps.DuplicationProbability
				reorder := d.LinkProps.ReorderProbability
				corrupt := d.LinkProps.CorruptionProbability
				bw := d.LinkProps.BandwidthBytesPerNs
				delta.BaseDelay = &delay
				delta.JitterMax = &jitter
				delta.DropProbability = &drop
				delta.DuplicationProbability = &dup
				delta.ReorderProbability = &reorder
				delta.CorruptionProbability = &corrupt
				delta.BandwidthBytesPerNs = &bw
			}
			delta.Partitioned = d.LinkPartitioned
			out = append(out,
				TimedEvent{d.At, event.Event{Kind: event.KindNetDirective, Net: &event.NetDirective{
					Kind: event.NetLinkDegrade, Token: token, Link: d.Link, Delta: delta,
				}}})
			if d.Until != nil {
				out = append(out, TimedEvent{*d.Until, event.Event{Kind: event.KindNetDirective, Net: &event.NetDirective{
					Kind: event.NetLinkRestore, Token: token, Link: d.Link,
				}}})
			}

		case scenario.DirectiveDrop:
			// Applied as a standalone selector-scoped loss draw at the
			// Network layer (spec §4.7 Drop(prob, selector, from, until)),
			// independent of any link's own DropProbability — the selector
			// matches the (src, dst) pair directly rather than requiring
			// the scenario to name a specific Link id.
			token++
			out = append(out,
				TimedEvent{d.At, event.Event{Kind: event.KindNetDirective, Net: &event.NetDirective{
					Kind: event.NetDropSelectorBegin, Token: token,
					DropSelectorSrc: d.DropSelectorSrc, DropSelectorDst: d.DropSelectorDst,
					DropProbability: d.DropProbability,
				}}})
			if d.Until != nil {
				out = append(out, TimedEvent{*d.Until, event.Event{Kind: event.KindNetDirective, Net: &event.NetDirective{
					Kind: event.NetDropSelectorEnd, Token: token,
				}}})
			}

		case scenario.DirectiveStorageFault:
			token++
			out = append(out,
				TimedEvent{d.At, event.Event{Kind: event.KindStorageDirective, Storage: &event.StorageDirective{
					Node: d.Node, Kind: d.StorageFaultKind, Params: d.StorageFaultParams, Token: token,
				}}})
			if d.Until != nil {
				out = append(out, TimedEvent{*d.Until, event.Event{Kind: event.KindStorageDirective, Storage: &event.StorageDirective{
					Node: d.Node, Kind: d.StorageFaultKind, Clear: true, Token: token,
				}}})
			}

		case scenario.DirectiveByzantineInject:
			// Builds a forged Envelope directly, bypassing the network
			// delivery transform entirely (spec §4.7 ByzantineInject(node,
			// payload): "deliver an adversarial payload as if it came from
			// the network"). Src defaults to the target node itself (a
			// self-directed forged message) unless the directive names an
			// impersonated source. Trace/Msg are left zero-valued: Expand
			// is a pure function of the directive list and has no access to
			// the World's trace/msg id allocator, which is an acceptable
			// scope limit for an adversarially-injected message that never
			// correlates with a real request/response chain anyway.
			src := d.Node
			if d.ByzantineSrc != nil {
				src = *d.ByzantineSrc
			}
			env := message.Envelope{Src: src, Dst: d.Node, Created: d.At, Payload: d.ByzantinePayload}.WithCorrupt()
			out = append(out, TimedEvent{d.At, event.Event{Kind: event.KindMessageDelivery,
				Delivery: &event.Delivery{Envelope: env}}})

		case scenario.DirectiveClockSkew:
			// Clock skew offsets what ctx.Now() reports without touching
			// world.now (spec §4.7); applying it is the coordinator's job
			// (it owns the node's skew offset table), so Expand only
			// carries the directive through as a NodeLifecycle-shaped
			// marker is inappropriate — clock skew is applied directly by
			// the caller reading the original Directive rather than
			// through an Event, since it has no queue-visible effect.
		}
	}
	return out
}

// ApplyPartitionBegin pushes a stacked partition frame for a
// NetPartitionBegin event and returns the handle needed to reverse it.
func ApplyPartitionBegin(net *network.Network, d *event.NetDirective) uint64 {
	return net.PushPartition(d.GroupA, d.GroupB)
}

// ApplyPartitionEnd pops a previously pushed partition frame.
func ApplyPartitionEnd(net *network.Network, handle uint64) {
	net.PopPartition(handle)
}

// ApplyLinkDegradeBegin pushes a stacked modifier frame on the named link
// from a NetLinkDegrade event, returning the handle needed to reverse it.
// Two overlapping LinkDegrade directives compose additively, per spec
// §4.7, since Link.PushModifier always adds its delta on top of whatever
// is already stacked; Partitioned is the one non-additive field (any active
// frame setting it wins, until that specific frame is popped).
func ApplyLinkDegradeBegin(net *network.Network, d *event.NetDirective) (uint64, bool) {
	link, ok := net.LinkByID(d.Link)
	if !ok {
		return 0, false
	}
	var delta network.ModifierDelta
	if d.Delta != nil {
		if d.Delta.BaseDelay != nil {
			delta.DeltaDelay = *d.Delta.BaseDelay
		}
		if d.Delta.JitterMax != nil {
			delta.DeltaJitterMax = *d.Delta.JitterMax
		}
		if d.Delta.DropProbability != nil {
			delta.DeltaDropProbability = int64(*d.Delta.DropProbability)
		}
		if d.Delta.DuplicationProbability != nil {
			delta.DeltaDuplication = int64(*d.Delta.DuplicationProbability)
		}
		if d.Delta.ReorderProbability != nil {
			delta.DeltaReorderProbability = int64(*d.Delta.ReorderProbability)
		}
		if d.Delta.CorruptionProbability != nil {
			delta.DeltaCorruption = int64(*d.Delta.CorruptionProbability)
		}
		if d.Delta.BandwidthBytesPerNs != nil {
			delta.DeltaBandwidth = int64(*d.Delta.BandwidthBytesPerNs)
		}
		if d.Delta.Partitioned != nil {
			delta.Partitioned = *d.Delta.Partitioned
		}
	}
	handle := link.PushModifier(delta)
	return handle, true
}

// ApplyLinkDegradeEnd pops a previously pushed link modifier frame.
func ApplyLinkDegradeEnd(net *network.Network, linkID simtime.LinkId, handle uint64) {
	if link, ok := net.LinkByID(linkID); ok {
		link.PopModifier(handle)
	}
}

// ApplyDropSelectorBegin pushes a standalone (src, dst)-scoped loss frame
// from a NetDropSelectorBegin event, returning the handle needed to reverse
// it.
func ApplyDropSelectorBegin(net *network.Network, d *event.NetDirective) uint64 {
	return net.PushDropSelector(d.DropSelectorSrc, d.DropSelectorDst, d.DropProbability)
}

// ApplyDropSelectorEnd pops a previously pushed drop-selector frame.
func ApplyDropSelectorEnd(net *network.Network, handle uint64) {
	net.PopDropSelector(handle)
}

// ApplyStorageFaultBegin pushes a stacked override frame on fs for a
// StorageDirective event, returning the handle needed to reverse it.
func ApplyStorageFaultBegin(fs *storage.FaultyStore, d *event.StorageDirective) uint64 {
	override := storage.FaultOverride{}
	switch d.Kind {
	case event.StorageLatency:
		override.LatencyMin = &d.Params.LatencyMin
		override.LatencyMax = &d.Params.LatencyMax
	case event.StorageTornWrite:
		p := d.Params.Probability
		override.TornProbability = &p
	case event.StorageSyncLoss:
		p := d.Params.Probability
		override.SyncLossProbability = &p
	case event.StorageReadCorrupt:
		p := d.Params.Probability
		override.ReadCorruptProbability = &p
	}
	return fs.PushFault(override)
}

// ApplyStorageFaultEnd pops a previously pushed storage fault frame.
func ApplyStorageFaultEnd(fs *storage.FaultyStore, handle uint64) {
	fs.PopFault(handle)
}
