package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/19h/ftsim/pkg/event"
	"github.com/19h/ftsim/pkg/eventqueue"
	"github.com/19h/ftsim/pkg/fault"
	"github.com/19h/ftsim/pkg/node"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
)

type partitionHandle struct{ handle uint64 }

type linkHandle struct {
	link   simtime.LinkId
	handle uint64
}

type storageHandle struct {
	node   simtime.NodeId
	handle uint64
}

type dropSelectorHandle struct{ handle uint64 }

// Simulation is the Coordinator of spec §4.9: it exclusively owns the
// World and the EventQueue and drives the seven-step dispatch loop.
// Grounded on the teacher's packages/simulation/engine.Engine for the
// external shape (node registry access via World, ControlCh, Pause/Resume/
// Step/Stop), generalized from the teacher's wall-clock ticking goroutine
// to a deterministic pop-dispatch-commit loop over simtime.SimTime.
type Simulation struct {
	World   *World
	Queue   *eventqueue.Queue
	Now     simtime.SimTime
	Horizon simtime.SimTime

	// QuiescenceSilenceWindow and SnapshotInterval are populated from the
	// loaded scenario by LoadScenario; see scenario.Scenario for their
	// semantics.
	QuiescenceSilenceWindow simtime.Duration
	SnapshotInterval        simtime.Duration

	ControlCh chan Command

	paused      bool
	stepCredits int
	stopped     bool
	dispatched  uint64

	partitionHandles    map[uint64]partitionHandle
	linkHandles         map[uint64]linkHandle
	storageHandles      map[uint64]storageHandle
	dropSelectorHandles map[uint64]dropSelectorHandle
}

// New creates a Simulation over world, stopping once no event remains with
// a scheduled time at or before horizon.
func New(world *World, horizon simtime.SimTime) *Simulation {
	return &Simulation{
		World:               world,
		Queue:               eventqueue.New(),
		Horizon:             horizon,
		ControlCh:           make(chan Command, 16),
		partitionHandles:    make(map[uint64]partitionHandle),
		linkHandles:         make(map[uint64]linkHandle),
		storageHandles:      make(map[uint64]storageHandle),
		dropSelectorHandles: make(map[uint64]dropSelectorHandle),
	}
}

// Schedule pushes a raw event to fire at t, returning its EventSeq.
func (s *Simulation) Schedule(t simtime.SimTime, ev event.Event) simtime.EventSeq {
	return s.Queue.Push(t, ev)
}

// LoadScenario instantiates every node and link named by sc, pushes each
// node's initial Start lifecycle event at time zero, and expands sc's
// directives onto the queue via pkg/fault. registry resolves a NodeSpec's
// Protocol name to the factory that constructs fresh protocol.Core
// instances (used both for the initial instance and for any later Restart).
func (s *Simulation) LoadScenario(sc scenario.Scenario, registry map[string]func() protocol.Core) error {
	s.QuiescenceSilenceWindow = sc.QuiescenceSilenceWindow
	s.SnapshotInterval = sc.SnapshotInterval
	for _, n := range sc.Nodes {
		factory, ok := registry[n.Protocol]
		if !ok {
			return fmt.Errorf("sim: no protocol registered for %q (node %d)", n.Protocol, n.ID)
		}
		members := make([]simtime.NodeId, 0, len(sc.Nodes))
		for _, other := range sc.Nodes {
			members = append(members, other.ID)
		}
		storeRNG := s.World.RNG.Derive(fmt.Sprintf("store-%d", uint32(n.ID)))
		store := storage.NewFaultyStore(storage.NewInMemoryStore(), storeRNG, storage.FaultParams{})
		s.World.AddNode(n.ID, factory, store, n.InboxCapacity, members)
		s.Schedule(simtime.Zero, event.Event{Kind: event.KindNodeLifecycle,
			Lifecycle: &event.Lifecycle{Node: n.ID, Kind: event.LifecycleStart}})
	}
	for _, l := range sc.Links {
		s.World.Net.AddLink(l.From, l.To, l.Props)
	}
	for _, te := range fault.Expand(sc.Directives) {
		s.Schedule(te.At, te.Ev)
	}
	if sc.SnapshotInterval.Nanos() > 0 {
		s.Schedule(simtime.Zero.Add(sc.SnapshotInterval), event.Event{Kind: event.KindSnapshotTick})
	}

	// ClockSkew has no queue-visible effect (spec §4.7), so it is applied
	// directly here rather than through an expanded Event; it is a static
	// per-node offset fixed at load time rather than a scheduled change.
	for _, d := range sc.Directives {
		if d.Kind != scenario.DirectiveClockSkew {
			continue
		}
		if rt, ok := s.World.Nodes[d.Node]; ok {
			rt.SetClockSkew(d.ClockSkewOffset)
		}
	}
	return nil
}

// Run drives the seven-step loop of spec §4.9 until one of the four
// termination conditions is reached or ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) (Outcome, error) {
	for {
		if err := s.drainControl(ctx); err != nil {
			return s.outcome(ReasonExternalStop), err
		}
		if s.stopped {
			return s.outcome(ReasonExternalStop), nil
		}
		if ctx.Err() != nil {
			return s.outcome(ReasonExternalStop), nil
		}

		if s.paused && s.stepCredits <= 0 {
			select {
			case cmd := <-s.ControlCh:
				s.applyCommand(cmd)
			case <-ctx.Done():
				return s.outcome(ReasonExternalStop), nil
			}
			continue
		}

		peek, ok := s.Queue.PeekTime()
		if !ok {
			return s.outcome(ReasonQuiescence), nil
		}
		if s.isQuiescent() {
			return s.outcome(ReasonQuiescence), nil
		}
		if peek.After(s.Horizon) {
			return s.outcome(ReasonHorizon), nil
		}

		entry, ok := s.Queue.Pop()
		if !ok {
			return s.outcome(ReasonQuiescence), nil
		}
		s.Now = entry.Time
		ev := entry.Value.(event.Event)

		if ev.Kind == event.KindHalt {
			s.dispatched++
			return s.outcome(ReasonHalt), nil
		}

		s.dispatch(ev)
		s.dispatched++

		if s.paused {
			s.stepCredits--
		}
	}
}

func (s *Simulation) outcome(reason TerminationReason) Outcome {
	return Outcome{Reason: reason, FinalTime: s.Now, EventsDispatched: s.dispatched}
}

// isQuiescent reports whether the run has reached spec §4.9's Quiescence
// termination condition: the queue is empty, or — when
// QuiescenceSilenceWindow is configured — every entry still in the queue is
// a periodic SnapshotTick scheduled at or beyond Now+QuiescenceSilenceWindow,
// i.e. nothing but far-future housekeeping remains. With the window left at
// zero, only the empty-queue case applies.
func (s *Simulation) isQuiescent() bool {
	entries := s.Queue.Entries()
	if len(entries) == 0 {
		return true
	}
	if s.QuiescenceSilenceWindow.Nanos() == 0 {
		return false
	}
	threshold := s.Now.Add(s.QuiescenceSilenceWindow)
	for _, e := range entries {
		ev, ok := e.Value.(event.Event)
		if !ok || ev.Kind != event.KindSnapshotTick {
			return false
		}
		if e.Time.Before(threshold) {
			return false
		}
	}
	return true
}

// drainControl processes every command already queued without blocking, so
// a Pause/Stop takes effect before the next event is popped (spec §4.9
// step 1).
func (s *Simulation) drainControl(ctx context.Context) error {
	for {
		select {
		case cmd := <-s.ControlCh:
			s.applyCommand(cmd)
		case <-ctx.Done():
			return nil
		default:
			return nil
		}
	}
}

func (s *Simulation) applyCommand(cmd Command) {
	switch cmd.Kind {
	case CmdPause:
		s.paused = true
		s.stepCredits = 0
	case CmdResume:
		s.paused = false
	case CmdStep:
		n := cmd.StepCount
		if n <= 0 {
			n = 1
		}
		s.paused = true
		s.stepCredits += n
	case CmdStop:
		s.stopped = true
	case CmdInject:
		if cmd.Directive == nil {
			return
		}
		for _, te := range fault.Expand([]scenario.Directive{*cmd.Directive}) {
			at := te.At
			if at.Before(s.Now) {
				at = s.Now
			}
			s.Schedule(at, te.Ev)
		}
	}
}

func (s *Simulation) dispatch(ev event.Event) {
	switch ev.Kind {
	case event.KindMessageDelivery:
		s.dispatchDelivery(ev.Delivery)
	case event.KindTimerFire:
		s.dispatchTimer(ev.Timer)
	case event.KindNodeLifecycle:
		s.dispatchLifecycle(ev.Lifecycle)
	case event.KindNetDirective:
		s.dispatchNetDirective(ev.Net)
	case event.KindStorageDirective:
		s.dispatchStorageDirective(ev.Storage)
	case event.KindSnapshotTick:
		s.emitSnapshot()
		if s.SnapshotInterval.Nanos() > 0 {
			s.Schedule(s.Now.Add(s.SnapshotInterval), event.Event{Kind: event.KindSnapshotTick})
		}
	}
}

func (s *Simulation) dispatchDelivery(d *event.Delivery) {
	rt, ok := s.World.Nodes[d.Envelope.Dst]
	if !ok {
		return
	}
	effects, delivered := rt.DeliverMessage(s.Now, d.Envelope)
	if delivered {
		s.commitEffects(d.Envelope.Dst, effects)
	}
}

func (s *Simulation) dispatchTimer(t *event.TimerFire) {
	rt, ok := s.World.Nodes[t.Node]
	if !ok {
		return
	}
	if _, live := rt.Timers.Remove(t.Timer); !live {
		return
	}
	effects := rt.FireTimer(s.Now, t.Timer, t.Payload)
	s.commitEffects(t.Node, effects)
}

func (s *Simulation) dispatchLifecycle(l *event.Lifecycle) {
	rt, ok := s.World.Nodes[l.Node]
	if !ok {
		return
	}
	switch l.Kind {
	case event.LifecycleStart:
		s.commitEffects(l.Node, rt.Start(s.Now))
	case event.LifecycleCrash:
		for _, seq := range rt.Crash(s.Now) {
			s.Queue.Cancel(seq)
		}
		if fs, ok := rt.Store.(*storage.FaultyStore); ok {
			fs.OnCrash()
		}
		if s.World.Bus != nil {
			s.World.Bus.MetricInc("node.crash", map[string]string{"node": fmt.Sprint(uint32(l.Node))}, 1)
		}
	case event.LifecycleRestart:
		factory, ok := s.World.ProtocolFactories[l.Node]
		if !ok {
			return
		}
		s.commitEffects(l.Node, rt.Restart(s.Now, factory()))
		for _, eff := range rt.DrainPending(s.Now) {
			s.commitEffects(l.Node, eff)
		}
	case event.LifecyclePause:
		rt.Pause()
	case event.LifecycleResume:
		rt.Resume()
		for _, eff := range rt.DrainPending(s.Now) {
			s.commitEffects(l.Node, eff)
		}
	}
}

func (s *Simulation) dispatchNetDirective(d *event.NetDirective) {
	switch d.Kind {
	case event.NetPartitionBegin:
		h := fault.ApplyPartitionBegin(s.World.Net, d)
		s.partitionHandles[d.Token] = partitionHandle{handle: h}
	case event.NetPartitionEnd:
		if ph, ok := s.partitionHandles[d.Token]; ok {
			fault.ApplyPartitionEnd(s.World.Net, ph.handle)
			delete(s.partitionHandles, d.Token)
		}
	case event.NetLinkDegrade:
		if h, ok := fault.ApplyLinkDegradeBegin(s.World.Net, d); ok {
			s.linkHandles[d.Token] = linkHandle{link: d.Link, handle: h}
		}
	case event.NetLinkRestore:
		if lh, ok := s.linkHandles[d.Token]; ok {
			fault.ApplyLinkDegradeEnd(s.World.Net, lh.link, lh.handle)
			delete(s.linkHandles, d.Token)
		}
	case event.NetDropSelectorBegin:
		h := fault.ApplyDropSelectorBegin(s.World.Net, d)
		s.dropSelectorHandles[d.Token] = dropSelectorHandle{handle: h}
	case event.NetDropSelectorEnd:
		if dh, ok := s.dropSelectorHandles[d.Token]; ok {
			fault.ApplyDropSelectorEnd(s.World.Net, dh.handle)
			delete(s.dropSelectorHandles, d.Token)
		}
	}
}

func (s *Simulation) dispatchStorageDirective(d *event.StorageDirective) {
	rt, ok := s.World.Nodes[d.Node]
	if !ok {
		return
	}
	fs, ok := rt.Store.(*storage.FaultyStore)
	if !ok {
		return
	}
	if d.Clear {
		if sh, ok := s.storageHandles[d.Token]; ok {
			fault.ApplyStorageFaultEnd(fs, sh.handle)
			delete(s.storageHandles, d.Token)
		}
		return
	}
	h := fault.ApplyStorageFaultBegin(fs, d)
	s.storageHandles[d.Token] = storageHandle{node: d.Node, handle: h}
}

// commitEffects applies one node's deferred Effects in the fixed order of
// spec §4.9 step 5: sends, then timer sets, then timer cancels.
func (s *Simulation) commitEffects(from simtime.NodeId, effects node.Effects) {
	for _, send := range effects.Sends {
		if send.Broadcast {
			for _, dst := range s.World.PeersOf(from) {
				s.offerSend(from, dst, send.Payload)
			}
			continue
		}
		s.offerSend(from, send.Dst, send.Payload)
	}

	rt := s.World.Nodes[from]
	for _, ts := range effects.TimerSets {
		fireAt := s.Now.Add(ts.Delay)
		seq := s.Schedule(fireAt, event.Event{Kind: event.KindTimerFire,
			Timer: &event.TimerFire{Node: from, Timer: ts.ID, Payload: ts.Payload}})
		rt.Timers.Set(ts.ID, fireAt, seq, ts.Payload)
	}
	for _, id := range effects.TimerCancels {
		if seq, ok := rt.Timers.Remove(id); ok {
			s.Queue.Cancel(seq)
			if s.World.Bus != nil {
				s.World.Bus.MetricInc("timer.cancelled", map[string]string{"node": fmt.Sprint(uint32(from))}, 1)
			}
		}
	}
}

func (s *Simulation) offerSend(src, dst simtime.NodeId, payload []byte) {
	env := s.World.newEnvelope(s.Now, src, dst, payload)
	deliveries, dropped := s.World.Net.Offer(s.Now, env, uint64(len(payload)))

	for _, d := range dropped {
		if s.World.Bus != nil {
			s.World.Bus.MetricInc("net.dropped", map[string]string{"reason": string(d.Reason)}, 1)
		}
	}
	for _, d := range deliveries {
		s.Schedule(d.At, event.Event{Kind: event.KindMessageDelivery, Delivery: &event.Delivery{Envelope: d.Envelope}})
	}
}

// emitSnapshot serializes every node's protocol.Snapshot in sorted NodeId
// order, so the JSON output is deterministic across runs of the same seed
// (spec §4.9 step 7/ §6 canonical encoding guarantee).
func (s *Simulation) emitSnapshot() {
	type nodeSnapshot struct {
		Node simtime.NodeId  `json:"node"`
		Data json.RawMessage `json:"data"`
	}
	ids := s.World.SortedNodeIDs()
	snaps := make([]nodeSnapshot, 0, len(ids))
	for _, id := range ids {
		rt := s.World.Nodes[id]
		snaps = append(snaps, nodeSnapshot{Node: id, Data: rt.Protocol.Snapshot()})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Node < snaps[j].Node })
	data, err := json.Marshal(snaps)
	if err != nil {
		return
	}
	if s.World.Bus != nil {
		s.World.Bus.EmitSnapshot(s.Now, data)
	}
}
