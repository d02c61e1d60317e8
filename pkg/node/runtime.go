// Package node implements the per-node runtime of spec §4.5: it hosts one
// protocol.Core instance, owns that node's Store, TimerTable, and bounded
// Inbox, and drives the NodeRuntime state machine of spec §3
// (Starting -> Running <-> Paused, Running -> Crashed -> Starting on
// Restart). Every dispatch builds a fresh Ctx, invokes the protocol
// handler, and returns the Effects the coordinator must commit.
package node

import (
	"github.com/19h/ftsim/pkg/clock"
	"github.com/19h/ftsim/pkg/mailbox"
	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
	"github.com/19h/ftsim/pkg/telemetry"
)

// State enumerates the NodeRuntime state machine of spec §3.
type State int

const (
	StateStarting State = iota
	StateRunning
	StatePaused
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "crashed"
	}
}

// Runtime owns one node's protocol instance, store, timers, and inbox.
type Runtime struct {
	ID    simtime.NodeId
	State State

	Protocol protocol.Core
	Store    storage.Store
	Timers   *TimerTable
	Inbox    *mailbox.Inbox

	rng          *rng.Source
	clock        *clock.Logical
	bus          *telemetry.Bus
	timerCounter simtime.Counter
	skew         simtime.Duration

	// DropIncomingWhileCrashed controls whether messages offered to this
	// node while it is Crashed are silently dropped (the default) or kept
	// in the Inbox for Restart's DrainPending to deliver — spec §4.5/§3
	// "drops incoming messages by default (configurable per scenario)".
	DropIncomingWhileCrashed bool
}

// New creates a Runtime in the Starting state.
func New(id simtime.NodeId, proto protocol.Core, store storage.Store, inboxCapacity int, src *rng.Source, members []simtime.NodeId, bus *telemetry.Bus) *Runtime {
	return &Runtime{
		ID:                       id,
		State:                    StateStarting,
		Protocol:                 proto,
		Store:                    store,
		Timers:                   NewTimerTable(),
		Inbox:                    mailbox.New(inboxCapacity),
		rng:                      src,
		clock:                    clock.NewLogical(id, members),
		bus:                      bus,
		DropIncomingWhileCrashed: true,
	}
}

func (r *Runtime) newCtx(now simtime.SimTime, trace simtime.TraceId) *ctx {
	return newCtx(now, r.skew, r.ID, r.Store, r.rng, r.clock, r.bus, trace, &r.timerCounter)
}

// SetClockSkew sets the fixed offset added to every SimTime this node's
// protocol observes via Ctx.Now, without altering the coordinator's own
// clock or any scheduling decision (spec §4.7 ClockSkew(node, offset)).
func (r *Runtime) SetClockSkew(offset simtime.Duration) { r.skew = offset }

// Start invokes OnStart and transitions Starting -> Running.
func (r *Runtime) Start(now simtime.SimTime) Effects {
	c := r.newCtx(now, 0)
	r.Protocol.OnStart(c)
	r.State = StateRunning
	return c.effects
}

// DeliverMessage offers an envelope already past the network's delivery
// transform to the node's Inbox. A Crashed node either drops it (the
// default) or, with DropIncomingWhileCrashed false, leaves it enqueued for
// Restart's DrainPending to replay. Enqueue failure (a saturated Inbox) is
// itself a drop, the same as a network-level loss, per spec §4.5's bounded
// Inbox. A Running node's envelope is dequeued and dispatched immediately,
// so the Inbox never holds more than one entry in steady state; a Paused
// node's envelopes accumulate, bounded by InboxCapacity, until Resume's
// DrainPending replays them in FIFO order.
func (r *Runtime) DeliverMessage(now simtime.SimTime, env message.Envelope) (Effects, bool) {
	if r.State == StateCrashed {
		if !r.DropIncomingWhileCrashed {
			r.Inbox.Enqueue(env)
		}
		return Effects{}, false
	}
	if !r.Inbox.Enqueue(env) {
		return Effects{}, false
	}
	if r.State != StateRunning {
		return Effects{}, false
	}
	return r.dequeueAndDispatch(now)
}

// dequeueAndDispatch pops the oldest queued envelope, if any, and invokes
// OnMessage for it.
func (r *Runtime) dequeueAndDispatch(now simtime.SimTime) (Effects, bool) {
	env, ok := r.Inbox.Dequeue()
	if !ok {
		return Effects{}, false
	}
	c := r.newCtx(now, env.Trace)
	r.Protocol.OnMessage(c, env.Src, env.Payload, env.Corrupt())
	return c.effects, true
}

// DrainPending dispatches every envelope still queued in the Inbox, in
// FIFO order, aggregating each dispatch's Effects. Called after Resume and
// Restart so messages that arrived while the node couldn't process them
// are delivered the moment it can, rather than sitting until the next
// unrelated message nudges the queue.
func (r *Runtime) DrainPending(now simtime.SimTime) []Effects {
	var all []Effects
	for {
		effects, ok := r.dequeueAndDispatch(now)
		if !ok {
			break
		}
		all = append(all, effects)
	}
	return all
}

// FireTimer invokes OnTimer for a timer that reached its fire time,
// provided it has not been cancelled (the caller checks TimerTable/
// tombstones before calling this).
func (r *Runtime) FireTimer(now simtime.SimTime, timer simtime.TimerId, payload []byte) Effects {
	c := r.newCtx(now, 0)
	r.Protocol.OnTimer(c, timer, payload)
	return c.effects
}

// Crash discards the runtime's volatile state: the inbox is drained and
// every outstanding timer is cleared (the caller tombstones the returned
// EventSeqs). The crashed protocol instance stays in Protocol until Restart
// replaces it with one the caller constructs and gives OnRecover, per spec
// §4.5. Durable storage is untouched; if Store is a *storage.FaultyStore,
// the caller is responsible for invoking its OnCrash to resolve pending
// torn/sync-loss writes.
func (r *Runtime) Crash(now simtime.SimTime) []simtime.EventSeq {
	r.State = StateCrashed
	r.Inbox.DrainAll()
	return r.Timers.Clear()
}

// Restart reconstructs the protocol instance (proto) and invokes
// OnRecover, transitioning Crashed -> Starting -> Running.
func (r *Runtime) Restart(now simtime.SimTime, proto protocol.Core) Effects {
	r.Protocol = proto
	r.State = StateStarting
	c := r.newCtx(now, 0)
	r.Protocol.OnRecover(c)
	r.State = StateRunning
	return c.effects
}

// Pause transitions Running -> Paused; the node delivers no events while
// paused but retains all volatile state (unlike Crash).
func (r *Runtime) Pause() { r.State = StatePaused }

// Resume transitions Paused -> Running.
func (r *Runtime) Resume() { r.State = StateRunning }

// Clock exposes the node's opt-in logical clocks, e.g. for telemetry
// snapshotting by the coordinator.
func (r *Runtime) Clock() *clock.Logical { return r.clock }
