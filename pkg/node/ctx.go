package node

import (
	"github.com/19h/ftsim/pkg/clock"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
	"github.com/19h/ftsim/pkg/telemetry"
)

// ctx is the concrete protocol.Ctx handed to the protocol handler for the
// duration of a single dispatch. Send/Broadcast/SetTimer/CancelTimer only
// record intentions into effects; Store() gives direct access since store
// mutations have no scheduling consequence of their own (see DESIGN.md,
// "deferred effects" interpretation). A fresh ctx is built per dispatch, so
// it never outlives the handler invocation that owns it.
type ctx struct {
	now  simtime.SimTime
	skew simtime.Duration
	self simtime.NodeId

	store storage.Store
	rng   *rng.Source
	clock *clock.Logical
	bus   *telemetry.Bus
	trace simtime.TraceId

	timerCounter *simtime.Counter

	effects Effects
}

func newCtx(now simtime.SimTime, skew simtime.Duration, self simtime.NodeId, store storage.Store, src *rng.Source, clk *clock.Logical, bus *telemetry.Bus, trace simtime.TraceId, timerCounter *simtime.Counter) *ctx {
	return &ctx{
		now:          now,
		skew:         skew,
		self:         self,
		store:        store,
		rng:          src,
		clock:        clk,
		bus:          bus,
		trace:        trace,
		timerCounter: timerCounter,
	}
}

// Now reports the world time offset by this node's configured clock skew
// (spec §4.7 ClockSkew), so a skewed node's protocol observes a shifted
// clock without the coordinator's own Now ever diverging across nodes.
func (c *ctx) Now() simtime.SimTime   { return c.now.Add(c.skew) }
func (c *ctx) SelfID() simtime.NodeId { return c.self }

func (c *ctx) Send(dst simtime.NodeId, payload []byte) {
	c.effects.Sends = append(c.effects.Sends, SendIntent{Dst: dst, Payload: payload})
}

func (c *ctx) Broadcast(payload []byte) {
	c.effects.Sends = append(c.effects.Sends, SendIntent{Broadcast: true, Payload: payload})
}

func (c *ctx) SetTimer(delay simtime.Duration, payload []byte) simtime.TimerId {
	id := simtime.TimerId(c.timerCounter.Next())
	c.effects.TimerSets = append(c.effects.TimerSets, TimerSetIntent{ID: id, Delay: delay, Payload: payload})
	return id
}

func (c *ctx) CancelTimer(id simtime.TimerId) {
	c.effects.TimerCancels = append(c.effects.TimerCancels, id)
}

func (c *ctx) Store() storage.Store { return c.store }
func (c *ctx) RNG() *rng.Source     { return c.rng }
func (c *ctx) Clock() *clock.Logical { return c.clock }

func (c *ctx) Log(level protocol.LogLevel, msg string, fields map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Log(c.now, c.self, c.trace, telemetry.Level(level), msg, fields)
}

func (c *ctx) MetricInc(name string, labels map[string]string, delta float64) {
	if c.bus == nil {
		return
	}
	c.bus.MetricInc(name, labels, delta)
}

func (c *ctx) MetricObserve(name string, labels map[string]string, value float64) {
	if c.bus == nil {
		return
	}
	c.bus.MetricObserve(name, labels, value)
}

func (c *ctx) MetricSet(name string, labels map[string]string, value float64) {
	if c.bus == nil {
		return
	}
	c.bus.MetricSet(name, labels, value)
}
