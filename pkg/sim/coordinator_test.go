package sim_test

import (
	"context"
	"testing"

	"github.com/19h/ftsim/pkg/node"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/sim"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/stretchr/testify/require"
)

// pingPong bounces a "ping" back and forth up to maxHops times, counting
// deliveries it has seen; it is the test fixture that exercises Send,
// timers are not needed for this round trip.
type pingPong struct {
	self     simtime.NodeId
	peer     simtime.NodeId
	maxHops  int
	hops     int
	isSender bool
}

func (p *pingPong) Name() string { return "ping-pong" }

func (p *pingPong) OnStart(ctx protocol.Ctx) {
	if p.isSender {
		ctx.Send(p.peer, []byte("ping"))
	}
}

func (p *pingPong) OnMessage(ctx protocol.Ctx, from simtime.NodeId, payload []byte, corrupt bool) {
	p.hops++
	if p.hops >= p.maxHops {
		return
	}
	ctx.Send(from, payload)
}

func (p *pingPong) OnTimer(ctx protocol.Ctx, timer simtime.TimerId, payload []byte) {}
func (p *pingPong) OnRecover(ctx protocol.Ctx)                                      {}
func (p *pingPong) Snapshot() []byte                                                { return []byte(`{}`) }

func pingPongScenario() scenario.Scenario {
	return scenario.Scenario{
		Seed:    1,
		Horizon: simtime.FromNanos(1_000_000),
		Nodes: []scenario.NodeSpec{
			{ID: 0, Protocol: "ping-pong-sender", InboxCapacity: 8},
			{ID: 1, Protocol: "ping-pong-echoer", InboxCapacity: 8},
		},
		Links: []scenario.LinkSpec{
			{From: 0, To: 1},
			{From: 1, To: 0},
		},
	}
}

func newPingPongSim(t *testing.T) *sim.Simulation {
	t.Helper()
	world := sim.NewWorld(1, nil)
	s := sim.New(world, simtime.FromNanos(1_000_000))
	registry := map[string]func() protocol.Core{
		"ping-pong-sender": func() protocol.Core { return &pingPong{self: 0, peer: 1, maxHops: 6, isSender: true} },
		"ping-pong-echoer": func() protocol.Core { return &pingPong{self: 1, peer: 0, maxHops: 6} },
	}
	require.NoError(t, s.LoadScenario(pingPongScenario(), registry))
	return s
}

func TestRunBouncesMessageUntilQuiescence(t *testing.T) {
	s := newPingPongSim(t)
	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, sim.ReasonQuiescence, outcome.Reason)
	require.Greater(t, outcome.EventsDispatched, uint64(0))
}

func TestRunStopsAtHorizonWhenWorkRemains(t *testing.T) {
	world := sim.NewWorld(1, nil)
	s := sim.New(world, simtime.Zero) // horizon at time zero
	registry := map[string]func() protocol.Core{
		"ping-pong-sender": func() protocol.Core { return &pingPong{self: 0, peer: 1, maxHops: 1000, isSender: true} },
		"ping-pong-echoer": func() protocol.Core { return &pingPong{self: 1, peer: 0, maxHops: 1000} },
	}
	sc := pingPongScenario()
	sc.Links[0].Props.BaseDelay = simtime.DurationFromNanos(10)
	sc.Links[1].Props.BaseDelay = simtime.DurationFromNanos(10)
	require.NoError(t, s.LoadScenario(sc, registry))

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, sim.ReasonHorizon, outcome.Reason)
}

func TestPauseBlocksDispatchUntilResume(t *testing.T) {
	s := newPingPongSim(t)
	s.ControlCh <- sim.Command{Kind: sim.CmdPause}

	done := make(chan sim.Outcome, 1)
	go func() {
		outcome, _ := s.Run(context.Background())
		done <- outcome
	}()

	s.ControlCh <- sim.Command{Kind: sim.CmdResume}
	outcome := <-done
	require.Equal(t, sim.ReasonQuiescence, outcome.Reason)
}

func TestStepDispatchesExactlyOneEventThenRePauses(t *testing.T) {
	s := newPingPongSim(t)
	s.ControlCh <- sim.Command{Kind: sim.CmdPause}
	s.ControlCh <- sim.Command{Kind: sim.CmdStep, StepCount: 1}

	done := make(chan sim.Outcome, 1)
	go func() {
		outcome, _ := s.Run(context.Background())
		done <- outcome
	}()

	// Pause+Step were already queued before Run started, so the loop drains
	// both, dispatches exactly one event, and blocks again before it can
	// ever observe this Stop out of order.
	s.ControlCh <- sim.Command{Kind: sim.CmdStop}
	outcome := <-done
	require.Equal(t, sim.ReasonExternalStop, outcome.Reason)
	require.Equal(t, uint64(1), outcome.EventsDispatched)
}

func TestCrashDropsFutureDeliveryBeforeItArrives(t *testing.T) {
	world := sim.NewWorld(2, nil)
	s := sim.New(world, simtime.FromNanos(1_000_000))
	registry := map[string]func() protocol.Core{
		"ping-pong-sender": func() protocol.Core { return &pingPong{self: 0, peer: 1, maxHops: 1, isSender: true} },
		"ping-pong-echoer": func() protocol.Core { return &pingPong{self: 1, peer: 0, maxHops: 1} },
	}
	sc := pingPongScenario()
	sc.Directives = []scenario.Directive{
		{Kind: scenario.DirectiveCrash, At: simtime.Zero, Node: 1},
	}
	require.NoError(t, s.LoadScenario(sc, registry))

	outcome, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, sim.ReasonQuiescence, outcome.Reason)
	require.Equal(t, 0, world.Nodes[1].Protocol.(*pingPong).hops)
	require.Equal(t, node.StateCrashed, world.Nodes[1].State)
}
