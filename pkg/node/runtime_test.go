package node_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/node"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
	"github.com/stretchr/testify/require"
)

type recordingProtocol struct {
	started   bool
	recovered bool
	messages  []string
	onMessage func(ctx protocol.Ctx, from simtime.NodeId, payload []byte, corrupt bool)
}

func (p *recordingProtocol) Name() string { return "recording" }
func (p *recordingProtocol) OnStart(ctx protocol.Ctx) {
	p.started = true
	ctx.SetTimer(simtime.DurationFromNanos(10), []byte("tick"))
}
func (p *recordingProtocol) OnMessage(ctx protocol.Ctx, from simtime.NodeId, payload []byte, corrupt bool) {
	p.messages = append(p.messages, string(payload))
	if p.onMessage != nil {
		p.onMessage(ctx, from, payload, corrupt)
	}
}
func (p *recordingProtocol) OnTimer(ctx protocol.Ctx, timer simtime.TimerId, payload []byte) {}
func (p *recordingProtocol) OnRecover(ctx protocol.Ctx)                                      { p.recovered = true }
func (p *recordingProtocol) Snapshot() []byte                                                { return nil }

func newRuntime(proto protocol.Core) *node.Runtime {
	return node.New(0, proto, storage.NewInMemoryStore(), 8, rng.NewSource(1), []simtime.NodeId{0, 1}, nil)
}

func TestStartTransitionsToRunningAndSetsTimer(t *testing.T) {
	p := &recordingProtocol{}
	r := newRuntime(p)

	effects := r.Start(simtime.Zero)

	require.True(t, p.started)
	require.Equal(t, node.StateRunning, r.State)
	require.Len(t, effects.TimerSets, 1)
}

func envelope(from simtime.NodeId, payload string) message.Envelope {
	return message.Envelope{Src: from, Dst: 0, Payload: []byte(payload)}
}

func TestDeliverMessageWhileCrashedIsDroppedByDefault(t *testing.T) {
	p := &recordingProtocol{}
	r := newRuntime(p)
	r.Start(simtime.Zero)
	r.Crash(simtime.Zero)

	_, delivered := r.DeliverMessage(simtime.Zero, envelope(1, "hi"))
	require.False(t, delivered)
	require.Empty(t, p.messages)
	require.Equal(t, 0, r.Inbox.Len())
}

func TestDeliverMessageWhileCrashedIsQueuedWhenConfigured(t *testing.T) {
	p := &recordingProtocol{}
	r := newRuntime(p)
	r.DropIncomingWhileCrashed = false
	r.Start(simtime.Zero)
	r.Crash(simtime.Zero)

	_, delivered := r.DeliverMessage(simtime.Zero, envelope(1, "hi"))
	require.False(t, delivered)
	require.Equal(t, 1, r.Inbox.Len())

	p2 := &recordingProtocol{}
	r.Restart(simtime.Zero, p2)
	r.DrainPending(simtime.Zero)
	require.Equal(t, []string{"hi"}, p2.messages)
	require.Equal(t, 0, r.Inbox.Len())
}

func TestDeliverMessageFillsInboxThenDropsOnceFull(t *testing.T) {
	p := &recordingProtocol{}
	r := node.New(0, p, storage.NewInMemoryStore(), 1, rng.NewSource(1), []simtime.NodeId{0, 1}, nil)
	r.Start(simtime.Zero)
	r.Pause()

	_, delivered := r.DeliverMessage(simtime.Zero, envelope(1, "first"))
	require.False(t, delivered) // queued, not yet dispatched while paused
	require.Equal(t, 1, r.Inbox.Len())

	_, delivered = r.DeliverMessage(simtime.Zero, envelope(1, "second"))
	require.False(t, delivered)
	require.Equal(t, 1, r.Inbox.Len()) // capacity 1: second is dropped, not queued
}

func TestCrashDrainsInboxAndClearsTimers(t *testing.T) {
	p := &recordingProtocol{}
	r := newRuntime(p)
	r.DropIncomingWhileCrashed = false
	r.Start(simtime.Zero)
	r.Timers.Set(simtime.TimerId(1), simtime.FromNanos(5), simtime.EventSeq(1), nil)
	r.Pause()
	r.DeliverMessage(simtime.Zero, envelope(1, "queued"))
	require.Equal(t, 1, r.Inbox.Len())

	seqs := r.Crash(simtime.Zero)
	require.Equal(t, node.StateCrashed, r.State)
	require.Equal(t, 0, r.Timers.Len())
	require.Equal(t, 0, r.Inbox.Len())
	require.Len(t, seqs, 1)
}

func TestRestartInvokesOnRecoverAndReturnsToRunning(t *testing.T) {
	p := &recordingProtocol{}
	r := newRuntime(p)
	r.Start(simtime.Zero)
	r.Crash(simtime.Zero)

	p2 := &recordingProtocol{}
	r.Restart(simtime.Zero, p2)

	require.True(t, p2.recovered)
	require.Equal(t, node.StateRunning, r.State)
}

func TestPauseQueuesInboxAndResumeReplaysInFIFOOrder(t *testing.T) {
	p := &recordingProtocol{}
	r := newRuntime(p)
	r.Start(simtime.Zero)
	r.Pause()

	_, delivered := r.DeliverMessage(simtime.Zero, envelope(1, "hi"))
	require.False(t, delivered)
	require.Equal(t, 1, r.Inbox.Len())
	require.Empty(t, p.messages)

	r.Resume()
	r.DrainPending(simtime.Zero)
	require.Equal(t, []string{"hi"}, p.messages)
	require.Equal(t, 0, r.Inbox.Len())

	_, delivered = r.DeliverMessage(simtime.Zero, envelope(1, "bye"))
	require.True(t, delivered)
	require.Equal(t, []string{"hi", "bye"}, p.messages)
}
