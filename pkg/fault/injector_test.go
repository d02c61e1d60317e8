package fault_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/event"
	"github.com/19h/ftsim/pkg/fault"
	"github.com/19h/ftsim/pkg/message"
	"github.com/19h/ftsim/pkg/network"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
	"github.com/stretchr/testify/require"
)

func TestExpandPairsBeginAndEndTimes(t *testing.T) {
	until := simtime.FromNanos(100)
	directives := []scenario.Directive{
		{Kind: scenario.DirectivePartition, At: simtime.FromNanos(10), Until: &until},
	}
	expanded := fault.Expand(directives)
	require.Len(t, expanded, 2)
	require.Equal(t, simtime.FromNanos(10), expanded[0].At)
	require.Equal(t, event.NetPartitionBegin, expanded[0].Ev.Net.Kind)
	require.Equal(t, until, expanded[1].At)
	require.Equal(t, event.NetPartitionEnd, expanded[1].Ev.Net.Kind)
	require.Equal(t, expanded[0].Ev.Net.Token, expanded[1].Ev.Net.Token)
}

func TestPartitionBeginAndEndRoundTrip(t *testing.T) {
	net := network.New(rng.NewSource(1))
	net.AddLink(0, 1, network.LinkProps{})

	d := &event.NetDirective{GroupA: []simtime.NodeId{0}, GroupB: []simtime.NodeId{1}}
	handle := fault.ApplyPartitionBegin(net, d)

	_, dropped := net.Offer(simtime.Zero, envelopeFrom(0, 1), 1)
	require.Len(t, dropped, 1)

	fault.ApplyPartitionEnd(net, handle)
	_, dropped = net.Offer(simtime.Zero, envelopeFrom(0, 1), 1)
	require.Empty(t, dropped)
}

func TestStorageFaultBeginAndEndRoundTrip(t *testing.T) {
	fs := storage.NewFaultyStore(storage.NewInMemoryStore(), rng.NewSource(1), storage.FaultParams{})
	d := &event.StorageDirective{
		Kind:   event.StorageTornWrite,
		Params: event.StorageFaultParams{Probability: rng.FractionAlways},
	}
	handle := fault.ApplyStorageFaultBegin(fs, d)

	fs.Put([]byte("k"), []byte("0123456789"))
	fs.OnCrash()
	got, ok, _ := fs.Get([]byte("k"))
	if ok {
		require.LessOrEqual(t, len(got), 10)
	}

	fault.ApplyStorageFaultEnd(fs, handle)
	fs.Put([]byte("k2"), []byte("abcdef"))
	fs.OnCrash()
	got2, ok2, _ := fs.Get([]byte("k2"))
	require.True(t, ok2)
	require.Equal(t, []byte("abcdef"), got2)
}

func TestExpandByzantineInjectBuildsForgedCorruptEnvelope(t *testing.T) {
	at := simtime.FromNanos(10)
	directives := []scenario.Directive{
		{Kind: scenario.DirectiveByzantineInject, At: at, Node: 2, ByzantinePayload: []byte("forged")},
	}
	expanded := fault.Expand(directives)
	require.Len(t, expanded, 1)
	require.Equal(t, at, expanded[0].At)
	require.Equal(t, event.KindMessageDelivery, expanded[0].Ev.Kind)

	env := expanded[0].Ev.Delivery.Envelope
	require.Equal(t, simtime.NodeId(2), env.Src) // no ByzantineSrc: self-directed forgery
	require.Equal(t, simtime.NodeId(2), env.Dst)
	require.Equal(t, []byte("forged"), env.Payload)
	require.True(t, env.Corrupt())
}

func TestExpandByzantineInjectHonorsImpersonatedSource(t *testing.T) {
	impersonated := simtime.NodeId(7)
	directives := []scenario.Directive{
		{Kind: scenario.DirectiveByzantineInject, Node: 2, ByzantineSrc: &impersonated, ByzantinePayload: []byte("x")},
	}
	expanded := fault.Expand(directives)
	require.Len(t, expanded, 1)
	require.Equal(t, impersonated, expanded[0].Ev.Delivery.Envelope.Src)
	require.Equal(t, simtime.NodeId(2), expanded[0].Ev.Delivery.Envelope.Dst)
}

func TestExpandDropProducesDropSelectorBeginEnd(t *testing.T) {
	until := simtime.FromNanos(100)
	src := simtime.NodeId(0)
	directives := []scenario.Directive{
		{Kind: scenario.DirectiveDrop, At: simtime.FromNanos(10), Until: &until,
			DropSelectorSrc: &src, DropProbability: rng.FractionAlways},
	}
	expanded := fault.Expand(directives)
	require.Len(t, expanded, 2)
	require.Equal(t, event.NetDropSelectorBegin, expanded[0].Ev.Net.Kind)
	require.Equal(t, &src, expanded[0].Ev.Net.DropSelectorSrc)
	require.Equal(t, rng.FractionAlways, expanded[0].Ev.Net.DropProbability)
	require.Equal(t, event.NetDropSelectorEnd, expanded[1].Ev.Net.Kind)
	require.Equal(t, expanded[0].Ev.Net.Token, expanded[1].Ev.Net.Token)
}

func TestApplyDropSelectorBeginEndRoundTrip(t *testing.T) {
	net := network.New(rng.NewSource(1))
	net.AddLink(0, 1, network.LinkProps{})
	net.AddLink(0, 2, network.LinkProps{})

	src := simtime.NodeId(0)
	dst := simtime.NodeId(1)
	d := &event.NetDirective{DropSelectorSrc: &src, DropSelectorDst: &dst, DropProbability: rng.FractionAlways}
	handle := fault.ApplyDropSelectorBegin(net, d)

	_, dropped := net.Offer(simtime.Zero, envelopeFrom(0, 1), 1)
	require.Len(t, dropped, 1)
	require.Equal(t, network.DropLoss, dropped[0].Reason)

	// The selector only matches (0, 1); (0, 2) is unaffected.
	deliveries, _ := net.Offer(simtime.Zero, envelopeFrom(0, 2), 1)
	require.Len(t, deliveries, 1)

	fault.ApplyDropSelectorEnd(net, handle)
	deliveries, _ = net.Offer(simtime.Zero, envelopeFrom(0, 1), 1)
	require.Len(t, deliveries, 1)
}

func TestApplyLinkDegradeBeginFoldsPartitionedField(t *testing.T) {
	net := network.New(rng.NewSource(1))
	net.AddLink(0, 1, network.LinkProps{})
	link, _ := net.LinkByID(1)

	partitioned := true
	d := &event.NetDirective{Link: 1, Delta: &event.LinkDelta{Partitioned: &partitioned}}
	handle, ok := fault.ApplyLinkDegradeBegin(net, d)
	require.True(t, ok)

	_, dropped := net.Offer(simtime.Zero, envelopeFrom(0, 1), 1)
	require.Len(t, dropped, 1)
	require.Equal(t, network.DropPartition, dropped[0].Reason)

	fault.ApplyLinkDegradeEnd(net, link.ID, handle)
	deliveries, _ := net.Offer(simtime.Zero, envelopeFrom(0, 1), 1)
	require.Len(t, deliveries, 1)
}

func envelopeFrom(src, dst simtime.NodeId) message.Envelope {
	return message.Envelope{Src: src, Dst: dst, Payload: []byte("x")}
}
