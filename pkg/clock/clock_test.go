package clock_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/clock"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/stretchr/testify/require"
)

func TestLamportObserveTakesMax(t *testing.T) {
	c := clock.NewLamport()
	c.Tick() // 1
	c.Tick() // 2
	got := c.Observe(10)
	require.Equal(t, uint64(11), got)
}

func TestLamportCompare(t *testing.T) {
	require.Equal(t, -1, clock.CompareLamport(1, 2))
	require.Equal(t, 1, clock.CompareLamport(2, 1))
	require.Equal(t, 0, clock.CompareLamport(2, 2))
}

func TestVectorConcurrentDetection(t *testing.T) {
	a := simtime.NodeId(0)
	b := simtime.NodeId(1)
	va := clock.NewVector(a, []simtime.NodeId{a, b})
	vb := clock.NewVector(b, []simtime.NodeId{a, b})

	va.Tick()
	vb.Tick()

	require.Equal(t, clock.Concurrent, va.Compare(vb.Snapshot()))
}

func TestVectorMergeEstablishesHappensBefore(t *testing.T) {
	a := simtime.NodeId(0)
	b := simtime.NodeId(1)
	va := clock.NewVector(a, []simtime.NodeId{a, b})
	vb := clock.NewVector(b, []simtime.NodeId{a, b})

	sent := va.Tick()
	vb.Merge(sent)

	require.Equal(t, clock.HappensBefore, clock.CompareVectors(sent, vb.Snapshot()))
}
