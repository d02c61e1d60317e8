package rng_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/rng"
	"github.com/stretchr/testify/require"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := rng.NewSource(42)
	b := rng.NewSource(42)

	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestDifferentSeedDiverges(t *testing.T) {
	a := rng.NewSource(42)
	b := rng.NewSource(43)

	same := true
	for i := 0; i < 8; i++ {
		if a.Uint64() != b.Uint64() {
			same = false
		}
	}
	require.False(t, same, "different seeds should not produce an identical short prefix")
}

func TestDeriveIsIndependentAndDeterministic(t *testing.T) {
	root := rng.NewSource(7)
	net1 := root.Derive("net")
	store1 := root.Derive("store")

	root2 := rng.NewSource(7)
	net2 := root2.Derive("net")
	store2 := root2.Derive("store")

	require.Equal(t, net1.Uint64(), net2.Uint64())
	require.Equal(t, store1.Uint64(), store2.Uint64())
}

func TestDeriveConsumingOneSubstreamDoesNotPerturbAnother(t *testing.T) {
	root := rng.NewSource(7)
	net := root.Derive("net")
	store := root.Derive("store")
	wantStoreFirst := store.Uint64()

	// Drain some draws from the net sub-stream only.
	for i := 0; i < 5; i++ {
		net.Uint64()
	}

	root2 := rng.NewSource(7)
	store2 := root2.Derive("store")
	require.Equal(t, wantStoreFirst, store2.Uint64())
}

func TestFractionThresholds(t *testing.T) {
	require.Equal(t, rng.FractionNever, rng.FractionOf(0))
	require.Equal(t, rng.FractionAlways, rng.FractionOf(1))
	require.InDelta(t, 0.5, rng.FractionOf(0.5).Float64(), 0.001)
}
