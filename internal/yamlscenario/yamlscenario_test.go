package yamlscenario_test

import (
	"testing"

	"github.com/19h/ftsim/internal/yamlscenario"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: partition-demo
description: two nodes, one partition window
seed: 42
horizon_ns: 1000000

nodes:
  - id: 0
    protocol: echo
    inbox_capacity: 16
  - id: 1
    protocol: echo

links:
  - from: 0
    to: 1
    base_delay_ns: 100
    drop_probability: 0.1
  - from: 1
    to: 0
    base_delay_ns: 100

directives:
  - kind: partition
    at_ns: 1000
    until_ns: 5000
    group_a: [0]
    group_b: [1]
  - kind: crash
    at_ns: 2000
    node: 0
  - kind: storage_fault
    at_ns: 0
    until_ns: 900000
    node: 1
    storage_fault_kind: torn_write
    probability: 0.5
`

func TestParseProducesExpectedScenarioShape(t *testing.T) {
	f, err := yamlscenario.Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "partition-demo", f.Name)
	require.Equal(t, uint64(42), f.Scenario.Seed)
	require.Equal(t, simtime.FromNanos(1_000_000), f.Scenario.Horizon)

	require.Len(t, f.Scenario.Nodes, 2)
	require.Equal(t, 16, f.Scenario.Nodes[0].InboxCapacity)
	require.Equal(t, 64, f.Scenario.Nodes[1].InboxCapacity) // defaulted

	require.Len(t, f.Scenario.Links, 2)
	require.Greater(t, uint64(f.Scenario.Links[0].Props.DropProbability), uint64(0))

	require.Len(t, f.Scenario.Directives, 3)
	require.Equal(t, scenario.DirectivePartition, f.Scenario.Directives[0].Kind)
	require.Equal(t, []simtime.NodeId{0}, f.Scenario.Directives[0].GroupA)
	require.NotNil(t, f.Scenario.Directives[0].Until)

	require.Equal(t, scenario.DirectiveCrash, f.Scenario.Directives[1].Kind)
	require.Equal(t, simtime.NodeId(0), f.Scenario.Directives[1].Node)

	require.Equal(t, scenario.DirectiveStorageFault, f.Scenario.Directives[2].Kind)
	require.Greater(t, uint64(f.Scenario.Directives[2].StorageFaultParams.Probability), uint64(0))
}

func TestParseRejectsUnknownDirectiveKind(t *testing.T) {
	_, err := yamlscenario.Parse([]byte("nodes: []\ndirectives:\n  - kind: not-a-real-kind\n"))
	require.Error(t, err)
}

const selectorAndByzantineYAML = `
name: selector-byzantine-demo
seed: 7
horizon_ns: 1000000
quiescence_silence_window_ns: 500
snapshot_interval_ns: 2000

nodes:
  - id: 0
    protocol: echo
  - id: 1
    protocol: echo

directives:
  - kind: drop
    at_ns: 0
    until_ns: 1000
    drop_selector_src: 0
    drop_selector_dst: 1
    drop_probability: 1.0
  - kind: byzantine_inject
    at_ns: 500
    node: 1
    byzantine_src: 0
    byzantine_payload: forged
  - kind: link_set
    at_ns: 0
    link: 1
    partitioned: true
    reorder_probability: 0.2
    corruption_probability: 0.3
`

func TestParseRoundTripsDropSelectorByzantineSrcAndScenarioTiming(t *testing.T) {
	f, err := yamlscenario.Parse([]byte(selectorAndByzantineYAML))
	require.NoError(t, err)

	require.Equal(t, simtime.DurationFromNanos(500), f.Scenario.QuiescenceSilenceWindow)
	require.Equal(t, simtime.DurationFromNanos(2000), f.Scenario.SnapshotInterval)

	drop := f.Scenario.Directives[0]
	require.Equal(t, scenario.DirectiveDrop, drop.Kind)
	require.NotNil(t, drop.DropSelectorSrc)
	require.Equal(t, simtime.NodeId(0), *drop.DropSelectorSrc)
	require.NotNil(t, drop.DropSelectorDst)
	require.Equal(t, simtime.NodeId(1), *drop.DropSelectorDst)

	byz := f.Scenario.Directives[1]
	require.Equal(t, scenario.DirectiveByzantineInject, byz.Kind)
	require.NotNil(t, byz.ByzantineSrc)
	require.Equal(t, simtime.NodeId(0), *byz.ByzantineSrc)
	require.Equal(t, []byte("forged"), byz.ByzantinePayload)

	linkSet := f.Scenario.Directives[2]
	require.Equal(t, scenario.DirectiveLinkSet, linkSet.Kind)
	require.NotNil(t, linkSet.LinkPartitioned)
	require.True(t, *linkSet.LinkPartitioned)
	require.Greater(t, uint64(linkSet.LinkProps.ReorderProbability), uint64(0))
	require.Greater(t, uint64(linkSet.LinkProps.CorruptionProbability), uint64(0))
}
