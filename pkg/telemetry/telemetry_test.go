package telemetry_test

import (
	"bytes"
	"testing"

	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/telemetry"
	"github.com/19h/ftsim/pkg/telemetry/snapshottest"
	"github.com/stretchr/testify/require"
)

func TestLogSinkWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := telemetry.NewLogSink(&buf)
	bus := telemetry.New(sink, nil, nil, nil)

	bus.Log(simtime.FromNanos(10), simtime.NodeId(2), simtime.TraceId(5), telemetry.LevelInfo, "hello", map[string]any{"k": "v"})

	require.Contains(t, buf.String(), "hello")
	require.Contains(t, buf.String(), `"node":2`)
}

func TestMetricsSummaryIsSortedAndDeterministic(t *testing.T) {
	metrics := telemetry.NewMetricsSink()
	bus := telemetry.New(nil, metrics, nil, nil)

	bus.MetricInc("b_counter", nil, 1)
	bus.MetricInc("a_counter", nil, 2)
	bus.MetricInc("a_counter", nil, 3)
	bus.MetricSet("gauge", map[string]string{"z": "1"}, 9)

	summary := metrics.Summary()
	require.Equal(t, "a_counter", summary[0].Name)
	require.Equal(t, 5.0, summary[0].Value)
	require.Equal(t, "b_counter", summary[1].Name)
}

func TestSnapshotOverflowDropsOldestSnapshotNotLogs(t *testing.T) {
	external := make(chan telemetry.ExternalEvent, 1)
	var buf bytes.Buffer
	bus := telemetry.New(telemetry.NewLogSink(&buf), nil, telemetry.NewSnapshotSink(), external)

	bus.Log(simtime.Zero, 0, 0, telemetry.LevelInfo, "first", nil)
	bus.EmitSnapshot(simtime.Zero, []byte("snap1"))
	bus.EmitSnapshot(simtime.FromNanos(1), []byte("snap2"))

	require.Equal(t, uint64(1), bus.DroppedSnapshots())

	ev := <-external
	require.NotNil(t, ev.Log)
	require.Equal(t, "first", ev.Log.Message)
}

func TestSnapshotDiffReportsFirstDivergence(t *testing.T) {
	a := telemetry.Snapshot{SimTime: simtime.Zero, Data: []byte("abc")}
	b := telemetry.Snapshot{SimTime: simtime.Zero, Data: []byte("abd")}
	diff := snapshottest.Diff(a, b)
	require.Contains(t, diff, "byte 2")
}

func TestSnapshotDiffEmptyWhenIdentical(t *testing.T) {
	a := telemetry.Snapshot{SimTime: simtime.Zero, Data: []byte("abc")}
	require.Equal(t, "", snapshottest.Diff(a, a))
}
