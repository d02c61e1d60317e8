// Package telemetry implements the three pure sinks of spec §4.8: a
// structured log, counters/gauges/histograms, and periodic snapshots. It is
// a rework of the teacher's packages/visualization/events.EventBus: the
// teacher's bus fans an Event interface out to goroutine listeners and
// channel subscribers with a sync.RWMutex and an internal `go listener(event)`
// per emit. That shape is wrong for this engine on two counts: it consumes
// no RNG and must never perturb event ordering (spec §4.8), and its sinks
// must be stamped with the SimTime the coordinator passes in rather than
// wall-clock time. Bus keeps the teacher's subscribe/emit/close shape for
// the external channel (now a single bounded chan ExternalEvent, draining into
// cmd/simserver) while routing every record through the three concrete
// sinks synchronously, in-process, on the coordinator's own goroutine.
package telemetry

import (
	"github.com/19h/ftsim/pkg/simtime"
)

// Level mirrors protocol.LogLevel without importing pkg/protocol (which
// already depends on telemetry via ctx.Log in pkg/node), avoiding a cycle.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// LogRecord is one structured log line (spec §4.8: "{sim_time, node,
// trace_id, level, fields}").
type LogRecord struct {
	SimTime simtime.SimTime
	Node    simtime.NodeId
	Trace   simtime.TraceId
	Level   Level
	Message string
	Fields  map[string]any
}

// MetricKind discriminates the three metric shapes spec §4.8 names.
type MetricKind int

const (
	MetricCounter MetricKind = iota
	MetricGauge
	MetricHistogram
)

// MetricDelta is one counter increment, gauge set, or histogram
// observation.
type MetricDelta struct {
	SimTime simtime.SimTime
	Kind    MetricKind
	Name    string
	Labels  map[string]string
	Value   float64
}

// Snapshot is an opaque, periodically-produced serialization of world
// state for external observers (spec §4.8, driven by a scheduled
// SnapshotTick event so its frequency is deterministic).
type Snapshot struct {
	SimTime simtime.SimTime
	Data    []byte
}

// ExternalEvent is one record forwarded on the Bus's external channel, the
// union of the three record kinds above plus a discriminator.
type ExternalEvent struct {
	Log      *LogRecord
	Metric   *MetricDelta
	Snapshot *Snapshot
}

// Bus fans every record out to its three concrete sinks and, optionally,
// to one bounded external subscriber channel.
type Bus struct {
	log     *LogSink
	metrics *MetricsSink
	snap    *SnapshotSink

	external     chan ExternalEvent
	pendingSnap  *ExternalEvent
	droppedSnaps uint64
	closed       bool
}

// New creates a Bus backed by the given sinks. external is the bounded
// channel external consumers (cmd/simserver, a TUI) read from; pass a
// buffered channel sized by the caller, or nil to run with no external
// subscriber.
func New(log *LogSink, metrics *MetricsSink, snap *SnapshotSink, external chan ExternalEvent) *Bus {
	return &Bus{log: log, metrics: metrics, snap: snap, external: external}
}

func (b *Bus) Log(at simtime.SimTime, node simtime.NodeId, trace simtime.TraceId, level Level, msg string, fields map[string]any) {
	rec := LogRecord{SimTime: at, Node: node, Trace: trace, Level: level, Message: msg, Fields: fields}
	if b.log != nil {
		b.log.Write(rec)
	}
	b.forward(ExternalEvent{Log: &rec})
}

func (b *Bus) MetricInc(name string, labels map[string]string, delta float64) {
	b.metric(MetricCounter, name, labels, delta)
}

func (b *Bus) MetricObserve(name string, labels map[string]string, value float64) {
	b.metric(MetricHistogram, name, labels, value)
}

func (b *Bus) MetricSet(name string, labels map[string]string, value float64) {
	b.metric(MetricGauge, name, labels, value)
}

func (b *Bus) metric(kind MetricKind, name string, labels map[string]string, value float64) {
	d := MetricDelta{Kind: kind, Name: name, Labels: labels, Value: value}
	if b.metrics != nil {
		b.metrics.Apply(d)
	}
	b.forward(ExternalEvent{Metric: &d})
}

// EmitSnapshot is called by the coordinator on a SnapshotTick event. Only
// one snapshot is ever held pending: a snapshot that arrives while an older
// one is still waiting for a slot on external displaces it (spec §5 "the
// engine drops the oldest snapshot, never logs"), rather than competing
// with log/metric records for the channel.
func (b *Bus) EmitSnapshot(at simtime.SimTime, data []byte) {
	snap := Snapshot{SimTime: at, Data: data}
	if b.snap != nil {
		b.snap.Set(snap)
	}
	if b.external == nil || b.closed {
		return
	}
	if b.pendingSnap != nil {
		b.droppedSnaps++
	}
	ev := ExternalEvent{Snapshot: &snap}
	b.pendingSnap = &ev
	b.flushPendingSnap()
}

// flushPendingSnap makes a best-effort non-blocking attempt to hand the
// cached pending snapshot to external, clearing it on success.
func (b *Bus) flushPendingSnap() {
	if b.pendingSnap == nil {
		return
	}
	select {
	case b.external <- *b.pendingSnap:
		b.pendingSnap = nil
	default:
	}
}

// forward delivers a log or metric record, which spec §5 never permits to
// be the dropped kind. It first gives the pending snapshot a chance to
// drain, then tries a non-blocking send; if the channel is still full, it
// sacrifices the pending snapshot (freeing a guaranteed slot) and retries.
// Only if no snapshot is pending and the channel remains saturated with
// legitimate log/metric backlog does it fall back to a blocking send.
func (b *Bus) forward(ev ExternalEvent) {
	if b.external == nil || b.closed {
		return
	}
	b.flushPendingSnap()
	select {
	case b.external <- ev:
		return
	default:
	}
	if b.pendingSnap != nil {
		b.pendingSnap = nil
		b.droppedSnaps++
		select {
		case b.external <- ev:
			return
		default:
		}
	}
	b.external <- ev
}

// DroppedSnapshots returns the count of snapshots dropped due to external
// channel overflow.
func (b *Bus) DroppedSnapshots() uint64 { return b.droppedSnaps }

// Close marks the bus closed; no further records are forwarded externally
// and the external channel is closed. The concrete sinks remain readable.
func (b *Bus) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if b.external != nil {
		close(b.external)
	}
}
