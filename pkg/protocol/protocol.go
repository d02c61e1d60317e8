// Package protocol defines the two-layer protocol hosting contract of spec
// §4.6: a dynamic, byte-level Core contract that the node runtime drives
// directly, and a generic Typed SDK layer that protocol authors implement
// against a concrete message type M. Adapt turns any Typed[M] into a Core
// using Go generics, so the adapter requires no reflection at dispatch
// time.
package protocol

import (
	"encoding/json"

	"github.com/19h/ftsim/pkg/clock"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
)

// LogLevel mirrors the handful of levels protocol authors can log at; the
// concrete rendering (zerolog) lives in pkg/telemetry, which Ctx
// implementations forward to.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// Ctx is the capability handed to a protocol handler on every invocation
// (spec §4.6 "ProtoCtx"). Send, Broadcast, SetTimer and CancelTimer are
// deferred intentions: they are recorded, not applied, and the coordinator
// commits the recorded effects after the handler returns (spec §4.9 step
// 5). Store returns the node's store itself, so store mutations take effect
// immediately.
type Ctx interface {
	Now() simtime.SimTime
	SelfID() simtime.NodeId

	Send(dst simtime.NodeId, payload []byte)
	Broadcast(payload []byte)

	SetTimer(delay simtime.Duration, payload []byte) simtime.TimerId
	CancelTimer(id simtime.TimerId)

	Store() storage.Store

	RNG() *rng.Source
	Clock() *clock.Logical

	Log(level LogLevel, msg string, fields map[string]any)
	MetricInc(name string, labels map[string]string, delta float64)
	MetricObserve(name string, labels map[string]string, value float64)
	MetricSet(name string, labels map[string]string, value float64)
}

// Core is the dynamic, byte-level host-facing contract (spec §4.6 "Dynamic
// core contract"). Every payload is opaque bytes; this is the interface
// pkg/node drives directly.
type Core interface {
	Name() string
	OnStart(ctx Ctx)
	OnMessage(ctx Ctx, from simtime.NodeId, payload []byte, corrupt bool)
	OnTimer(ctx Ctx, timer simtime.TimerId, payload []byte)
	OnRecover(ctx Ctx)
	Snapshot() []byte
}

// Typed is the generic SDK façade protocol authors implement directly
// against a concrete message type M, never seeing raw bytes.
type Typed[M any] interface {
	Name() string
	OnStart(ctx Ctx)
	OnMessage(ctx Ctx, from simtime.NodeId, msg M, corrupt bool)
	OnTimer(ctx Ctx, timer simtime.TimerId, payload []byte)
	OnRecover(ctx Ctx)
	Snapshot() []byte
}

// Codec converts between M and its canonical, deterministic wire encoding.
type Codec[M any] interface {
	Encode(m M) ([]byte, error)
	Decode(data []byte) (M, error)
}

// JSONCodec is the default Codec: encoding/json produces a byte-stable
// encoding for equal logical values in Go (sorted map keys, fixed struct
// field order, consistent float formatting), satisfying the canonical
// encoding requirement without a custom binary format.
type JSONCodec[M any] struct{}

func (JSONCodec[M]) Encode(m M) ([]byte, error) { return json.Marshal(m) }

func (JSONCodec[M]) Decode(data []byte) (M, error) {
	var m M
	err := json.Unmarshal(data, &m)
	return m, err
}

// adapted is the Core produced by Adapt: it holds a Typed[M] and a
// Codec[M], decoding inbound bytes and encoding outbound sends at the
// boundary.
type adapted[M any] struct {
	inner Typed[M]
	codec Codec[M]
}

// Adapt wraps a Typed[M] protocol with codec into a Core, so the node
// runtime can drive any typed protocol through the same dynamic contract
// used for hand-written byte-level protocols.
func Adapt[M any](inner Typed[M], codec Codec[M]) Core {
	return &adapted[M]{inner: inner, codec: codec}
}

func (a *adapted[M]) Name() string       { return a.inner.Name() }
func (a *adapted[M]) OnStart(ctx Ctx)    { a.inner.OnStart(ctx) }
func (a *adapted[M]) OnRecover(ctx Ctx)  { a.inner.OnRecover(ctx) }
func (a *adapted[M]) Snapshot() []byte   { return a.inner.Snapshot() }

func (a *adapted[M]) OnMessage(ctx Ctx, from simtime.NodeId, payload []byte, corrupt bool) {
	msg, err := a.codec.Decode(payload)
	if err != nil {
		// A decode failure (often itself a symptom of corruption) is
		// surfaced to the protocol as a corrupt delivery of the zero value
		// rather than panicking the dispatch loop — a malformed wire
		// message is an expected fault-injection outcome, not an engine
		// bug.
		ctx.Log(LogWarn, "protocol decode failed", map[string]any{"error": err.Error()})
		var zero M
		a.inner.OnMessage(ctx, from, zero, true)
		return
	}
	a.inner.OnMessage(ctx, from, msg, corrupt)
}

func (a *adapted[M]) OnTimer(ctx Ctx, timer simtime.TimerId, payload []byte) {
	a.inner.OnTimer(ctx, timer, payload)
}

// SendTyped is a convenience for Typed[M] protocol authors: encode msg with
// codec and hand the bytes to ctx.Send.
func SendTyped[M any](ctx Ctx, codec Codec[M], dst simtime.NodeId, msg M) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	ctx.Send(dst, data)
	return nil
}

// BroadcastTyped is the Broadcast counterpart of SendTyped.
func BroadcastTyped[M any](ctx Ctx, codec Codec[M], msg M) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	ctx.Broadcast(data)
	return nil
}
