package protocol_test

import (
	"testing"

	"github.com/19h/ftsim/pkg/clock"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/rng"
	"github.com/19h/ftsim/pkg/simtime"
	"github.com/19h/ftsim/pkg/storage"
	"github.com/stretchr/testify/require"
)

type pingMsg struct {
	Seq int `json:"seq"`
}

type recordingCtx struct {
	now  simtime.SimTime
	self simtime.NodeId
	sent []struct {
		dst     simtime.NodeId
		payload []byte
	}
	store storage.Store
	src   *rng.Source
	clk   *clock.Logical
}

func newRecordingCtx() *recordingCtx {
	return &recordingCtx{
		store: storage.NewInMemoryStore(),
		src:   rng.NewSource(1),
		clk:   clock.NewLogical(0, []simtime.NodeId{0, 1}),
	}
}

func (c *recordingCtx) Now() simtime.SimTime    { return c.now }
func (c *recordingCtx) SelfID() simtime.NodeId  { return c.self }
func (c *recordingCtx) Send(dst simtime.NodeId, payload []byte) {
	c.sent = append(c.sent, struct {
		dst     simtime.NodeId
		payload []byte
	}{dst, payload})
}
func (c *recordingCtx) Broadcast(payload []byte)                                     {}
func (c *recordingCtx) SetTimer(d simtime.Duration, payload []byte) simtime.TimerId  { return 0 }
func (c *recordingCtx) CancelTimer(id simtime.TimerId)                               {}
func (c *recordingCtx) Store() storage.Store                                         { return c.store }
func (c *recordingCtx) RNG() *rng.Source                                             { return c.src }
func (c *recordingCtx) Clock() *clock.Logical                                        { return c.clk }
func (c *recordingCtx) Log(level protocol.LogLevel, msg string, fields map[string]any) {}
func (c *recordingCtx) MetricInc(name string, labels map[string]string, delta float64) {}
func (c *recordingCtx) MetricObserve(name string, labels map[string]string, value float64) {}
func (c *recordingCtx) MetricSet(name string, labels map[string]string, value float64) {}

type echoTyped struct {
	codec       protocol.JSONCodec[pingMsg]
	lastCorrupt bool
}

func (e *echoTyped) Name() string { return "echo" }
func (e *echoTyped) OnStart(ctx protocol.Ctx) {}
func (e *echoTyped) OnMessage(ctx protocol.Ctx, from simtime.NodeId, msg pingMsg, corrupt bool) {
	e.lastCorrupt = corrupt
	protocol.SendTyped[pingMsg](ctx, e.codec, from, pingMsg{Seq: msg.Seq + 1})
}
func (e *echoTyped) OnTimer(ctx protocol.Ctx, timer simtime.TimerId, payload []byte) {}
func (e *echoTyped) OnRecover(ctx protocol.Ctx)                                      {}
func (e *echoTyped) Snapshot() []byte                                                { return nil }

func TestAdaptDecodesAndEncodesAtTheBoundary(t *testing.T) {
	typed := &echoTyped{}
	core := protocol.Adapt[pingMsg](typed, protocol.JSONCodec[pingMsg]{})

	ctx := newRecordingCtx()
	var codec protocol.JSONCodec[pingMsg]
	payload, err := codec.Encode(pingMsg{Seq: 5})
	require.NoError(t, err)

	core.OnMessage(ctx, simtime.NodeId(1), payload, false)

	require.Len(t, ctx.sent, 1)
	got, err := codec.Decode(ctx.sent[0].payload)
	require.NoError(t, err)
	require.Equal(t, 6, got.Seq)
}

func TestAdaptSurfacesDecodeFailureAsCorrupt(t *testing.T) {
	typed := &echoTyped{}
	core := protocol.Adapt[pingMsg](typed, protocol.JSONCodec[pingMsg]{})
	ctx := newRecordingCtx()

	core.OnMessage(ctx, simtime.NodeId(1), []byte("not json"), false)

	require.Len(t, ctx.sent, 1)
	require.True(t, typed.lastCorrupt)
}

// TestJSONCodecRoundTripsEqualValues exercises the canonical round-trip
// encoding property: decoding what Encode produced always yields a value
// equal to the original, for any logical message value.
func TestJSONCodecRoundTripsEqualValues(t *testing.T) {
	var codec protocol.JSONCodec[pingMsg]

	for _, msg := range []pingMsg{{Seq: 0}, {Seq: 1}, {Seq: -7}, {Seq: 1 << 20}} {
		encoded, err := codec.Encode(msg)
		require.NoError(t, err)

		decoded, err := codec.Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, msg, decoded)
	}
}
