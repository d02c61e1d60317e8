package node

import "github.com/19h/ftsim/pkg/simtime"

// SendIntent is a deferred outbound message recorded by a protocol handler
// via Ctx.Send/Ctx.Broadcast. It is committed by the coordinator after the
// handler returns (spec §4.9 step 5), which is what actually offers it to
// pkg/network.
type SendIntent struct {
	Dst       simtime.NodeId
	Broadcast bool
	Payload   []byte
}

// TimerSetIntent is a deferred SetTimer call. The TimerId is assigned
// immediately (by the runtime's own monotonic counter, not by event
// ordering) so the protocol handler can reference it before the handler
// returns; only the underlying TimerFire event's scheduling is deferred.
type TimerSetIntent struct {
	ID      simtime.TimerId
	Delay   simtime.Duration
	Payload []byte
}

// Effects collects everything a single protocol handler invocation
// deferred, for the coordinator to commit in the fixed per-node order of
// spec §4.9 step 5.
type Effects struct {
	Sends        []SendIntent
	TimerSets    []TimerSetIntent
	TimerCancels []simtime.TimerId
}
