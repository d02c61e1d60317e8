// Package message defines the Envelope that crosses the network layer,
// adapted from the teacher's packages/core/message.Envelope but stripped of
// its wall-clock SentAt/ReceivedAt fields (simulated time only, per spec
// invariant 5) and its interface-typed Message field (payloads are opaque
// bytes at this layer; typed messages live one layer up in pkg/protocol).
package message

import (
	"encoding/json"

	"github.com/19h/ftsim/pkg/simtime"
)

// CorruptFlag is the well-known Metadata key fault injection sets when
// corruption is enabled for a delivery (spec §4.3).
const CorruptFlag = "corrupt"

// Envelope is the wire representation of a single network message.
type Envelope struct {
	Src      simtime.NodeId    `json:"src"`
	Dst      simtime.NodeId    `json:"dst"`
	Created  simtime.SimTime   `json:"created"`
	Trace    simtime.TraceId   `json:"trace"`
	Msg      simtime.MsgId     `json:"msg"`
	Payload  []byte            `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Corrupt reports whether fault injection has flagged this envelope.
func (e Envelope) Corrupt() bool {
	return e.Metadata[CorruptFlag] == "1"
}

// WithCorrupt returns a copy of e with the corrupt metadata bit set. Used by
// the network model's delivery transform; never mutates the original, since
// the original may still be in flight to other duplicate copies.
func (e Envelope) WithCorrupt() Envelope {
	clone := e.Clone()
	if clone.Metadata == nil {
		clone.Metadata = make(map[string]string, 1)
	}
	clone.Metadata[CorruptFlag] = "1"
	return clone
}

// Clone returns a deep copy of the envelope, including its payload and
// metadata — required before fanning a single send() call out into
// multiple duplicate deliveries, each of which may be independently
// corrupted or re-timed without the others observing it.
func (e Envelope) Clone() Envelope {
	clone := e
	if e.Payload != nil {
		clone.Payload = append([]byte(nil), e.Payload...)
	}
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// MarshalJSON and the canonical encoding guarantee of spec §6 rely on
// encoding/json's two relevant properties: struct fields serialize in
// declaration order, and map[string]T keys are sorted lexicographically —
// so ToJSON is byte-stable across runs for equal logical values.
func (e Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
