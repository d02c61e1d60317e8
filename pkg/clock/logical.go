package clock

import "github.com/19h/ftsim/pkg/simtime"

// Logical bundles a Lamport clock and a vector clock as the single
// opt-in convenience exposed through protocol.Ctx.Clock() (spec §4.6): a
// protocol author who wants happens-before reasoning can use either or
// both without hand-rolling them, but nothing in the engine depends on
// this state — it lives on NodeRuntime, not in scheduling.
type Logical struct {
	Lamport *Lamport
	Vector  *Vector
}

// NewLogical creates a Logical clock pair for self among members.
func NewLogical(self simtime.NodeId, members []simtime.NodeId) *Logical {
	return &Logical{
		Lamport: NewLamport(),
		Vector:  NewVector(self, members),
	}
}
