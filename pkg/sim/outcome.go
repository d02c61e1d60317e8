package sim

import "github.com/19h/ftsim/pkg/simtime"

// TerminationReason names why Run returned, per spec §4.9 step 2's four
// stopping conditions.
type TerminationReason int

const (
	ReasonHorizon TerminationReason = iota
	ReasonHalt
	ReasonQuiescence
	ReasonExternalStop
)

func (r TerminationReason) String() string {
	switch r {
	case ReasonHorizon:
		return "horizon"
	case ReasonHalt:
		return "halt"
	case ReasonQuiescence:
		return "quiescence"
	case ReasonExternalStop:
		return "external_stop"
	default:
		return "unknown"
	}
}

// Outcome summarizes a completed Run.
type Outcome struct {
	Reason          TerminationReason
	FinalTime       simtime.SimTime
	EventsDispatched uint64
}
