package sim

import "github.com/19h/ftsim/pkg/scenario"

// CommandKind enumerates the external control operations spec §4.9
// requires the coordinator to accept over its control channel, grounded on
// the teacher's engine.Command (Pause/Resume/Step/Inject/Stop over a
// channel drained once per loop iteration).
type CommandKind int

const (
	CmdPause CommandKind = iota
	CmdResume
	CmdStep
	CmdInject
	CmdStop
)

// Command is one operator request, delivered over Simulation.ControlCh.
type Command struct {
	Kind CommandKind

	// StepCount is the number of events CmdStep permits the loop to
	// dispatch before re-pausing; zero means one.
	StepCount int

	// Directive carries a live-injected fault for CmdInject, expanded and
	// scheduled exactly as a scenario-loaded directive would be.
	Directive *scenario.Directive
}
