package wsbridge

import (
	"testing"

	"github.com/19h/ftsim/internal/yamlscenario"
	"github.com/19h/ftsim/pkg/scenario"
	"github.com/19h/ftsim/pkg/sim"
	"github.com/stretchr/testify/require"
)

func TestToCommandMapsEverySimpleKind(t *testing.T) {
	b := &Bridge{}

	cases := map[string]sim.CommandKind{
		"pause":  sim.CmdPause,
		"resume": sim.CmdResume,
		"stop":   sim.CmdStop,
	}
	for msgType, want := range cases {
		cmd, err := b.toCommand(controlMessage{Type: msgType})
		require.NoError(t, err)
		require.Equal(t, want, cmd.Kind)
	}
}

func TestToCommandStepDefaultsCountToOne(t *testing.T) {
	b := &Bridge{}

	cmd, err := b.toCommand(controlMessage{Type: "step"})
	require.NoError(t, err)
	require.Equal(t, sim.CmdStep, cmd.Kind)
	require.Equal(t, 1, cmd.StepCount)

	cmd, err = b.toCommand(controlMessage{Type: "step", StepCount: 5})
	require.NoError(t, err)
	require.Equal(t, 5, cmd.StepCount)
}

func TestToCommandInjectParsesDirective(t *testing.T) {
	b := &Bridge{}

	cmd, err := b.toCommand(controlMessage{
		Type:      "inject",
		Directive: &yamlscenario.DirectiveDoc{Kind: "crash", Node: 3},
	})
	require.NoError(t, err)
	require.Equal(t, sim.CmdInject, cmd.Kind)
	require.Equal(t, scenario.DirectiveCrash, cmd.Directive.Kind)
}

func TestToCommandInjectRequiresDirective(t *testing.T) {
	b := &Bridge{}
	_, err := b.toCommand(controlMessage{Type: "inject"})
	require.Error(t, err)
}

func TestToCommandRejectsUnknownType(t *testing.T) {
	b := &Bridge{}
	_, err := b.toCommand(controlMessage{Type: "not-a-real-type"})
	require.Error(t, err)
}
