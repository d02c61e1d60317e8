package wsbridge

import (
	"encoding/json"
	"fmt"

	"github.com/19h/ftsim/internal/yamlscenario"
	"github.com/19h/ftsim/pkg/sim"
	"github.com/19h/ftsim/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

// controlMessage is the inbound shape a client sends to steer a running
// simulation, adapted from the teacher's protocol.StartSimulationRequest-
// style discriminated messages (apps/api/cmd/server/main.go's
// handleMessage switch) down to this repo's five sim.CommandKind values.
type controlMessage struct {
	Type      string                     `json:"type"`
	StepCount int                        `json:"step_count"`
	Directive *yamlscenario.DirectiveDoc `json:"directive"`
}

// Bridge ties a running Simulation's ControlCh to a Hub's connected
// clients: inbound client frames become sim.Command values, and every
// telemetry record the Bus emits is fanned out as a JSON frame to every
// connected client. It is the adapted equivalent of the teacher's
// simulation.Manager, generalized from project-specific Start/Crash/
// Partition methods to the five generic commands the coordinator accepts.
type Bridge struct {
	hub *Hub
	sim *sim.Simulation
}

// NewBridge creates a Bridge wiring hub's inbound frames to sim's
// ControlCh. Call Run in its own goroutine to start draining telemetry.
func NewBridge(hub *Hub, s *sim.Simulation) *Bridge {
	b := &Bridge{hub: hub, sim: s}
	hub.SetMessageHandler(b.handleClientMessage)
	return b
}

// Run drains external (the channel passed to telemetry.New) until it is
// closed, broadcasting every record to every connected client.
func (b *Bridge) Run(external <-chan telemetry.ExternalEvent) {
	for ev := range external {
		if err := b.hub.BroadcastJSON(ev); err != nil {
			log.Warn().Err(err).Msg("wsbridge: failed to broadcast telemetry record")
		}
	}
}

func (b *Bridge) handleClientMessage(clientID string, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().Err(err).Str("client", clientID).Msg("wsbridge: malformed control message")
		return
	}

	cmd, err := b.toCommand(msg)
	if err != nil {
		log.Warn().Err(err).Str("client", clientID).Msg("wsbridge: rejected control message")
		return
	}

	b.sim.ControlCh <- cmd
}

func (b *Bridge) toCommand(msg controlMessage) (sim.Command, error) {
	switch msg.Type {
	case "pause":
		return sim.Command{Kind: sim.CmdPause}, nil
	case "resume":
		return sim.Command{Kind: sim.CmdResume}, nil
	case "stop":
		return sim.Command{Kind: sim.CmdStop}, nil
	case "step":
		count := msg.StepCount
		if count <= 0 {
			count = 1
		}
		return sim.Command{Kind: sim.CmdStep, StepCount: count}, nil
	case "inject":
		if msg.Directive == nil {
			return sim.Command{}, fmt.Errorf("inject message missing directive")
		}
		directive, err := yamlscenario.ParseDirective(*msg.Directive)
		if err != nil {
			return sim.Command{}, err
		}
		return sim.Command{Kind: sim.CmdInject, Directive: &directive}, nil
	default:
		return sim.Command{}, fmt.Errorf("unknown control message type %q", msg.Type)
	}
}
