// Command simcore runs a scenario to completion (or a horizon, halt, or
// external stop) from the command line, printing its outcome. It has no
// interactive control surface of its own — for that, see cmd/simserver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/19h/ftsim/examples/echoproto"
	"github.com/19h/ftsim/internal/yamlscenario"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/sim"
	"github.com/19h/ftsim/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a YAML scenario document")
	seedOverride := flag.Uint64("seed", 0, "override the scenario's seed (0 keeps the scenario's own seed)")
	verbose := flag.Bool("v", false, "enable debug-level logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "simcore: -scenario is required")
		os.Exit(2)
	}

	file, err := yamlscenario.Load(*scenarioPath)
	if err != nil {
		log.Error().Err(err).Str("path", *scenarioPath).Msg("failed to load scenario")
		os.Exit(64)
	}

	sc := file.Scenario
	if *seedOverride != 0 {
		sc.Seed = *seedOverride
	}

	bus := telemetry.New(telemetry.NewLogSink(os.Stdout), telemetry.NewMetricsSink(), telemetry.NewSnapshotSink(), nil)
	defer bus.Close()

	world := sim.NewWorld(sc.Seed, bus)
	simulation := sim.New(world, sc.Horizon)

	if err := simulation.LoadScenario(sc, registry()); err != nil {
		log.Error().Err(err).Msg("failed to load scenario into the coordinator")
		os.Exit(64)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Warn().Msg("interrupt received, stopping simulation")
		cancel()
	}()

	outcome, err := simulation.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("simulation run failed")
	}

	log.Info().
		Str("reason", outcome.Reason.String()).
		Uint64("final_time_ns", outcome.FinalTime.Nanos()).
		Uint64("events_dispatched", outcome.EventsDispatched).
		Msg("simulation finished")

	// Exit codes: 0 horizon reached, 1 halt directive, 2 external stop,
	// 3 quiescence; 64 above for a scenario that fails to load.
	switch outcome.Reason {
	case sim.ReasonHalt:
		os.Exit(1)
	case sim.ReasonExternalStop:
		os.Exit(2)
	case sim.ReasonQuiescence:
		os.Exit(3)
	}
}

// registry lists every protocol a scenario file can reference by name. The
// built-in echo protocol is always available; a real deployment would
// extend this with its own protocol implementations.
func registry() map[string]func() protocol.Core {
	return map[string]func() protocol.Core{
		"echo-initiator": func() protocol.Core { return echoproto.New(1, true, 0) },
		"echo-responder": func() protocol.Core { return echoproto.New(0, false, 0) },
	}
}
