// Command simserver exposes a running simulation's control channel and
// telemetry bus to WebSocket clients, adapted from the teacher's
// apps/api/cmd/server entry point: the same route/CORS/graceful-shutdown
// shape, wired to this repo's own coordinator and telemetry types instead
// of the teacher's bespoke protocol/simulation.Manager pair.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/19h/ftsim/examples/echoproto"
	"github.com/19h/ftsim/internal/wsbridge"
	"github.com/19h/ftsim/internal/yamlscenario"
	"github.com/19h/ftsim/pkg/protocol"
	"github.com/19h/ftsim/pkg/sim"
	"github.com/19h/ftsim/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a YAML scenario document")
	addr := flag.String("addr", ":8080", "address to listen on")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatal().Msg("simserver: -scenario is required")
	}

	file, err := yamlscenario.Load(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *scenarioPath).Msg("failed to load scenario")
	}

	external := make(chan telemetry.ExternalEvent, 256)
	bus := telemetry.New(telemetry.NewLogSink(os.Stdout), telemetry.NewMetricsSink(), telemetry.NewSnapshotSink(), external)
	defer bus.Close()

	world := sim.NewWorld(file.Scenario.Seed, bus)
	simulation := sim.New(world, file.Scenario.Horizon)
	if err := simulation.LoadScenario(file.Scenario, registry()); err != nil {
		log.Fatal().Err(err).Msg("failed to load scenario into the coordinator")
	}

	hub := wsbridge.NewHub()
	go hub.Run()

	bridge := wsbridge.NewBridge(hub, simulation)
	go bridge.Run(external)

	wsHandler := wsbridge.NewWebSocketHandler(hub)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"clients": hub.ClientCount(),
		})
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	runDone := make(chan sim.Outcome, 1)
	go func() {
		outcome, err := simulation.Run(runCtx)
		if err != nil {
			log.Error().Err(err).Msg("simulation run failed")
		}
		runDone <- outcome
	}()

	go func() {
		log.Info().Str("addr", *addr).Msg("simserver: listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("simserver: listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn().Msg("simserver: shutting down")

	cancelRun()
	<-runDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("simserver: forced shutdown")
	}
	log.Info().Msg("simserver: stopped")
}

func registry() map[string]func() protocol.Core {
	return map[string]func() protocol.Core{
		"echo-initiator": func() protocol.Core { return echoproto.New(1, true, 0) },
		"echo-responder": func() protocol.Core { return echoproto.New(0, false, 0) },
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
