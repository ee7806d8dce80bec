// Command rockviz is the interactive terminal host: an orbit camera over a
// Kepler-propagated scene, driven from the keyboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BewareOfTheRocks/rockviz/core"
	"github.com/BewareOfTheRocks/rockviz/internal/logging"
	"github.com/BewareOfTheRocks/rockviz/internal/observability"
	"github.com/BewareOfTheRocks/rockviz/internal/scene"
	"github.com/BewareOfTheRocks/rockviz/internal/ui"
	"github.com/BewareOfTheRocks/rockviz/kb"
	"github.com/BewareOfTheRocks/rockviz/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to a JSON scenario file; empty runs the built-in default scene")
	rocks := flag.Int("rocks", 0, "Rock count for the default scene; 0 keeps the standard catalog")
	fps := flag.Int("fps", 30, "Frames per second for the render loop")
	rate := flag.Float64("rate", 30, "Simulation days advanced per wall-clock second")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	scn, err := loadScenario(*scenarioPath, *rocks, log)
	if err != nil {
		log.Error(ctx, "failed to load scenario", logging.String("path", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}

	frameInterval := time.Second / 30
	if *fps > 0 {
		frameInterval = time.Second / time.Duration(*fps)
	}

	s, tc, err := buildScene(scn, frameInterval, *rate, log)
	if err != nil {
		log.Error(ctx, "failed to build scene", logging.String("error", err.Error()))
		os.Exit(1)
	}

	// The model drives the clock itself, one Step per frame message; the
	// ticker goroutine stays off.
	p := tea.NewProgram(ui.New(s, tc, frameInterval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error(ctx, "terminal program failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	s.Teardown(ctx)
	log.Info(ctx, "session over", logging.Float64("sim_time", tc.Now()))
}

// loadScenario reads a scenario file, or falls back to the built-in default
// scene when no path is given.
func loadScenario(path string, rocks int, log logging.Logger) (*core.Scenario, error) {
	if path == "" {
		return core.DefaultScenario(rocks), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return core.LoadScenario(f, log)
}

// buildScene wires the store, camera, clock and scene state for a scenario
// and seeds the principal bodies.
func buildScene(scn *core.Scenario, frameInterval time.Duration, rate float64, log logging.Logger) (*scene.SceneState, *timectrl.TimeController, error) {
	store := kb.NewStore()
	cam := core.NewCameraController(log)
	tc := timectrl.NewTimeController(0, frameInterval, rate)

	var opts []scene.SceneOption
	if len(scn.Rocks) > 0 {
		pop := core.NewPopulator(scn.Rocks, core.PopulatorConfig{
			Trail:  64,
			Assets: core.NewAssets(log),
		}, log)
		opts = append(opts, scene.WithPopulator(pop))
	}

	s := scene.NewSceneState(store, cam, tc, log, opts...)

	ctx := context.Background()
	for _, b := range scn.Bodies {
		if err := s.AddBody(ctx, b); err != nil {
			return nil, nil, fmt.Errorf("seed %s: %w", b.Name(), err)
		}
	}

	s.Bind()
	return s, tc, nil
}
