// Command simulator runs a rockviz scenario headless: the ticker drives the
// frame pipeline, Prometheus metrics are served over HTTP, and a scripted
// camera tour exercises the lock pipeline while a digest of the scene state
// is logged once per second.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/BewareOfTheRocks/rockviz/core"
	"github.com/BewareOfTheRocks/rockviz/internal/logging"
	"github.com/BewareOfTheRocks/rockviz/internal/observability"
	"github.com/BewareOfTheRocks/rockviz/internal/scene"
	"github.com/BewareOfTheRocks/rockviz/internal/script"
	"github.com/BewareOfTheRocks/rockviz/kb"
	"github.com/BewareOfTheRocks/rockviz/timectrl"
)

// digestEvery is how much wall time passes between digest lines. A var so
// tests can shrink it.
var digestEvery = time.Second

func main() {
	scenarioPath := flag.String("scenario", "", "Path to a JSON scenario file; empty runs the built-in default scene")
	rocks := flag.Int("rocks", 0, "Rock count for the default scene; 0 keeps the standard catalog")
	duration := flag.Duration("duration", 60*time.Second, "Wall-clock run length; 0 runs until interrupted")
	tick := flag.Duration("tick", time.Second/60, "Frame interval for the simulation ticker")
	rate := flag.Float64("rate", 30, "Simulation days advanced per wall-clock second")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics; empty disables")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewSceneCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise scene metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}
	propagation, err := observability.NewPropagationCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise propagation metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}

	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	scn, err := loadScenario(*scenarioPath, *rocks, log)
	if err != nil {
		log.Error(ctx, "failed to load scenario", logging.String("path", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}

	tc := timectrl.NewTimeController(0, *tick, *rate)
	s, err := assembleScene(scn, tc, collector, propagation, log)
	if err != nil {
		log.Error(ctx, "failed to assemble scene", logging.String("error", err.Error()))
		os.Exit(1)
	}

	cleanup := wireRun(ctx, s, tc, log)
	defer cleanup()

	log.Info(ctx, "starting headless run",
		logging.Duration("duration", *duration),
		logging.Duration("tick", *tick),
		logging.Float64("rate", *rate),
		logging.Int("bodies", len(scn.Bodies)),
		logging.Int("rocks", len(scn.Rocks)),
	)

	done := tc.Start(*duration)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	select {
	case <-done:
		log.Info(ctx, "run complete", logging.Float64("sim_time", tc.Now()))
	case <-stopCtx.Done():
		log.Info(ctx, "interrupt received, shutting down")
		tc.Stop()
		<-done
	}

	s.Teardown(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
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

// assembleScene builds the store, camera, populator and scene state for a
// scenario, seeds the principal bodies, and binds the scene to the clock.
func assembleScene(scn *core.Scenario, tc *timectrl.TimeController, collector *observability.SceneCollector, propagation *observability.PropagationCollector, log logging.Logger) (*scene.SceneState, error) {
	store := kb.NewStore()

	var camOpts []core.CameraOption
	if collector != nil {
		camOpts = append(camOpts, core.WithCameraMetrics(collector))
	}
	cam := core.NewCameraController(log, camOpts...)

	var sceneOpts []scene.SceneOption
	if len(scn.Rocks) > 0 {
		cfg := core.PopulatorConfig{
			Trail:  64,
			Assets: core.NewAssets(log),
		}
		if propagation != nil {
			cfg.Metrics = propagation
			cfg.Kepler = propagation
		}
		sceneOpts = append(sceneOpts, scene.WithPopulator(core.NewPopulator(scn.Rocks, cfg, log)))
	}
	if collector != nil {
		sceneOpts = append(sceneOpts,
			scene.WithEngineMetrics(collector),
			scene.WithBodyCountRecorder(collector),
		)
	}
	if propagation != nil {
		sceneOpts = append(sceneOpts, scene.WithPopulateProgressRecorder(propagation))
	}

	s := scene.NewSceneState(store, cam, tc, log, sceneOpts...)

	ctx := context.Background()
	for _, b := range scn.Bodies {
		if err := s.AddBody(ctx, b); err != nil {
			return nil, fmt.Errorf("seed %s: %w", b.Name(), err)
		}
	}

	s.Bind()
	return s, nil
}

// wireRun attaches the listeners a headless run wants on top of the frame
// pipeline: store event logging, the scripted camera tour, and the periodic
// digest. The returned cleanup detaches the store subscription.
func wireRun(ctx context.Context, s *scene.SceneState, tc *timectrl.TimeController, log logging.Logger) (cleanup func()) {
	unsubscribe := logStoreEvents(s.Store(), log)

	tl := script.NewTimeline(tc)
	scheduleTour(ctx, tl, s, log)

	tc.AddListener(func(float64, time.Time) { tl.RunDue() })
	tc.AddListener(digestListener(ctx, s, log))

	return unsubscribe
}

// logStoreEvents mirrors population changes into the log so a headless run
// leaves a record of every body entering or leaving the scene.
func logStoreEvents(store *kb.Store, log logging.Logger) (unsubscribe func()) {
	return store.Subscribe(func(ev kb.Event) {
		if ev.Body == nil {
			return
		}
		switch ev.Type {
		case kb.EventBodyAdded:
			log.Debug(context.Background(), "body entered scene",
				logging.String("body", ev.Body.Name()),
				logging.String("kind", ev.Body.Kind().String()),
			)
		case kb.EventBodyRemoved:
			log.Debug(context.Background(), "body left scene",
				logging.String("body", ev.Body.Name()),
			)
		}
	})
}

// scheduleTour cues a short camera tour so a headless run exercises the lock
// pipeline without an operator: earth, two rocks, the sun, then free flight.
// Cue times are simulation days from the current clock reading.
func scheduleTour(ctx context.Context, tl script.Timeline, s *scene.SceneState, log logging.Logger) {
	start := tl.Now()

	lock := func(name string, f func(context.Context) error) func() {
		return func() {
			if err := f(ctx); err != nil {
				log.Warn(ctx, "tour lock failed", logging.String("target", name), logging.Err(err))
			}
		}
	}

	tl.Schedule(start+60, lock("earth", s.LockEarth))
	tl.Schedule(start+240, func() { s.FirstMeteor(ctx) })
	tl.Schedule(start+420, func() { s.NextMeteor(ctx) })
	tl.Schedule(start+600, lock("sun", s.LockSun))
	tl.Schedule(start+780, func() { s.Unlock(ctx) })
}

// digestListener emits a status line once per digestEvery of wall time with
// the sim clock, body count, camera position and lock target.
func digestListener(ctx context.Context, s *scene.SceneState, log logging.Logger) func(simTime float64, wall time.Time) {
	var last time.Time
	return func(simTime float64, wall time.Time) {
		if !last.IsZero() && wall.Sub(last) < digestEvery {
			return
		}
		last = wall

		snap := s.Snapshot()
		fields := []logging.Field{
			logging.Float64("sim_time", snap.SimTime),
			logging.Int("bodies", len(snap.Bodies)),
			logging.String("lock", lockLabel(snap.Camera)),
			logging.Vec3("camera", snap.CameraPos),
		}
		if snap.Populating {
			fields = append(fields, logging.String("populate", fmt.Sprintf("%d/%d", snap.PopProcessed, snap.PopTotal)))
		}
		log.Info(ctx, "scene digest", fields...)
	}
}

// lockLabel renders the camera lock for the digest line.
func lockLabel(st core.LockStatus) string {
	switch {
	case st.Transitioning:
		return "-> " + st.TargetName
	case st.Mode == core.LockFree:
		return "free"
	default:
		return st.TargetName
	}
}

func serveMetrics(addr string, collector *observability.SceneCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
