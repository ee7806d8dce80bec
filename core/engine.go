package core

import (
	"context"
	"time"

	"github.com/BewareOfTheRocks/rockviz/internal/logging"
)

// BodySource yields the bodies a frame updates. The kb store implements it.
type BodySource interface {
	ListBodies() []*Body
}

// EngineMetrics receives frame timings.
type EngineMetrics interface {
	ObserveFrameDuration(d time.Duration)
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithEngineMetrics wires the frame-duration histogram.
func WithEngineMetrics(m EngineMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithPopulation attaches a population run. sink receives each created body
// (normally the store's AddBody); onBatch fires after a batch landed so the
// scene can refresh anything derived from the population, such as the
// camera's meteor list.
func WithPopulation(p *Populator, sink func(*Body) error, onBatch func(added []*Body)) EngineOption {
	return func(e *Engine) {
		e.populator = p
		e.sink = sink
		e.onBatch = onBatch
	}
}

// Engine runs one frame of scene work in a fixed order: the pending
// population chunk first, then every body's orbit update, then the camera.
// New bodies therefore position themselves in the same frame that creates
// them and the camera always sees current positions.
//
// Tick is strictly sequential and spawns no goroutines; the host decides
// what drives it and at what cadence.
type Engine struct {
	bodies BodySource
	camera *CameraController

	populator *Populator
	sink      func(*Body) error
	onBatch   func(added []*Body)
	popLogged bool

	tickListeners []func(simTime float64)

	metrics EngineMetrics
	log     logging.Logger
}

// NewEngine wires a frame engine over a body source and a camera. A nil
// logger is replaced with a no-op one.
func NewEngine(bodies BodySource, camera *CameraController, log logging.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	e := &Engine{
		bodies: bodies,
		camera: camera,
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterTickListener adds a callback invoked at the end of every frame,
// after the camera has updated.
func (e *Engine) RegisterTickListener(fn func(simTime float64)) {
	e.tickListeners = append(e.tickListeners, fn)
}

// Populating reports whether a population run is still working.
func (e *Engine) Populating() bool {
	return e.populator != nil && !e.populator.Done()
}

// Tick advances the scene one frame. simTime positions the bodies; now
// drives the camera's wall-time easing.
func (e *Engine) Tick(simTime float64, now time.Time) {
	start := time.Now()
	ctx := context.Background()

	if e.populator != nil && !e.populator.Done() {
		created, done := e.populator.Step(simTime)

		var added []*Body
		for _, b := range created {
			if e.sink != nil {
				if err := e.sink(b); err != nil {
					e.log.Warn(ctx, "dropping populated body",
						logging.String("body", b.Name()),
						logging.Err(err))
					continue
				}
			}
			added = append(added, b)
		}
		if len(added) > 0 && e.onBatch != nil {
			e.onBatch(added)
		}
		if done && !e.popLogged {
			e.popLogged = true
			processed, total := e.populator.Progress()
			e.log.Info(ctx, "population complete",
				logging.Int("processed", processed),
				logging.Int("total", total),
				logging.Int("created", e.populator.Created()))
		}
	}

	for _, b := range e.bodies.ListBodies() {
		b.UpdateOrbit(simTime)
	}

	if e.camera != nil {
		e.camera.Update(now)
	}

	for _, fn := range e.tickListeners {
		fn(simTime)
	}

	if e.metrics != nil {
		e.metrics.ObserveFrameDuration(time.Since(start))
	}
}
