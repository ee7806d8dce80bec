// Package scene coordinates the body store, frame engine, camera and clock
// behind one command surface, so a TUI goroutine and the ticker goroutine
// can drive the same scene without racing each other.
package scene

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BewareOfTheRocks/rockviz/core"
	"github.com/BewareOfTheRocks/rockviz/internal/logging"
	"github.com/BewareOfTheRocks/rockviz/kb"
	"github.com/BewareOfTheRocks/rockviz/model"
	"github.com/BewareOfTheRocks/rockviz/timectrl"
)

// Re-export the store sentinels so hosts can match scene errors without
// importing kb directly.
var (
	// ErrBodyExists indicates a body with the same name is already in the scene.
	ErrBodyExists = kb.ErrBodyExists
	// ErrBodyNotFound indicates a requested body is not in the scene.
	ErrBodyNotFound = kb.ErrBodyNotFound
)

const tracerName = "github.com/BewareOfTheRocks/rockviz/internal/scene"

// defaultLockDuration matches the camera's own meteor-shortcut easing window.
const defaultLockDuration = 1500 * time.Millisecond

// BodyCountRecorder receives per-kind body counts for the scene gauges.
type BodyCountRecorder interface {
	SetBodyCounts(byKind map[string]int)
}

// PopulateProgressRecorder receives population progress updates.
type PopulateProgressRecorder interface {
	SetPopulateProgress(processed, total int)
}

// SceneState owns the frame pipeline and exposes the commands a host calls.
//
// Store subscribers fire while the scene lock is held during population;
// they must not call back into SceneState.
type SceneState struct {
	// mu is the coarse scene-level lock. Take it before touching the store
	// to keep the SceneState -> store lock ordering. The camera and engine
	// have no locks of their own and are only touched under mu.
	mu sync.Mutex

	store  *kb.Store
	camera *core.CameraController
	tc     *timectrl.TimeController
	engine *core.Engine

	// populator is optional; a scene without one simply has no rocks to
	// stream in.
	populator *core.Populator

	lockDuration time.Duration
	nowFn        func() time.Time

	log           logging.Logger
	engineMetrics core.EngineMetrics
	bodyCounts    BodyCountRecorder
	progress      PopulateProgressRecorder
}

// SceneSnapshot is a consistent, host-owned view of one frame. Everything in
// it is copied; holding a snapshot never blocks or races the scene.
type SceneSnapshot struct {
	SimTime float64
	Rate    float64
	Paused  bool

	Bodies []BodyView

	Camera       core.LockStatus
	CameraPos    model.Vec3
	CameraTarget model.Vec3
	CameraRadius float64
	AutoRotate   bool

	// LockedTrail holds the locked body's recent positions, oldest first.
	// Empty when nothing is locked or the body records no trail.
	LockedTrail []model.Vec3

	Populating             bool
	PopProcessed, PopTotal int
}

// BodyView is the per-body slice of a snapshot.
type BodyView struct {
	Name   string
	Kind   model.BodyKind
	Pos    model.Vec3
	Radius float64
}

// SceneOption customises SceneState construction.
type SceneOption func(*SceneState)

// WithPopulator attaches a population run that the frame loop drains one
// batch per tick.
func WithPopulator(p *core.Populator) SceneOption {
	return func(s *SceneState) { s.populator = p }
}

// WithEngineMetrics wires the frame-duration histogram into the engine.
func WithEngineMetrics(m core.EngineMetrics) SceneOption {
	return func(s *SceneState) { s.engineMetrics = m }
}

// WithBodyCountRecorder attaches an optional recorder for per-kind body
// count gauges.
func WithBodyCountRecorder(r BodyCountRecorder) SceneOption {
	return func(s *SceneState) { s.bodyCounts = r }
}

// WithPopulateProgressRecorder attaches an optional recorder for the
// population progress gauge.
func WithPopulateProgressRecorder(r PopulateProgressRecorder) SceneOption {
	return func(s *SceneState) { s.progress = r }
}

// WithLockDuration overrides the easing window lock commands use.
func WithLockDuration(d time.Duration) SceneOption {
	return func(s *SceneState) {
		if d > 0 {
			s.lockDuration = d
		}
	}
}

// NewSceneState wires the store, camera and clock into a frame pipeline. The
// engine is built internally so new bodies land in the store and the camera's
// meteor list on the same frame that creates them. A nil logger is replaced
// with a no-op one.
func NewSceneState(store *kb.Store, camera *core.CameraController, tc *timectrl.TimeController, log logging.Logger, opts ...SceneOption) *SceneState {
	if log == nil {
		log = logging.Noop()
	}
	s := &SceneState{
		store:        store,
		camera:       camera,
		tc:           tc,
		lockDuration: defaultLockDuration,
		nowFn:        time.Now,
		log:          log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	engineOpts := []core.EngineOption{}
	if s.engineMetrics != nil {
		engineOpts = append(engineOpts, core.WithEngineMetrics(s.engineMetrics))
	}
	if s.populator != nil {
		// onBatch runs inside Tick with s.mu already held, so it must use
		// the Locked helpers directly.
		engineOpts = append(engineOpts, core.WithPopulation(s.populator,
			s.store.AddBody,
			func([]*core.Body) { s.refreshMeteorsLocked() },
		))
	}
	s.engine = core.NewEngine(s.store, s.camera, log, engineOpts...)

	// No concurrency yet; the Locked helpers are safe to call bare here.
	s.refreshMeteorsLocked()
	s.updateGaugesLocked()
	return s
}

// Store exposes the underlying body store. The store carries its own lock,
// so hosts may seed principals and subscribe to change events through it
// directly.
func (s *SceneState) Store() *kb.Store { return s.store }

// SetNowFunc replaces the wall clock lock commands use to start camera
// transitions. Tests inject a fake clock.
func (s *SceneState) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// Bind registers the scene's frame handler with the time controller. Call it
// once after construction; hosts that own their loop may skip Bind and call
// HandleTick themselves.
func (s *SceneState) Bind() {
	s.tc.AddListener(s.HandleTick)
}

// HandleTick runs one frame: the pending population batch, every body's
// orbit, then the camera.
func (s *SceneState) HandleTick(simTime float64, wall time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(simTime, wall)
}

func (s *SceneState) tickLocked(simTime float64, wall time.Time) {
	if s.populator != nil && !s.populator.Done() {
		_, span := startSpan(context.Background(), "Scene/PopulateBatch",
			attribute.Float64("sim_time", simTime))
		s.engine.Tick(simTime, wall)
		processed, total := s.populator.Progress()
		span.SetAttributes(
			attribute.Int("processed", processed),
			attribute.Int("total", total),
		)
		span.End()
	} else {
		s.engine.Tick(simTime, wall)
	}
	s.updateGaugesLocked()
}

// Snapshot returns a copied view of the current frame for rendering.
func (s *SceneState) Snapshot() *SceneSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	bodies := s.store.ListBodies()
	views := make([]BodyView, 0, len(bodies))
	for _, b := range bodies {
		views = append(views, BodyView{
			Name:   b.Name(),
			Kind:   b.Kind(),
			Pos:    b.Position(),
			Radius: b.Radius(),
		})
	}

	snap := &SceneSnapshot{
		SimTime:      s.tc.Now(),
		Rate:         s.tc.Rate(),
		Paused:       s.tc.Paused(),
		Bodies:       views,
		Camera:       s.camera.Status(),
		CameraPos:    s.camera.Position(),
		CameraTarget: s.camera.Target(),
		CameraRadius: s.camera.Radius(),
		AutoRotate:   s.camera.AutoRotate(),
	}
	if lb := s.camera.LockedBody(); lb != nil {
		snap.LockedTrail = lb.Trail()
	}
	if s.populator != nil {
		snap.Populating = !s.populator.Done()
		snap.PopProcessed, snap.PopTotal = s.populator.Progress()
	}
	return snap
}

// LockSun flies the camera onto the scene's sun.
func (s *SceneState) LockSun(ctx context.Context) error {
	return s.lockKind(ctx, "Scene/LockSun", core.LockSun, model.KindSun)
}

// LockEarth flies the camera onto the scene's earth.
func (s *SceneState) LockEarth(ctx context.Context) error {
	return s.lockKind(ctx, "Scene/LockEarth", core.LockEarth, model.KindEarth)
}

func (s *SceneState) lockKind(ctx context.Context, spanName string, mode core.LockMode, kind model.BodyKind) error {
	_, span := startSpan(ctx, spanName)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.store.FirstByKind(kind)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("lock %s: %w", kind, err)
	}
	span.SetAttributes(attribute.String("body", b.Name()))
	s.camera.LockOn(mode, b, 0, s.lockDuration, s.nowFn())
	return nil
}

// LockMeteorAt jumps the meteor cursor to index i, clamped into the list,
// and locks onto that rock.
func (s *SceneState) LockMeteorAt(ctx context.Context, i int) {
	_, span := startSpan(ctx, "Scene/LockMeteorAt", attribute.Int("index", i))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.LockMeteorAt(i, s.nowFn())
}

// FirstMeteor locks onto the first rock in the meteor list.
func (s *SceneState) FirstMeteor(ctx context.Context) {
	_, span := startSpan(ctx, "Scene/FirstMeteor")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.FirstMeteor(s.nowFn())
}

// NextMeteor advances the meteor cursor and locks onto the next rock.
func (s *SceneState) NextMeteor(ctx context.Context) {
	_, span := startSpan(ctx, "Scene/NextMeteor")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.NextMeteor(s.nowFn())
}

// PrevMeteor moves the meteor cursor back and locks onto the previous rock.
func (s *SceneState) PrevMeteor(ctx context.Context) {
	_, span := startSpan(ctx, "Scene/PrevMeteor")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.PrevMeteor(s.nowFn())
}

// Unlock releases any camera lock or in-flight transition.
func (s *SceneState) Unlock(ctx context.Context) {
	ctx, span := startSpan(ctx, "Scene/Unlock")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Unlock()
	s.log.Debug(ctx, "camera unlocked")
}

// ResetCamera restores the camera's initial pose and releases any lock.
func (s *SceneState) ResetCamera(ctx context.Context) {
	ctx, span := startSpan(ctx, "Scene/ResetCamera")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.ResetView()
	s.log.Debug(ctx, "camera reset")
}

// ToggleAutoRotate flips the free-mode auto rotation and reports the new
// state.
func (s *SceneState) ToggleAutoRotate(ctx context.Context) bool {
	ctx, span := startSpan(ctx, "Scene/ToggleAutoRotate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	on := !s.camera.AutoRotate()
	s.camera.SetAutoRotate(on)
	span.SetAttributes(attribute.Bool("enabled", on))
	s.log.Debug(ctx, "auto rotate toggled", logging.Bool("enabled", on))
	return on
}

// Rotate orbits the camera by the given angular deltas. Continuous input:
// no span, no log.
func (s *SceneState) Rotate(dTheta, dPhi float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Rotate(dTheta, dPhi)
}

// ZoomBy moves the camera along its view ray. Continuous input: no span,
// no log.
func (s *SceneState) ZoomBy(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Zoom(delta)
}

// SetRate forwards to the clock. Invalid rates are rejected there.
func (s *SceneState) SetRate(rate float64) { s.tc.SetRate(rate) }

// TogglePause flips the clock and reports the new paused state.
func (s *SceneState) TogglePause() bool { return s.tc.TogglePause() }

// Pause freezes simulation time.
func (s *SceneState) Pause() { s.tc.Pause() }

// Resume releases a paused clock.
func (s *SceneState) Resume() { s.tc.Resume() }

// AddBody inserts a body into the scene between frames. Rocks become part
// of the meteor navigation immediately.
func (s *SceneState) AddBody(ctx context.Context, b *core.Body) error {
	name := ""
	if b != nil {
		name = b.Name()
	}
	ctx, span := startSpan(ctx, "Scene/AddBody", attribute.String("body", name))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.AddBody(b); err != nil {
		span.RecordError(err)
		return fmt.Errorf("add body: %w", err)
	}
	s.refreshMeteorsLocked()
	s.updateGaugesLocked()

	s.log.Debug(ctx, "body added",
		logging.String("body", name),
		logging.Int("bodies", s.store.Len()))
	return nil
}

// RemoveBody takes a body out of the scene. A camera attached to it,
// committed or mid-flight, lets go rather than chase a body that is no
// longer there.
func (s *SceneState) RemoveBody(ctx context.Context, name string) error {
	ctx, span := startSpan(ctx, "Scene/RemoveBody", attribute.String("body", name))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.RemoveBody(name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("remove body: %w", err)
	}
	if st := s.camera.Status(); st.TargetName == name {
		s.camera.Unlock()
	}
	s.refreshMeteorsLocked()
	s.updateGaugesLocked()

	s.log.Debug(ctx, "body removed",
		logging.String("body", name),
		logging.Int("bodies", s.store.Len()))
	return nil
}

// Teardown clears the scene. The camera unlocks before the store empties, so
// it never holds a reference to a body outside the scene, and any pending
// population is cancelled.
func (s *SceneState) Teardown(ctx context.Context) {
	ctx, span := startSpan(ctx, "Scene/Teardown")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.camera.Status()
	s.log.Debug(ctx, "tearing down scene",
		logging.Int("bodies", s.store.Len()),
		logging.String("camera_mode", st.Mode.String()),
		logging.Bool("populating", s.populator != nil && !s.populator.Done()))

	s.camera.Unlock()
	s.camera.SetMeteorList(nil)
	if s.populator != nil {
		s.populator.Cancel()
	}
	removed := s.store.Clear()
	s.updateGaugesLocked()

	s.log.Info(ctx, "scene cleared", logging.Int("removed", removed))
}

// refreshMeteorsLocked hands the camera the store's current rock list.
// Caller must hold s.mu.
func (s *SceneState) refreshMeteorsLocked() {
	s.camera.SetMeteorList(s.store.ListByKind(model.KindMeteor))
}

// updateGaugesLocked pushes the body-count and populate-progress gauges.
// Caller must hold s.mu.
func (s *SceneState) updateGaugesLocked() {
	if s.bodyCounts != nil {
		counts := make(map[string]int)
		for _, b := range s.store.ListBodies() {
			counts[b.Kind().String()]++
		}
		s.bodyCounts.SetBodyCounts(counts)
	}
	if s.progress != nil && s.populator != nil {
		processed, total := s.populator.Progress()
		s.progress.SetPopulateProgress(processed, total)
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
