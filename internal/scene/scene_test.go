package scene

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/BewareOfTheRocks/rockviz/core"
	"github.com/BewareOfTheRocks/rockviz/kb"
	"github.com/BewareOfTheRocks/rockviz/model"
	"github.com/BewareOfTheRocks/rockviz/timectrl"
)

var sceneStart = time.Unix(1700000000, 0)

type countRecorder struct {
	calls int
	last  map[string]int
}

func (r *countRecorder) SetBodyCounts(byKind map[string]int) {
	r.calls++
	r.last = byKind
}

type progressRecorder struct {
	processed, total int
}

func (r *progressRecorder) SetPopulateProgress(processed, total int) {
	r.processed, r.total = processed, total
}

type frameRecorder struct {
	frames []time.Duration
}

func (r *frameRecorder) ObserveFrameDuration(d time.Duration) {
	r.frames = append(r.frames, d)
}

func mustBody(t *testing.T, name string, kind model.BodyKind, radius float64, opts ...core.BodyOption) *core.Body {
	t.Helper()
	b, err := core.NewBody(name, kind, radius, opts...)
	if err != nil {
		t.Fatalf("NewBody(%s): %v", name, err)
	}
	return b
}

func rockRecord(name string) model.ElementRecord {
	return model.ElementRecord{
		Name:          name,
		SemiMajorAxis: 180,
		Eccentricity:  0.12,
		Period:        420,
		Inclination:   0.05,
		Omega:         1.1,
		RAAN:          2.4,
		Radius:        1.5,
		Epoch:         30,
		Seed:          7,
	}
}

func newScene(t *testing.T, seed []*core.Body, opts ...SceneOption) (*SceneState, *timectrl.TimeController) {
	t.Helper()
	store := kb.NewStore()
	for _, b := range seed {
		if err := store.AddBody(b); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	cam := core.NewCameraController(nil)
	tc := timectrl.NewTimeController(0, time.Second/60, 1)
	tc.SetNowFunc(func() time.Time { return sceneStart })
	s := NewSceneState(store, cam, tc, nil, opts...)
	s.SetNowFunc(func() time.Time { return sceneStart })
	return s, tc
}

func TestSceneState_LockSunFliesAndCommits(t *testing.T) {
	sun := mustBody(t, "Sun", model.KindSun, 30)
	s, _ := newScene(t, []*core.Body{sun})

	if err := s.LockSun(context.Background()); err != nil {
		t.Fatalf("LockSun: %v", err)
	}
	if snap := s.Snapshot(); !snap.Camera.Transitioning || snap.Camera.TargetName != "Sun" {
		t.Fatalf("camera %+v right after LockSun, want in-flight toward Sun", snap.Camera)
	}

	s.HandleTick(0, sceneStart.Add(defaultLockDuration))

	snap := s.Snapshot()
	if snap.Camera.Mode != core.LockSun || snap.Camera.Transitioning {
		t.Errorf("camera %+v after the easing window, want committed sun lock", snap.Camera)
	}
	if want := 30 * 6.0; snap.CameraRadius != want {
		t.Errorf("radius %v after commit, want default goal %v", snap.CameraRadius, want)
	}
}

func TestSceneState_LockMissingBodyErrors(t *testing.T) {
	s, _ := newScene(t, nil)

	err := s.LockEarth(context.Background())
	if !errors.Is(err, ErrBodyNotFound) {
		t.Fatalf("LockEarth on an empty scene: %v, want ErrBodyNotFound", err)
	}
	if snap := s.Snapshot(); snap.Camera.Transitioning || snap.Camera.Mode != core.LockFree {
		t.Errorf("camera moved on a failed lock: %+v", snap.Camera)
	}
}

func TestSceneState_BindDrivesFramesThroughClock(t *testing.T) {
	orbit, err := model.NewOrbitalElements(100, 0, 400, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewOrbitalElements: %v", err)
	}
	probe := mustBody(t, "probe", model.KindMeteor, 1, core.WithOrbit(orbit, 0))
	frames := &frameRecorder{}
	s, tc := newScene(t, []*core.Body{probe}, WithEngineMetrics(frames))
	s.Bind()

	tc.Step(100 * time.Second)

	snap := s.Snapshot()
	if snap.SimTime != 100 {
		t.Errorf("snapshot sim time %v, want 100", snap.SimTime)
	}
	if len(snap.Bodies) != 1 {
		t.Fatalf("snapshot holds %d bodies, want 1", len(snap.Bodies))
	}
	// Quarter period on a circular orbit lands on the +Z axis.
	pos := snap.Bodies[0].Pos
	if math.Abs(pos.X) > 1e-9 || math.Abs(pos.Y) > 1e-9 || math.Abs(pos.Z-100) > 1e-9 {
		t.Errorf("probe at %+v, want (0, 0, 100)", pos)
	}
	if len(frames.frames) != 1 {
		t.Errorf("observed %d frame durations, want 1", len(frames.frames))
	}
}

func TestSceneState_PopulationStreamsRocksIn(t *testing.T) {
	recs := make([]model.ElementRecord, 0, 25)
	for i := 0; i < 25; i++ {
		recs = append(recs, rockRecord(fmt.Sprintf("rock-%02d", i)))
	}
	pop := core.NewPopulator(recs, core.PopulatorConfig{Segments: 6}, nil)
	counts := &countRecorder{}
	prog := &progressRecorder{}
	s, _ := newScene(t, nil,
		WithPopulator(pop),
		WithBodyCountRecorder(counts),
		WithPopulateProgressRecorder(prog))

	s.HandleTick(0, sceneStart)

	snap := s.Snapshot()
	if !snap.Populating || snap.PopProcessed != 10 || snap.PopTotal != 25 {
		t.Fatalf("after one tick: populating=%v %d/%d, want true 10/25",
			snap.Populating, snap.PopProcessed, snap.PopTotal)
	}
	// onBatch refreshed the navigation list mid-run.
	if snap.Camera.MeteorCount != 10 {
		t.Errorf("meteor count %d after one batch, want 10", snap.Camera.MeteorCount)
	}

	s.HandleTick(0, sceneStart)
	s.HandleTick(0, sceneStart)

	snap = s.Snapshot()
	if snap.Populating {
		t.Errorf("still populating after three batches of 25 records")
	}
	if len(snap.Bodies) != 25 {
		t.Errorf("scene holds %d bodies, want 25", len(snap.Bodies))
	}
	if counts.last["meteor"] != 25 {
		t.Errorf("meteor gauge %d, want 25", counts.last["meteor"])
	}
	if prog.processed != 25 || prog.total != 25 {
		t.Errorf("progress gauge %d/%d, want 25/25", prog.processed, prog.total)
	}
	if snap.Camera.MeteorCount != 25 {
		t.Errorf("meteor count %d after the run, want 25", snap.Camera.MeteorCount)
	}
}

func TestSceneState_RemoveBodyReleasesAttachedCamera(t *testing.T) {
	sun := mustBody(t, "Sun", model.KindSun, 30)
	earth := mustBody(t, "Earth", model.KindEarth, 10)
	s, _ := newScene(t, []*core.Body{sun, earth})
	ctx := context.Background()

	// Committed lock.
	if err := s.LockSun(ctx); err != nil {
		t.Fatalf("LockSun: %v", err)
	}
	s.HandleTick(0, sceneStart.Add(defaultLockDuration))
	if err := s.RemoveBody(ctx, "Sun"); err != nil {
		t.Fatalf("RemoveBody(Sun): %v", err)
	}
	if snap := s.Snapshot(); snap.Camera.Mode != core.LockFree || snap.Camera.TargetName != "" {
		t.Errorf("camera %+v after its body left the scene, want free", snap.Camera)
	}

	// In-flight transition.
	if err := s.LockEarth(ctx); err != nil {
		t.Fatalf("LockEarth: %v", err)
	}
	if err := s.RemoveBody(ctx, "Earth"); err != nil {
		t.Fatalf("RemoveBody(Earth): %v", err)
	}
	snap := s.Snapshot()
	if snap.Camera.Transitioning {
		t.Errorf("transition survived the removal of its target")
	}
	if len(snap.Bodies) != 0 {
		t.Errorf("scene holds %d bodies, want 0", len(snap.Bodies))
	}
}

func TestSceneState_RemoveOtherBodyKeepsLock(t *testing.T) {
	sun := mustBody(t, "Sun", model.KindSun, 30)
	rock := mustBody(t, "Itokawa", model.KindMeteor, 2)
	s, _ := newScene(t, []*core.Body{sun, rock})
	ctx := context.Background()

	if err := s.LockSun(ctx); err != nil {
		t.Fatalf("LockSun: %v", err)
	}
	s.HandleTick(0, sceneStart.Add(defaultLockDuration))

	if err := s.RemoveBody(ctx, "Itokawa"); err != nil {
		t.Fatalf("RemoveBody: %v", err)
	}
	snap := s.Snapshot()
	if snap.Camera.Mode != core.LockSun || snap.Camera.TargetName != "Sun" {
		t.Errorf("camera %+v after removing an unrelated body, want sun lock held", snap.Camera)
	}
	if snap.Camera.MeteorCount != 0 {
		t.Errorf("meteor count %d after the last rock left, want 0", snap.Camera.MeteorCount)
	}
	if err := s.RemoveBody(ctx, "Itokawa"); !errors.Is(err, ErrBodyNotFound) {
		t.Errorf("second removal: %v, want ErrBodyNotFound", err)
	}
}

func TestSceneState_TeardownUnlocksCancelsAndClears(t *testing.T) {
	recs := make([]model.ElementRecord, 0, 25)
	for i := 0; i < 25; i++ {
		recs = append(recs, rockRecord(fmt.Sprintf("rock-%02d", i)))
	}
	pop := core.NewPopulator(recs, core.PopulatorConfig{Segments: 6}, nil)
	counts := &countRecorder{}
	sun := mustBody(t, "Sun", model.KindSun, 30)
	s, _ := newScene(t, []*core.Body{sun},
		WithPopulator(pop),
		WithBodyCountRecorder(counts))
	ctx := context.Background()

	s.HandleTick(0, sceneStart)
	s.FirstMeteor(ctx)
	if snap := s.Snapshot(); !snap.Camera.Transitioning {
		t.Fatalf("camera %+v before teardown, want in-flight meteor lock", snap.Camera)
	}

	s.Teardown(ctx)

	snap := s.Snapshot()
	if len(snap.Bodies) != 0 || s.Store().Len() != 0 {
		t.Errorf("%d bodies survived teardown, want 0", len(snap.Bodies))
	}
	if snap.Camera.Mode != core.LockFree || snap.Camera.Transitioning {
		t.Errorf("camera %+v after teardown, want free", snap.Camera)
	}
	if snap.Camera.MeteorCount != 0 {
		t.Errorf("meteor count %d after teardown, want 0", snap.Camera.MeteorCount)
	}
	if snap.Populating {
		t.Errorf("population survived teardown")
	}
	if len(counts.last) != 0 {
		t.Errorf("body gauges %v after teardown, want empty", counts.last)
	}
}

func TestSceneState_AddBodyJoinsNavigation(t *testing.T) {
	s, _ := newScene(t, nil)
	ctx := context.Background()

	rock := mustBody(t, "Itokawa", model.KindMeteor, 2)
	if err := s.AddBody(ctx, rock); err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	if snap := s.Snapshot(); snap.Camera.MeteorCount != 1 {
		t.Errorf("meteor count %d after adding a rock, want 1", snap.Camera.MeteorCount)
	}

	dup := mustBody(t, "Itokawa", model.KindMeteor, 2)
	if err := s.AddBody(ctx, dup); !errors.Is(err, ErrBodyExists) {
		t.Errorf("duplicate AddBody: %v, want ErrBodyExists", err)
	}
}

func TestSceneState_MeteorNavigation(t *testing.T) {
	rocks := []*core.Body{
		mustBody(t, "r0", model.KindMeteor, 1, core.WithStartPosition(model.Vec3{X: 10})),
		mustBody(t, "r1", model.KindMeteor, 1, core.WithStartPosition(model.Vec3{X: 20})),
		mustBody(t, "r2", model.KindMeteor, 1, core.WithStartPosition(model.Vec3{X: 30})),
	}
	s, _ := newScene(t, rocks)
	ctx := context.Background()

	s.FirstMeteor(ctx)
	if snap := s.Snapshot(); snap.Camera.MeteorIndex != 0 || snap.Camera.TargetName != "r0" {
		t.Fatalf("camera %+v after FirstMeteor, want index 0 toward r0", snap.Camera)
	}

	s.HandleTick(0, sceneStart.Add(defaultLockDuration))
	s.NextMeteor(ctx)
	if snap := s.Snapshot(); snap.Camera.MeteorIndex != 1 || snap.Camera.TargetName != "r1" {
		t.Errorf("camera %+v after NextMeteor, want index 1 toward r1", snap.Camera)
	}

	s.LockMeteorAt(ctx, 99)
	if snap := s.Snapshot(); snap.Camera.MeteorIndex != 2 || snap.Camera.TargetName != "r2" {
		t.Errorf("camera %+v after an out-of-range jump, want clamped to r2", snap.Camera)
	}

	s.PrevMeteor(ctx)
	s.PrevMeteor(ctx)
	s.PrevMeteor(ctx)
	if snap := s.Snapshot(); snap.Camera.MeteorIndex != 0 {
		t.Errorf("index %d after walking past the start, want 0", snap.Camera.MeteorIndex)
	}
}

func TestSceneState_ClockRelays(t *testing.T) {
	s, tc := newScene(t, nil)

	if !s.TogglePause() {
		t.Error("TogglePause returned false, want paused")
	}
	if !tc.Paused() {
		t.Error("clock not paused after TogglePause")
	}
	if s.TogglePause() {
		t.Error("second TogglePause returned true, want resumed")
	}

	s.SetRate(3)
	if got := s.Snapshot().Rate; got != 3 {
		t.Errorf("rate %v, want 3", got)
	}
	s.SetRate(-1)
	if got := s.Snapshot().Rate; got != 3 {
		t.Errorf("rate %v after an invalid SetRate, want 3 kept", got)
	}

	s.Pause()
	if !tc.Paused() {
		t.Error("clock not paused after Pause")
	}
	s.Resume()
	if tc.Paused() {
		t.Error("clock still paused after Resume")
	}
}

func TestSceneState_ToggleAutoRotate(t *testing.T) {
	s, _ := newScene(t, nil)
	ctx := context.Background()

	if !s.ToggleAutoRotate(ctx) {
		t.Error("first toggle returned false, want enabled")
	}
	if snap := s.Snapshot(); !snap.AutoRotate {
		t.Error("snapshot auto rotate false after enabling")
	}
	if s.ToggleAutoRotate(ctx) {
		t.Error("second toggle returned true, want disabled")
	}
}

func TestSceneState_ManualInputRelays(t *testing.T) {
	s, _ := newScene(t, nil)

	before := s.Snapshot()
	s.Rotate(0.5, 0)
	s.ZoomBy(-40)
	after := s.Snapshot()

	if after.CameraRadius >= before.CameraRadius {
		t.Errorf("radius %v after zooming in from %v, want smaller",
			after.CameraRadius, before.CameraRadius)
	}
	if after.CameraPos == before.CameraPos {
		t.Errorf("camera position unchanged after rotate and zoom")
	}
}
