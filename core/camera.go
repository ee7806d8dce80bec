package core

import (
	"context"
	"math"
	"time"

	"github.com/BewareOfTheRocks/rockviz/internal/logging"
	"github.com/BewareOfTheRocks/rockviz/model"
)

// LockMode names what the camera is attached to.
type LockMode int

const (
	LockFree LockMode = iota
	LockSun
	LockEarth
	LockMeteor
)

// String returns the lower-case mode name used in logs and metric labels.
func (m LockMode) String() string {
	switch m {
	case LockSun:
		return "sun"
	case LockEarth:
		return "earth"
	case LockMeteor:
		return "meteor"
	default:
		return "free"
	}
}

const (
	// minDistanceFactor scales a body's radius into the closest approach
	// the camera may make to it.
	minDistanceFactor = 2.5

	// polarEpsilon keeps phi off the poles so the view-up vector never
	// degenerates.
	polarEpsilon = 0.01

	// defaultLockDuration is used by the meteor navigation shortcuts.
	defaultLockDuration = 1500 * time.Millisecond

	// defaultGoalFactor sets the lock goal distance when the caller does
	// not supply one.
	defaultGoalFactor = 6
)

// CameraMetrics receives camera counters. Implementations must tolerate
// being called from the frame loop every tick.
type CameraMetrics interface {
	IncLockTransition(mode string)
	IncFrameSkipped()
}

// LockStatus is a snapshot of the camera's lock state for status bars and
// tests.
type LockStatus struct {
	Mode          LockMode
	TargetName    string
	Transitioning bool
	MeteorIndex   int
	MeteorCount   int
}

// cameraTransition carries one in-flight fly-to. The pending mode and body
// commit only when the transition completes, so at most one lock is ever
// active.
type cameraTransition struct {
	mode       LockMode
	body       *Body
	goalRadius float64
	duration   time.Duration
	startedAt  time.Time

	startTarget model.Vec3
	startTheta  float64
	startPhi    float64
	startRadius float64
}

// cameraPose is the validated state restored when a frame produces
// non-finite values.
type cameraPose struct {
	target model.Vec3
	radius float64
	theta  float64
	phi    float64
}

// CameraController is the orbit-camera state machine: a spherical orbit
// around a target point, optionally locked to a moving body, with eased
// fly-to transitions between attachments.
//
// The controller is single-threaded. It runs inside the frame tick; the
// scene layer holds the lock around it.
type CameraController struct {
	target model.Vec3
	radius float64
	theta  float64
	phi    float64

	mode       LockMode
	locked     *Body
	transition *cameraTransition

	meteors   []*Body
	meteorIdx int

	flatMinDistance float64
	maxDistance     float64
	originBody      *Body
	zoomSpeed       float64
	rotateSpeed     float64
	autoRotate      bool
	autoRotateRate  float64

	initial cameraPose

	lastUpdate time.Time
	hasUpdated bool
	lastValid  cameraPose

	log     logging.Logger
	metrics CameraMetrics
}

// CameraOption configures a CameraController at construction.
type CameraOption func(*CameraController)

// WithDistanceBounds sets the free-mode closest approach and the absolute
// farthest distance.
func WithDistanceBounds(min, max float64) CameraOption {
	return func(c *CameraController) {
		c.flatMinDistance = min
		c.maxDistance = max
	}
}

// WithInitialOrbit sets the starting spherical pose, which ResetView also
// restores.
func WithInitialOrbit(radius, theta, phi float64) CameraOption {
	return func(c *CameraController) {
		c.radius = radius
		c.theta = theta
		c.phi = phi
	}
}

// WithInitialTarget sets the starting orbit centre.
func WithInitialTarget(at model.Vec3) CameraOption {
	return func(c *CameraController) { c.target = at }
}

// WithZoomSpeed scales Zoom deltas.
func WithZoomSpeed(s float64) CameraOption {
	return func(c *CameraController) { c.zoomSpeed = s }
}

// WithRotateSpeed scales Rotate deltas.
func WithRotateSpeed(s float64) CameraOption {
	return func(c *CameraController) { c.rotateSpeed = s }
}

// WithAutoRotateRate sets the idle spin rate in radians per wall second.
func WithAutoRotateRate(r float64) CameraOption {
	return func(c *CameraController) { c.autoRotateRate = r }
}

// WithOriginBody names a large body sitting at the scene origin. Its radius
// widens the free-mode minimum distance so the camera cannot dive inside it.
func WithOriginBody(b *Body) CameraOption {
	return func(c *CameraController) { c.originBody = b }
}

// WithCameraMetrics wires the camera counters.
func WithCameraMetrics(m CameraMetrics) CameraOption {
	return func(c *CameraController) { c.metrics = m }
}

// NewCameraController builds a free camera with presentation defaults. A
// nil logger is replaced with a no-op one.
func NewCameraController(log logging.Logger, opts ...CameraOption) *CameraController {
	if log == nil {
		log = logging.Noop()
	}
	c := &CameraController{
		radius:          250,
		theta:           0,
		phi:             math.Pi / 3,
		flatMinDistance: 5,
		maxDistance:     500,
		zoomSpeed:       1,
		rotateSpeed:     1,
		autoRotateRate:  0.25,
		log:             log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.initial = c.pose()
	c.lastValid = c.initial
	return c
}

// Position returns the camera's world position.
func (c *CameraController) Position() model.Vec3 {
	return c.target.Add(sphericalToCartesian(c.radius, c.theta, c.phi))
}

// Target returns the current orbit centre.
func (c *CameraController) Target() model.Vec3 { return c.target }

// Radius returns the current orbit distance.
func (c *CameraController) Radius() float64 { return c.radius }

// Mode returns the committed lock mode. A transition in flight reports the
// mode it started from, which is free.
func (c *CameraController) Mode() LockMode { return c.mode }

// LockedBody returns the committed lock target, or nil.
func (c *CameraController) LockedBody() *Body { return c.locked }

// Transitioning reports whether a fly-to is in flight.
func (c *CameraController) Transitioning() bool { return c.transition != nil }

// AutoRotate reports whether idle spin is enabled.
func (c *CameraController) AutoRotate() bool { return c.autoRotate }

// SetAutoRotate toggles idle spin around the current target.
func (c *CameraController) SetAutoRotate(on bool) { c.autoRotate = on }

// Status snapshots the lock state.
func (c *CameraController) Status() LockStatus {
	st := LockStatus{
		Mode:          c.mode,
		Transitioning: c.transition != nil,
		MeteorIndex:   c.meteorIdx,
		MeteorCount:   len(c.meteors),
	}
	switch {
	case c.transition != nil:
		st.TargetName = c.transition.body.Name()
	case c.locked != nil:
		st.TargetName = c.locked.Name()
	}
	return st
}

// Update advances the camera one frame. While locked it re-centres on the
// body's current position; while transitioning it eases toward the pending
// body. A frame that would produce non-finite state is skipped: the camera
// freezes at its last valid pose and the frame is counted and logged,
// because a NaN must never reach the render position.
func (c *CameraController) Update(now time.Time) {
	dt := 0.0
	if c.hasUpdated {
		if d := now.Sub(c.lastUpdate); d > 0 {
			dt = d.Seconds()
		}
	}
	c.lastUpdate = now
	c.hasUpdated = true

	if c.transition != nil {
		c.stepTransition(now)
	} else if c.locked != nil {
		c.target = c.locked.Position()
	}

	if !c.poseFinite() {
		c.log.Warn(context.Background(), "camera state non-finite, frame skipped",
			logging.String("mode", c.mode.String()),
			logging.Vec3("target", c.target))
		if c.metrics != nil {
			c.metrics.IncFrameSkipped()
		}
		c.restore(c.lastValid)
		return
	}

	if c.autoRotate && c.transition == nil {
		c.theta += c.autoRotateRate * dt
	}
	c.clampPose()
	c.lastValid = c.pose()
}

// LockOn begins an eased fly-to onto body and commits the lock when the
// transition completes. The current lock, if any, is released first, so no
// two locks are ever active together. Re-requesting the lock the camera
// already holds, or is already flying toward, is a no-op.
//
// A non-positive goalRadius picks a default from the body's size; either
// way the goal is clamped into the body's approach bounds up front, so the
// committed radius equals the goal exactly. A non-positive duration commits
// immediately.
func (c *CameraController) LockOn(mode LockMode, body *Body, goalRadius float64, duration time.Duration, now time.Time) {
	ctx := context.Background()
	if mode == LockFree {
		c.Unlock()
		return
	}
	if body == nil {
		c.log.Warn(ctx, "lock requested with no body", logging.String("mode", mode.String()))
		return
	}
	if !body.Lockable() {
		c.log.Warn(ctx, "lock requested on non-lockable body",
			logging.String("body", body.Name()),
			logging.String("kind", body.Kind().String()))
		return
	}
	if c.transition == nil && c.mode == mode && c.locked == body {
		return
	}
	if c.transition != nil && c.transition.mode == mode && c.transition.body == body {
		return
	}

	if goalRadius <= 0 || !isFinite(goalRadius) {
		goalRadius = body.Radius() * defaultGoalFactor
	}
	goalRadius = clampFloat(goalRadius, body.Radius()*minDistanceFactor, c.maxDistance)

	if c.metrics != nil {
		c.metrics.IncLockTransition(mode.String())
	}
	c.log.Debug(ctx, "camera lock transition",
		logging.String("mode", mode.String()),
		logging.String("body", body.Name()),
		logging.Float64("goal_radius", goalRadius),
		logging.Duration("duration", duration))

	// Release the previous lock before the new attachment begins.
	c.mode = LockFree
	c.locked = nil

	if duration <= 0 {
		c.mode = mode
		c.locked = body
		c.target = body.Position()
		c.radius = goalRadius
		c.transition = nil
		return
	}

	c.transition = &cameraTransition{
		mode:        mode,
		body:        body,
		goalRadius:  goalRadius,
		duration:    duration,
		startedAt:   now,
		startTarget: c.target,
		startTheta:  c.theta,
		startPhi:    c.phi,
		startRadius: c.radius,
	}
}

// Unlock releases any lock or in-flight transition synchronously. The
// camera keeps its current pose and goes back to free orbiting.
func (c *CameraController) Unlock() {
	c.transition = nil
	c.mode = LockFree
	c.locked = nil
}

// Rotate orbits the camera by the given angular deltas, scaled by the
// rotate speed. Manual input is ignored while a transition is in flight.
func (c *CameraController) Rotate(dTheta, dPhi float64) {
	if c.transition != nil {
		return
	}
	if !isFinite(dTheta) || !isFinite(dPhi) {
		c.log.Warn(context.Background(), "rotate input non-finite, ignored")
		return
	}
	c.theta += dTheta * c.rotateSpeed
	c.phi = clampFloat(c.phi+dPhi*c.rotateSpeed, polarEpsilon, math.Pi-polarEpsilon)
}

// Zoom changes the orbit distance by delta scaled by the zoom speed,
// clamped into the current distance bounds. Positive deltas move outward.
func (c *CameraController) Zoom(delta float64) {
	if c.transition != nil {
		return
	}
	if !isFinite(delta) {
		c.log.Warn(context.Background(), "zoom input non-finite, ignored")
		return
	}
	c.radius = clampFloat(c.radius+delta*c.zoomSpeed, c.minDistance(), c.maxDistance)
}

// ResetView restores the initial pose and releases any lock.
func (c *CameraController) ResetView() {
	c.transition = nil
	c.mode = LockFree
	c.locked = nil
	c.restore(c.initial)
	c.lastValid = c.initial
}

// SetMeteorList replaces the ordered list the meteor navigation walks. The
// current index is clamped into the new bounds.
func (c *CameraController) SetMeteorList(bodies []*Body) {
	c.meteors = append([]*Body(nil), bodies...)
	if c.meteorIdx >= len(c.meteors) {
		c.meteorIdx = len(c.meteors) - 1
	}
	if c.meteorIdx < 0 {
		c.meteorIdx = 0
	}
}

// FirstMeteor locks onto the first meteor in the list.
func (c *CameraController) FirstMeteor(now time.Time) {
	if len(c.meteors) == 0 {
		c.log.Warn(context.Background(), "meteor navigation with empty list")
		return
	}
	c.meteorIdx = 0
	c.lockCurrentMeteor(now)
}

// LockMeteorAt jumps the meteor cursor to index i, clamped into the list,
// and locks onto that rock.
func (c *CameraController) LockMeteorAt(i int, now time.Time) {
	if len(c.meteors) == 0 {
		c.log.Warn(context.Background(), "meteor navigation with empty list")
		return
	}
	if i < 0 {
		i = 0
	}
	if i > len(c.meteors)-1 {
		i = len(c.meteors) - 1
	}
	c.meteorIdx = i
	c.lockCurrentMeteor(now)
}

// NextMeteor advances the meteor index by one, clamped at the end of the
// list, and locks onto it. The index never wraps.
func (c *CameraController) NextMeteor(now time.Time) { c.stepMeteor(1, now) }

// PrevMeteor moves the meteor index back by one, clamped at the start of
// the list, and locks onto it.
func (c *CameraController) PrevMeteor(now time.Time) { c.stepMeteor(-1, now) }

func (c *CameraController) stepMeteor(delta int, now time.Time) {
	if len(c.meteors) == 0 {
		c.log.Warn(context.Background(), "meteor navigation with empty list")
		return
	}
	idx := c.meteorIdx + delta
	if idx < 0 {
		idx = 0
	}
	if idx > len(c.meteors)-1 {
		idx = len(c.meteors) - 1
	}
	c.meteorIdx = idx
	c.lockCurrentMeteor(now)
}

func (c *CameraController) lockCurrentMeteor(now time.Time) {
	c.LockOn(LockMeteor, c.meteors[c.meteorIdx], 0, defaultLockDuration, now)
}

// stepTransition advances the in-flight fly-to. The target chases the
// pending body's live position, so locking onto a moving rock lands on
// where it is, not where it was when the transition started. At completion
// the orbit distance equals the goal exactly and the lock commits.
func (c *CameraController) stepTransition(now time.Time) {
	tr := c.transition
	progress := 1.0
	if tr.duration > 0 {
		progress = clampFloat(now.Sub(tr.startedAt).Seconds()/tr.duration.Seconds(), 0, 1)
	}
	eased := easeInOutQuad(progress)

	live := tr.body.Position()
	worldPos := c.Position()

	c.target = tr.startTarget.Lerp(live, eased)

	_, curTheta, curPhi := cartesianToSpherical(worldPos.Sub(live))
	// Unwrap the azimuth onto the branch nearest the start angle so the
	// interpolation takes the short way around.
	curTheta = tr.startTheta + wrapPi(curTheta-tr.startTheta)

	c.theta = lerp(tr.startTheta, curTheta, eased)
	c.phi = lerp(tr.startPhi, curPhi, eased)
	c.radius = lerp(tr.startRadius, tr.goalRadius, eased)

	if progress >= 1 {
		c.mode = tr.mode
		c.locked = tr.body
		c.target = live
		c.radius = tr.goalRadius
		c.transition = nil
	}
}

// minDistance returns the closest approach for the current attachment:
// locked bodies enforce a multiple of their own radius, free mode enforces
// the flat floor widened by the origin body when one is configured.
func (c *CameraController) minDistance() float64 {
	if c.locked != nil {
		return c.locked.Radius() * minDistanceFactor
	}
	min := c.flatMinDistance
	if c.originBody != nil {
		if m := c.originBody.Radius() * minDistanceFactor; m > min {
			min = m
		}
	}
	return min
}

func (c *CameraController) clampPose() {
	c.phi = clampFloat(c.phi, polarEpsilon, math.Pi-polarEpsilon)
	c.radius = clampFloat(c.radius, c.minDistance(), c.maxDistance)
}

func (c *CameraController) poseFinite() bool {
	return c.target.IsFinite() && isFinite(c.radius) && isFinite(c.theta) && isFinite(c.phi)
}

func (c *CameraController) pose() cameraPose {
	return cameraPose{target: c.target, radius: c.radius, theta: c.theta, phi: c.phi}
}

func (c *CameraController) restore(p cameraPose) {
	c.target = p.target
	c.radius = p.radius
	c.theta = p.theta
	c.phi = p.phi
}

// wrapPi wraps an angle difference into (-π, π].
func wrapPi(a float64) float64 {
	a = math.Mod(a+math.Pi, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a - math.Pi
}
