package timectrl

import (
	"math"
	"sync"
	"time"
)

// SimClock is read access to simulation time. Components that only need to
// ask "what time is it" depend on this rather than the concrete controller.
type SimClock interface {
	// Now returns the current simulation time in time units (days).
	Now() float64
}

// TimeController advances simulation time and notifies registered
// listeners once per frame.
//
// Simulation time is a float64 in scene time units. The rate maps wall
// seconds to simulation units: rate 30 advances thirty days of scene time
// per wall second.
//
// The controller supports two driving styles. A host that owns its own
// frame loop calls Step once per frame; the headless runner calls Start,
// which drives Step from a ticker goroutine. Either way listener callbacks
// run on the driving goroutine, strictly sequentially.
type TimeController struct {
	mu      sync.RWMutex
	simTime float64
	rate    float64
	tick    time.Duration
	paused  bool
	nowFn   func() time.Time

	listeners []func(simTime float64, wall time.Time)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTimeController constructs a controller starting at the given
// simulation time. tick is the cadence Start uses; rate is simulation units
// per wall second. Non-positive values fall back to one-day-per-second at
// 60 frames.
func NewTimeController(start float64, tick time.Duration, rate float64) *TimeController {
	if tick <= 0 {
		tick = time.Second / 60
	}
	if rate <= 0 {
		rate = 1
	}
	return &TimeController{
		simTime: start,
		rate:    rate,
		tick:    tick,
		nowFn:   time.Now,
		stop:    make(chan struct{}),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.simTime
}

// Rate returns the current playback rate.
func (tc *TimeController) Rate() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.rate
}

// SetRate changes the playback rate. Non-positive or non-finite rates are
// ignored.
func (tc *TimeController) SetRate(rate float64) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return
	}
	tc.mu.Lock()
	tc.rate = rate
	tc.mu.Unlock()
}

// Paused reports whether time advancement is suspended.
func (tc *TimeController) Paused() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.paused
}

// Pause suspends simulation time. Frames keep running so the camera stays
// interactive; bodies simply stop moving.
func (tc *TimeController) Pause() {
	tc.mu.Lock()
	tc.paused = true
	tc.mu.Unlock()
}

// Resume continues simulation time from where Pause left it.
func (tc *TimeController) Resume() {
	tc.mu.Lock()
	tc.paused = false
	tc.mu.Unlock()
}

// TogglePause flips the paused state and reports the new value.
func (tc *TimeController) TogglePause() bool {
	tc.mu.Lock()
	tc.paused = !tc.paused
	paused := tc.paused
	tc.mu.Unlock()
	return paused
}

// AddListener registers a per-frame callback. Listeners run in
// registration order on the driving goroutine.
func (tc *TimeController) AddListener(fn func(simTime float64, wall time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// SetNowFunc replaces the wall clock, which tests use to drive camera
// transitions deterministically.
func (tc *TimeController) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	tc.mu.Lock()
	tc.nowFn = fn
	tc.mu.Unlock()
}

// Step advances simulation time by dt of wall time (scaled by the rate,
// unless paused) and then notifies every listener. Listeners are notified
// even while paused so per-frame work such as camera easing continues.
func (tc *TimeController) Step(dt time.Duration) {
	tc.mu.Lock()
	if !tc.paused && dt > 0 {
		tc.simTime += dt.Seconds() * tc.rate
	}
	simTime := tc.simTime
	wall := tc.nowFn()
	listeners := append(([]func(float64, time.Time))(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(simTime, wall)
	}
}

// Start drives Step from a ticker goroutine. It returns a channel closed
// when the run finishes. A positive duration bounds the run in wall time;
// otherwise it runs until Stop.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(tc.tick)
		defer ticker.Stop()

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			select {
			case <-tc.stop:
				return
			case <-ticker.C:
				elapsed += tc.tick
				tc.Step(tc.tick)
			}
		}
	}()
	return done
}

// Stop ends a Start run. Safe to call more than once.
func (tc *TimeController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stop) })
}
