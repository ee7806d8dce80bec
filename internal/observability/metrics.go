package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SceneCollector bundles Prometheus metrics for the frame loop and the
// camera, and provides the /metrics handler for the headless runner.
//
// The collector satisfies the frame-loop metric interfaces in core, so it
// plugs straight into the engine and camera options.
type SceneCollector struct {
	gatherer prometheus.Gatherer

	FrameDuration   prometheus.Histogram
	SceneBodies     *prometheus.GaugeVec
	LockTransitions *prometheus.CounterVec
	FramesSkipped   prometheus.Counter
}

// NewSceneCollector registers scene metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Re-registering on
// the same registry hands back the existing collectors.
func NewSceneCollector(reg prometheus.Registerer) (*SceneCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "frame_duration_seconds",
		Help: "Wall time one engine tick takes, population and camera included.",
		// A 60 fps budget is 16.7ms; the top buckets catch stalls.
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.033, 0.066, 0.1, 0.25},
	})
	frames, err := registerHistogram(reg, frames, "frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	bodies := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_bodies",
		Help: "Current number of bodies in the scene, labeled by kind.",
	}, []string{"kind"})
	bodies, err = registerGaugeVec(reg, bodies, "scene_bodies")
	if err != nil {
		return nil, err
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camera_lock_transitions_total",
		Help: "Camera lock transitions started, labeled by target mode.",
	}, []string{"mode"})
	transitions, err = registerCounterVec(reg, transitions, "camera_lock_transitions_total")
	if err != nil {
		return nil, err
	}

	skipped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_frames_skipped_total",
		Help: "Camera frames dropped because the pose went non-finite.",
	}), "camera_frames_skipped_total")
	if err != nil {
		return nil, err
	}

	return &SceneCollector{
		gatherer:        gatherer,
		FrameDuration:   frames,
		SceneBodies:     bodies,
		LockTransitions: transitions,
		FramesSkipped:   skipped,
	}, nil
}

// ObserveFrameDuration records one engine tick's wall time.
func (c *SceneCollector) ObserveFrameDuration(d time.Duration) {
	if c == nil || c.FrameDuration == nil {
		return
	}
	c.FrameDuration.Observe(d.Seconds())
}

// IncLockTransition counts a camera lock transition toward mode.
func (c *SceneCollector) IncLockTransition(mode string) {
	if c == nil || c.LockTransitions == nil {
		return
	}
	c.LockTransitions.WithLabelValues(mode).Inc()
}

// IncFrameSkipped counts a camera frame dropped for non-finite state.
func (c *SceneCollector) IncFrameSkipped() {
	if c == nil || c.FramesSkipped == nil {
		return
	}
	c.FramesSkipped.Inc()
}

// SetBodyCounts drives the per-kind body gauges from the store's census.
func (c *SceneCollector) SetBodyCounts(counts map[string]int) {
	if c == nil || c.SceneBodies == nil {
		return
	}
	for kind, n := range counts {
		c.SceneBodies.WithLabelValues(kind).Set(float64(n))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SceneCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
