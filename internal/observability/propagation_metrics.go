package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PropagationCollector exposes orbit-propagation and population metrics.
type PropagationCollector struct {
	gatherer prometheus.Gatherer

	KeplerIterations prometheus.Histogram
	RecordsPopulated prometheus.Counter
	RecordsSkipped   prometheus.Counter
	PopulateProgress prometheus.Gauge
}

// NewPropagationCollector registers propagation metrics against the provided
// registerer.
func NewPropagationCollector(reg prometheus.Registerer) (*PropagationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	iterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "kepler_solver_iterations",
		Help: "Newton-Raphson iterations per orbit propagation.",
		// Near-circular orbits converge in a handful of steps; the solver
		// caps at 30.
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
	})
	iterations, err := registerHistogram(reg, iterations, "kepler_solver_iterations")
	if err != nil {
		return nil, err
	}

	populated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "populate_records_total",
		Help: "Catalog records turned into scene bodies.",
	})
	populated, err = registerCounter(reg, populated, "populate_records_total")
	if err != nil {
		return nil, err
	}

	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "populate_records_skipped_total",
		Help: "Catalog records dropped for failing validation.",
	})
	skipped, err = registerCounter(reg, skipped, "populate_records_skipped_total")
	if err != nil {
		return nil, err
	}

	progress := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "populate_progress_ratio",
		Help: "Fraction of the rock catalog consumed so far.",
	})
	progress, err = registerGauge(reg, progress, "populate_progress_ratio")
	if err != nil {
		return nil, err
	}

	return &PropagationCollector{
		gatherer:         gatherer,
		KeplerIterations: iterations,
		RecordsPopulated: populated,
		RecordsSkipped:   skipped,
		PopulateProgress: progress,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PropagationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveKeplerIterations records one propagation's solver iteration count.
func (c *PropagationCollector) ObserveKeplerIterations(n int) {
	if c == nil || c.KeplerIterations == nil {
		return
	}
	c.KeplerIterations.Observe(float64(n))
}

// IncPopulatedRecord counts a catalog record turned into a body.
func (c *PropagationCollector) IncPopulatedRecord() {
	if c == nil || c.RecordsPopulated == nil {
		return
	}
	c.RecordsPopulated.Inc()
}

// IncSkippedRecord counts a catalog record dropped by validation.
func (c *PropagationCollector) IncSkippedRecord() {
	if c == nil || c.RecordsSkipped == nil {
		return
	}
	c.RecordsSkipped.Inc()
}

// SetPopulateProgress updates the catalog progress gauge.
func (c *PropagationCollector) SetPopulateProgress(processed, total int) {
	if c == nil || c.PopulateProgress == nil {
		return
	}
	if total <= 0 {
		c.PopulateProgress.Set(1)
		return
	}
	ratio := float64(processed) / float64(total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.PopulateProgress.Set(ratio)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
