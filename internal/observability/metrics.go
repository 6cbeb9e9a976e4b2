package observability

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/contention-simulator/model"
)

// SweepCollector bundles Prometheus metrics for a population sweep. Every
// per-population series is labelled by station count.
type SweepCollector struct {
	gatherer prometheus.Gatherer

	Collisions      *prometheus.CounterVec
	Transmissions   *prometheus.CounterVec
	BlockedRequests *prometheus.CounterVec
	OccupiedSlots   *prometheus.CounterVec
	Slots           prometheus.Counter
	Populations     prometheus.Counter

	Throughput           *prometheus.GaugeVec
	CollisionProbability *prometheus.GaugeVec
	FairnessVariance     *prometheus.GaugeVec

	RunDuration prometheus.Histogram
}

var stationLabel = []string{"stations"}

// NewSweepCollector registers sweep metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewSweepCollector(reg prometheus.Registerer) (*SweepCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SweepCollector{gatherer: gatherer}
	var err error

	if c.Collisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contention_collisions_total",
		Help: "Slots in which two or more stations requested an idle medium.",
	}, stationLabel), "contention_collisions_total"); err != nil {
		return nil, err
	}
	if c.Transmissions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contention_transmissions_total",
		Help: "Exchanges started by a solitary requester.",
	}, stationLabel), "contention_transmissions_total"); err != nil {
		return nil, err
	}
	if c.BlockedRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contention_blocked_requests_total",
		Help: "Requests deferred because the medium was already occupied.",
	}, stationLabel), "contention_blocked_requests_total"); err != nil {
		return nil, err
	}
	if c.OccupiedSlots, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contention_occupied_slots_total",
		Help: "Slots during which the medium was occupied.",
	}, stationLabel), "contention_occupied_slots_total"); err != nil {
		return nil, err
	}
	if c.Slots, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contention_slots_total",
		Help: "Slots simulated across all populations.",
	}), "contention_slots_total"); err != nil {
		return nil, err
	}
	if c.Populations, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contention_populations_completed_total",
		Help: "Population runs that produced a summary record.",
	}), "contention_populations_completed_total"); err != nil {
		return nil, err
	}
	if c.Throughput, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "contention_throughput_ratio",
		Help: "Fraction of slots with the medium occupied.",
	}, stationLabel), "contention_throughput_ratio"); err != nil {
		return nil, err
	}
	if c.CollisionProbability, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "contention_collision_probability",
		Help: "Collisions per successful transmission.",
	}, stationLabel), "contention_collision_probability"); err != nil {
		return nil, err
	}
	if c.FairnessVariance, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "contention_fairness_variance",
		Help: "Variance of per-station send share against the equal share.",
	}, stationLabel), "contention_fairness_variance"); err != nil {
		return nil, err
	}
	if c.RunDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "contention_population_run_duration_seconds",
		Help:    "Wall-clock time spent simulating one population.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "contention_population_run_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// RecordPopulation publishes one population summary.
func (c *SweepCollector) RecordPopulation(s model.Summary) {
	if c == nil {
		return
	}
	label := strconv.Itoa(s.StationCount)

	c.Collisions.WithLabelValues(label).Add(float64(s.Collisions))
	c.Transmissions.WithLabelValues(label).Add(float64(s.Successes))
	c.BlockedRequests.WithLabelValues(label).Add(float64(s.BlockedRequests))
	c.OccupiedSlots.WithLabelValues(label).Add(float64(s.OccupiedSlots))
	c.Slots.Add(float64(s.TotalSlots))
	c.Populations.Inc()

	c.Throughput.WithLabelValues(label).Set(s.OccupiedFraction)
	c.CollisionProbability.WithLabelValues(label).Set(s.CollisionProbability)
	c.FairnessVariance.WithLabelValues(label).Set(s.FairnessVariance)

	c.RunDuration.Observe(s.Elapsed.Seconds())
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SweepCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SweepCollector) Handler() http.Handler {
	var gatherer prometheus.Gatherer
	if c != nil {
		gatherer = c.gatherer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the current metric values in the text exposition
// format, suitable for the node_exporter textfile collector.
func (c *SweepCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T, name string) (T, error) {
	if err := reg.Register(collector); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return collector, nil
}
