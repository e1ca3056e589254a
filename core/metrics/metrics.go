package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modloader"

// Collector holds the Prometheus metrics of the loader and its transports.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
	RoundsTotal     prometheus.Counter

	// Fetch metrics
	FetchRequests   *prometheus.CounterVec
	FetchesInFlight prometheus.Gauge

	// Module metrics
	ModuleFailures *prometheus.CounterVec
	Invalidations  prometheus.Counter
}

// New creates a collector registered on the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered on reg.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of finished loading sessions",
			},
			[]string{"result"},
		),
		SessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Loading session duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
		RoundsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rounds_total",
				Help:      "Total number of scheduler rounds across all sessions",
			},
		),
		FetchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Total number of transport requests by package and result",
			},
			[]string{"package", "result"},
		),
		FetchesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fetches_in_flight",
				Help:      "Number of module fetches currently awaiting arrival",
			},
		),
		ModuleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_failures_total",
				Help:      "Total number of modules that ended in error by kind",
			},
			[]string{"kind"},
		),
		Invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidations_total",
				Help:      "Total number of modules reset to undefined",
			},
		),
	}
}

// ObserveSession records a finished session.
func (c *Collector) ObserveSession(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.SessionsTotal.WithLabelValues(result).Inc()
	c.SessionDuration.WithLabelValues(result).Observe(d.Seconds())
}

// IncRound records one scheduler round.
func (c *Collector) IncRound() {
	if c == nil {
		return
	}
	c.RoundsTotal.Inc()
}

// ObserveFetch records one transport request.
func (c *Collector) ObserveFetch(pkg, result string) {
	if c == nil {
		return
	}
	c.FetchRequests.WithLabelValues(pkg, result).Inc()
}

// AddInFlight moves the in-flight fetch gauge by delta.
func (c *Collector) AddInFlight(delta int) {
	if c == nil {
		return
	}
	c.FetchesInFlight.Add(float64(delta))
}

// IncFailure records a module that ended in error.
func (c *Collector) IncFailure(kind string) {
	if c == nil {
		return
	}
	c.ModuleFailures.WithLabelValues(kind).Inc()
}

// AddInvalidations records n invalidated modules.
func (c *Collector) AddInvalidations(n int) {
	if c == nil {
		return
	}
	c.Invalidations.Add(float64(n))
}
