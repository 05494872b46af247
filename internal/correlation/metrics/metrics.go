package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the correlation module.
// Tracks pass durations, attribution quality and the optional cache and feed.
// All methods are safe on a nil receiver so callers can skip metrics in tests.
type Metrics struct {
	PassDuration       prometheus.Histogram
	PassesTotal        *prometheus.CounterVec
	AttributedEvents   prometheus.Gauge
	UnattributedEvents prometheus.Gauge
	Diagnostics        *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	PublishFailures    prometheus.Counter
	Invalidations      *prometheus.CounterVec
}

// New registers the correlation metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the correlation metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_correlation_pass_duration_seconds",
			Help:    "Duration of correlation passes including snapshot loading",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PassesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_correlation_passes_total",
			Help: "Correlation passes by outcome",
		}, []string{"outcome"}),
		AttributedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_correlation_attributed_events",
			Help: "Violation events attributed to a session by the last pass",
		}),
		UnattributedEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_correlation_unattributed_events",
			Help: "Violation events no session kept in the last pass",
		}),
		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_correlation_diagnostics_total",
			Help: "Data-quality diagnostics raised by correlation passes, by kind",
		}, []string{"kind"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_correlation_cache_lookups_total",
			Help: "Result cache lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "proctor_correlation_publish_failures_total",
			Help: "Session summary publishes that failed",
		}),
		Invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_correlation_cache_invalidations_total",
			Help: "Result cache invalidations by trigger",
		}, []string{"trigger"}),
	}
}

// ObservePass records a completed pass. Call with time.Now() at the start of
// the pass.
func (m *Metrics) ObservePass(start time.Time, attributed, events int, diagnostics map[string]int) {
	if m == nil {
		return
	}
	m.PassDuration.Observe(time.Since(start).Seconds())
	m.PassesTotal.WithLabelValues("ok").Inc()
	m.AttributedEvents.Set(float64(attributed))
	m.UnattributedEvents.Set(float64(events - attributed))
	for kind, n := range diagnostics {
		m.Diagnostics.WithLabelValues(kind).Add(float64(n))
	}
}

// IncrementPassFailed records a pass that could not load its snapshot.
func (m *Metrics) IncrementPassFailed() {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues("error").Inc()
}

// IncrementCacheLookup records a cache hit, miss or error.
func (m *Metrics) IncrementCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// IncrementPublishFailure records a failed summary publish.
func (m *Metrics) IncrementPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// IncrementInvalidation records a cache invalidation and what caused it.
func (m *Metrics) IncrementInvalidation(trigger string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(trigger).Inc()
}
