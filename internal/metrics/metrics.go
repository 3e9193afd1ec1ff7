package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codetribute"

// Collector exposes Prometheus metrics for the work-log pipeline and the
// status server.
type Collector struct {
	registry        *prometheus.Registry
	eventsIngested  *prometheus.CounterVec
	bufferedRecords prometheus.Gauge
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	summaries       *prometheus.CounterVec
	publishes       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "File events recorded into the activity buffer.",
		}, []string{"action"}),
		bufferedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "buffered_records",
			Help:      "Activity records waiting for the next cycle.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Scheduler ticks by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of non-empty cycles.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summarizer",
			Name:      "summaries_total",
			Help:      "Summaries by result (generated, empty, error).",
		}, []string{"result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publisher",
			Name:      "publishes_total",
			Help:      "Remote log publishes by result (created, updated, failed).",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for status server requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of status server requests.",
		}, []string{"method", "path", "status"}),
	}

	collectors := []prometheus.Collector{
		c.eventsIngested,
		c.bufferedRecords,
		c.cycles,
		c.cycleDuration,
		c.summaries,
		c.publishes,
		c.requestDuration,
		c.requestTotal,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// EventIngested counts one buffered record. The pipeline methods are no-ops
// on a nil collector.
func (c *Collector) EventIngested(action string) {
	if c == nil {
		return
	}
	c.eventsIngested.WithLabelValues(action).Inc()
	c.bufferedRecords.Inc()
}

// SetBuffered overwrites the pending-record gauge, typically right after a drain.
func (c *Collector) SetBuffered(n int) {
	if c == nil {
		return
	}
	c.bufferedRecords.Set(float64(n))
}

// CycleFinished records a tick outcome; duration is ignored for skipped ticks.
func (c *Collector) CycleFinished(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.cycleDuration.Observe(duration.Seconds())
	}
}

// SummaryProduced records which summarizer path was taken.
func (c *Collector) SummaryProduced(result string) {
	if c == nil {
		return
	}
	c.summaries.WithLabelValues(result).Inc()
}

// PublishFinished records a publish attempt.
func (c *Collector) PublishFinished(result string) {
	if c == nil {
		return
	}
	c.publishes.WithLabelValues(result).Inc()
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
