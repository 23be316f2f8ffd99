package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics centralizes Prometheus instrumentation for IFBeam queries
// and livetime computations.
type Metrics struct {
	registry *prometheus.Registry

	ifbeamRequests *prometheus.CounterVec
	ifbeamLatency  *prometheus.HistogramVec

	livetimeRuns     *prometheus.CounterVec
	livetimeDuration *prometheus.HistogramVec
	livetimeFraction prometheus.Gauge
}

// NewMetrics builds a metrics container backed by the provided
// registry. If no registry is supplied, a new one is created.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{registry: reg}

	m.ifbeamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runco_ifbeam_requests_total",
		Help: "Outbound IFBeam DB requests grouped by HTTP status and result",
	}, []string{"code", "result"})
	m.ifbeamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "runco_ifbeam_request_seconds",
		Help:    "IFBeam DB request latency distributions",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	m.livetimeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runco_livetime_runs_total",
		Help: "Livetime computations grouped by outcome",
	}, []string{"status"})
	m.livetimeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "runco_livetime_run_seconds",
		Help:    "Durations of livetime computations",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	m.livetimeFraction = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runco_livetime_fraction",
		Help: "Livetime fraction of the most recent successful computation",
	})

	reg.MustRegister(m.ifbeamRequests, m.ifbeamLatency, m.livetimeRuns, m.livetimeDuration, m.livetimeFraction)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordIFBeamRequest satisfies ifbeam.Metrics. A zero statusCode
// marks a request that never produced a response.
func (m *Metrics) RecordIFBeamRequest(statusCode int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ifbeamRequests.WithLabelValues(strconv.Itoa(statusCode), result).Inc()
	m.ifbeamLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveLivetimeRun satisfies livetime.Metrics.
func (m *Metrics) ObserveLivetimeRun(duration time.Duration, fraction float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.livetimeRuns.WithLabelValues(status).Inc()
	m.livetimeDuration.WithLabelValues(status).Observe(duration.Seconds())
	if err == nil {
		m.livetimeFraction.Set(fraction)
	}
}
