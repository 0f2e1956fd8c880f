package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for aio-sentinel. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry                 *prometheus.Registry
	stateReadsTotal          *prometheus.CounterVec
	stateWritesTotal         *prometheus.CounterVec
	watchEventsTotal         *prometheus.CounterVec
	portAttemptsTotal        *prometheus.CounterVec
	workingPort              prometheus.Gauge
	runtimeAvailable         prometheus.Gauge
	runtimeErrorsTotal       prometheus.Counter
	serviceStatus            *prometheus.GaugeVec
	servicesSummary          *prometheus.GaugeVec
	faultsTotal              *prometheus.CounterVec
	transitionsTotal         *prometheus.CounterVec
	notificationsTotal       *prometheus.CounterVec
	cycleDurationSeconds     prometheus.Histogram
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		stateReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_state_reads_total",
			Help: "Installation state reads by outcome (present, missing, corrupt, unreadable).",
		}, []string{"status"}),
		stateWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_state_writes_total",
			Help: "Installation state writes by result.",
		}, []string{"result"}),
		watchEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_state_watch_events_total",
			Help: "Change notifications delivered to state subscribers by kind.",
		}, []string{"kind"}),
		portAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_port_attempts_total",
			Help: "Dependent service port probes by port and result.",
		}, []string{"port", "result"}),
		workingPort: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aio_sentinel_working_port",
			Help: "Last port the dependent service answered on, 0 when unknown.",
		}),
		runtimeAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aio_sentinel_runtime_available",
			Help: "1 when the container runtime answered its last ping.",
		}),
		runtimeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aio_sentinel_runtime_errors_total",
			Help: "Container runtime query errors.",
		}),
		serviceStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aio_sentinel_service_status",
			Help: "1 for the current live status of each installed service.",
		}, []string{"service", "status"}),
		servicesSummary: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aio_sentinel_services",
			Help: "Installed services by summary bucket (total, running, stopped, missing).",
		}, []string{"bucket"}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_faults_presented_total",
			Help: "Faults presented to users by category.",
		}, []string{"category"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_transitions_total",
			Help: "Detected phase and service transitions by kind.",
		}, []string{"kind"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aio_sentinel_notifications_total",
			Help: "Notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aio_sentinel_cycle_duration_seconds",
			Help:    "Duration of live status refresh cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aio_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful refresh cycle.",
		}),
	}

	registry.MustRegister(
		m.stateReadsTotal,
		m.stateWritesTotal,
		m.watchEventsTotal,
		m.portAttemptsTotal,
		m.workingPort,
		m.runtimeAvailable,
		m.runtimeErrorsTotal,
		m.serviceStatus,
		m.servicesSummary,
		m.faultsTotal,
		m.transitionsTotal,
		m.notificationsTotal,
		m.cycleDurationSeconds,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStateRead(status string) {
	if m == nil {
		return
	}
	m.stateReadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStateWrite(result string) {
	if m == nil {
		return
	}
	m.stateWritesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveWatchEvent(kind string) {
	if m == nil {
		return
	}
	m.watchEventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePortAttempt(port int, result string) {
	if m == nil {
		return
	}
	m.portAttemptsTotal.WithLabelValues(strconv.Itoa(port), result).Inc()
}

// SetWorkingPort records the resolved port; 0 clears it.
func (m *Metrics) SetWorkingPort(port int) {
	if m == nil {
		return
	}
	m.workingPort.Set(float64(port))
}

func (m *Metrics) SetRuntimeAvailable(available bool) {
	if m == nil {
		return
	}
	if available {
		m.runtimeAvailable.Set(1)
		return
	}
	m.runtimeAvailable.Set(0)
}

func (m *Metrics) IncRuntimeErrors() {
	if m == nil {
		return
	}
	m.runtimeErrorsTotal.Inc()
}

// SetServiceStatuses replaces the per-service status series with the given service -> status map.
func (m *Metrics) SetServiceStatuses(statuses map[string]string) {
	if m == nil {
		return
	}
	m.serviceStatus.Reset()
	for service, status := range statuses {
		m.serviceStatus.WithLabelValues(service, status).Set(1)
	}
}

func (m *Metrics) SetSummary(total, running, stopped, missing int) {
	if m == nil {
		return
	}
	m.servicesSummary.WithLabelValues("total").Set(float64(total))
	m.servicesSummary.WithLabelValues("running").Set(float64(running))
	m.servicesSummary.WithLabelValues("stopped").Set(float64(stopped))
	m.servicesSummary.WithLabelValues("missing").Set(float64(missing))
}

func (m *Metrics) IncFaults(category string) {
	if m == nil {
		return
	}
	m.faultsTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) IncTransitions(kind string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(kind).Inc()
}

// ObserveNotification counts a delivery attempt for a channel.
func (m *Metrics) ObserveNotification(channel string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notificationsTotal.WithLabelValues(channel, result).Inc()
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
