package metrics

import (
	"strconv"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector on a private registry
type PrometheusCollector struct {
	stateTransitions  *prometheus.CounterVec
	startDuration     *prometheus.HistogramVec
	stopDuration      *prometheus.HistogramVec
	processExits      *prometheus.CounterVec
	commandsSent      *prometheus.CounterVec
	artifactDownloads *prometheus.CounterVec
	runningServers    prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusCollector creates a collector; namespace defaults to "gamesrv"
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "gamesrv"
	}

	pc := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
	}

	pc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_state_transitions_total",
			Help:      "Total number of server state transitions",
		},
		[]string{"server_id", "from_state", "to_state"},
	)

	pc.startDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "server_start_duration_seconds",
			Help:      "Duration of start calls including checks, download and grace window",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"server_id", "status"},
	)

	pc.stopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "server_stop_duration_seconds",
			Help:      "Duration of stop calls",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"server_id", "forced"},
	)

	pc.processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_process_exits_total",
			Help:      "Total number of observed server process exits",
		},
		[]string{"server_id", "exit_code"},
	)

	pc.commandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_commands_total",
			Help:      "Total number of console commands delivered",
		},
		[]string{"server_id"},
	)

	pc.artifactDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_downloads_total",
			Help:      "Total number of automatic server jar downloads",
		},
		[]string{"kind", "status"},
	)

	pc.runningServers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_servers",
			Help:      "Number of server processes currently registered",
		},
	)

	pc.registry.MustRegister(
		pc.stateTransitions,
		pc.startDuration,
		pc.stopDuration,
		pc.processExits,
		pc.commandsSent,
		pc.artifactDownloads,
		pc.runningServers,
	)

	return pc
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (pc *PrometheusCollector) StateTransition(serverID string, from, to domain.State) {
	pc.stateTransitions.WithLabelValues(serverID, string(from), string(to)).Inc()
}

func (pc *PrometheusCollector) StartDuration(serverID string, duration time.Duration, err error) {
	pc.startDuration.WithLabelValues(serverID, status(err)).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) StopDuration(serverID string, duration time.Duration, forced bool) {
	pc.stopDuration.WithLabelValues(serverID, strconv.FormatBool(forced)).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) ProcessExit(serverID string, exitCode int) {
	pc.processExits.WithLabelValues(serverID, strconv.Itoa(exitCode)).Inc()
}

func (pc *PrometheusCollector) CommandSent(serverID string) {
	pc.commandsSent.WithLabelValues(serverID).Inc()
}

func (pc *PrometheusCollector) ArtifactDownload(kind domain.Kind, err error) {
	pc.artifactDownloads.WithLabelValues(string(kind), status(err)).Inc()
}

func (pc *PrometheusCollector) RunningServers(count int) {
	pc.runningServers.Set(float64(count))
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pc *PrometheusCollector) Registry() *prometheus.Registry {
	return pc.registry
}

var _ Collector = (*PrometheusCollector)(nil)
