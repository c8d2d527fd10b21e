package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simtest",
			Name:      "broadcasts_total",
			Help:      "Broadcast attempts by result.",
		},
		[]string{"result"},
	)

	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simtest",
			Name:      "sends_total",
			Help:      "Per-peer sends issued by the broadcast layer, by result.",
		},
		[]string{"result"},
	)

	ReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simtest",
			Name:      "received_total",
			Help:      "Inbound messages appended to the log.",
		},
	)

	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simtest",
			Name:      "decode_errors_total",
			Help:      "Inbound messages dropped because they were not valid UTF-8.",
		},
	)

	ShufflesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simtest",
			Name:      "reorder_shuffles_total",
			Help:      "Times a pending queue was reshuffled by the seed policy.",
		},
	)

	PendingMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simtest",
			Name:      "pending_messages",
			Help:      "Messages waiting in inbound queues.",
		},
	)

	LogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "simtest",
			Name:      "log_entries",
			Help:      "Entries appended to message logs.",
		},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "simtest",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "simtest",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		BroadcastsTotal,
		SendsTotal,
		ReceivedTotal,
		DecodeErrorsTotal,
		ShufflesTotal,
		PendingMessages,
		LogEntries,
		buildInfo,
		uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}
