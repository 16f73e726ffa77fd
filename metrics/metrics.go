// Package metrics exposes the Prometheus gauges/counters the job engine
// emits, grounded on the teacher's promauto-driven metrics.NewMetrics()
// (teacher metrics/metrics.go) but cut down to the signals this engine
// actually produces: queue depth, per-job outcome, per-host upload result,
// and subprocess durations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics tracks queue/worker level counters.
type JobMetrics struct {
	JobsInFlight    prometheus.Gauge
	QueueDepth      prometheus.Gauge
	JobsCompleted   *prometheus.CounterVec // labels: kind, state
	JobDuration     *prometheus.HistogramVec
	SuspendedJobs   prometheus.Counter
	CacheEntryCount prometheus.Gauge
}

// UploadMetrics tracks per-host fan-out outcomes.
type UploadMetrics struct {
	HostResult    *prometheus.CounterVec // labels: host, status
	HostLatency   *prometheus.HistogramVec
	HostBytesSent *prometheus.CounterVec // labels: host
}

// SubprocessMetrics tracks the Process Runner's view of child processes.
type SubprocessMetrics struct {
	Started  *prometheus.CounterVec // labels: kind
	Killed   *prometheus.CounterVec // labels: kind, reason
	Duration *prometheus.HistogramVec
}

// ClientMetrics tracks outbound HTTP call outcomes for the retryablehttp
// clients upload/hosts builds, via MonitorRequest/HttpRetryHook.
type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec // labels: host
	FailureCount    *prometheus.CounterVec // labels: host, status_code
	RequestDuration *prometheus.HistogramVec // labels: host
}

type Metrics struct {
	Job        JobMetrics
	Upload     UploadMetrics
	Subprocess SubprocessMetrics
	Client     ClientMetrics
}

var durationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}

func New() *Metrics {
	return &Metrics{
		Job: JobMetrics{
			JobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mirrobot_jobs_in_flight",
				Help: "1 while a job is Running, 0 otherwise (spec.md invariant: never more than 1)",
			}),
			QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mirrobot_queue_depth",
				Help: "Number of jobs currently waiting in the FIFO queue",
			}),
			JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mirrobot_jobs_completed_total",
				Help: "Number of jobs that reached a terminal state",
			}, []string{"kind", "state"}),
			JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mirrobot_job_duration_seconds",
				Help:    "Wall-clock time from dequeue to terminal state",
				Buckets: durationBuckets,
			}, []string{"kind"}),
			SuspendedJobs: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirrobot_jobs_suspended_total",
				Help: "Number of jobs parked awaiting a subtitle file",
			}),
			CacheEntryCount: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "mirrobot_cache_entries",
				Help: "Number of entries currently in the raw cache registry",
			}),
		},
		Upload: UploadMetrics{
			HostResult: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mirrobot_host_upload_total",
				Help: "Terminal status of a fan-out upload per host",
			}, []string{"host", "status"}),
			HostLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mirrobot_host_upload_duration_seconds",
				Help:    "Time taken for a single host's upload to reach a terminal state",
				Buckets: durationBuckets,
			}, []string{"host"}),
			HostBytesSent: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mirrobot_host_upload_bytes_total",
				Help: "Bytes read from the local file while building a host's upload request body",
			}, []string{"host"}),
		},
		Subprocess: SubprocessMetrics{
			Started: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mirrobot_subprocess_started_total",
				Help: "Number of child processes spawned by the Process Runner",
			}, []string{"kind"}),
			Killed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mirrobot_subprocess_killed_total",
				Help: "Number of child process groups killed",
			}, []string{"kind", "reason"}),
			Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mirrobot_subprocess_duration_seconds",
				Help:    "Wall-clock runtime of a subprocess from spawn to exit",
				Buckets: durationBuckets,
			}, []string{"kind"}),
		},
		Client: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "mirrobot_host_client_retry_count",
				Help: "Number of retries the last request to a host needed",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "mirrobot_host_client_failures_total",
				Help: "Requests to a host whose final attempt returned a 4xx/5xx status",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mirrobot_host_client_request_duration_seconds",
				Help:    "Latency of a request to a host that eventually succeeded",
				Buckets: durationBuckets,
			}, []string{"host"}),
		},
	}
}

// Default is the process-wide metrics instance, wired the way the teacher's
// metrics.Metrics package-level var is used from every client package.
var Default = New()
