package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgresize_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgresize_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Job metrics
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgresize_jobs_total",
			Help: "Total number of resize jobs",
		},
		[]string{"mode", "status"}, // status: success, shortfall, invalid, error
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgresize_job_duration_seconds",
			Help:    "Resize job duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"}, // target_size, dimensions
	)

	JobBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgresize_job_bytes",
			Help:    "Job input/output bytes",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 20971520},
		},
		[]string{"direction"}, // input, output
	)

	// Target-size search metrics
	SearchIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgresize_search_iterations",
			Help:    "Quality reduction iterations per target-size search",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 25},
		},
	)

	SearchShrinks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgresize_search_shrinks_total",
			Help: "Total number of searches that fell back to shrinking dimensions",
		},
	)

	SearchShortfalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgresize_search_shortfalls_total",
			Help: "Total number of searches that could not reach the target size",
		},
	)

	// Queue/Pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgresize_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgresize_worker_pool_active_jobs",
			Help: "Current number of jobs being processed by workers",
		},
	)

	WorkerPoolRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgresize_worker_pool_rejected_total",
			Help: "Total number of jobs rejected because the queue was full",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgresize_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgresize_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgresize_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)

	PresetReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgresize_preset_reloads_total",
			Help: "Total number of presets file reloads",
		},
		[]string{"status"}, // success, error
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordJob records a finished resize job
func RecordJob(mode, status string, duration float64, inputBytes, outputBytes int) {
	JobsTotal.WithLabelValues(mode, status).Inc()
	JobDuration.WithLabelValues(mode).Observe(duration)
	JobBytes.WithLabelValues("input").Observe(float64(inputBytes))
	if outputBytes > 0 {
		JobBytes.WithLabelValues("output").Observe(float64(outputBytes))
	}
}

// RecordSearch records the shape of a target-size search
func RecordSearch(iterations int, shrunk, shortfall bool) {
	SearchIterations.Observe(float64(iterations))
	if shrunk {
		SearchShrinks.Inc()
	}
	if shortfall {
		SearchShortfalls.Inc()
	}
}

// UpdateWorkerPoolMetrics updates worker pool metrics
func UpdateWorkerPoolMetrics(queueSize, activeJobs int) {
	WorkerPoolQueueSize.Set(float64(queueSize))
	WorkerPoolActiveJobs.Set(float64(activeJobs))
}

// RecordPoolRejected records a job turned away by a full queue
func RecordPoolRejected() {
	WorkerPoolRejected.Inc()
}

// RecordRateLimitExceeded records a rate limit rejection
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates concurrent request gauge
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}

// RecordPresetReload records a presets file reload attempt
func RecordPresetReload(ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	PresetReloads.WithLabelValues(status).Inc()
}
